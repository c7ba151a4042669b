package booking

import "sync"

// holderLocks serialises booking changes per holder so the same-day check and the
// insert that follows it see a stable set of the holder's bookings.
type holderLocks struct {
	m sync.Map // holder id -> *sync.Mutex
}

func (l *holderLocks) lock(holderID string) (unlock func()) {
	v, _ := l.m.LoadOrStore(holderID, new(sync.Mutex))
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
