package booking

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"gymbody/internal/domain"
	"gymbody/internal/models"
)

type bookingKey struct {
	userID    string
	sessionID string
}

// MemoryStore is an in-process domain.ScheduleRepository. Callers get copies; the
// stored sessions are only changed through the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ClassSession
	order    []string
	bookings map[bookingKey]models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.ClassSession),
		bookings: make(map[bookingKey]models.Booking),
	}
}

func clone(s *models.ClassSession) *models.ClassSession {
	c := *s
	return &c
}

func (m *MemoryStore) GetSessions(ctx context.Context, gymID string) ([]*models.ClassSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.ClassSession
	for _, id := range m.order {
		s := m.sessions[id]
		if gymID == "" || s.GymID == gymID {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*models.ClassSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) AddSessions(ctx context.Context, sessions []*models.ClassSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range sessions {
		if _, exists := m.sessions[s.ID]; !exists {
			m.order = append(m.order, s.ID)
		}
		c := clone(s)
		if c.Booked < 0 {
			c.Booked = 0
		}
		m.sessions[s.ID] = c
	}
	return nil
}

func (m *MemoryStore) DeleteSessionsBefore(ctx context.Context, gymID, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	kept := m.order[:0]
	for _, id := range m.order {
		s := m.sessions[id]
		if s.GymID == gymID && s.Date < date {
			delete(m.sessions, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept

	for k := range m.bookings {
		if _, ok := m.sessions[k.sessionID]; !ok {
			delete(m.bookings, k)
		}
	}
	return removed, nil
}

func (m *MemoryStore) LastSessionID(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last int64
	for id := range m.sessions {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > last {
			last = n
		}
	}
	return last, nil
}

func (m *MemoryStore) AddBooking(ctx context.Context, b *models.Booking) (*models.ClassSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[b.SessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	key := bookingKey{userID: b.UserID, sessionID: b.SessionID}
	if _, exists := m.bookings[key]; exists {
		return nil, domain.ErrAlreadyBooked
	}

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.SessionDate = s.Date
	m.bookings[key] = *b
	s.Booked++
	return clone(s), nil
}

func (m *MemoryStore) RemoveBooking(ctx context.Context, userID, sessionID string) (*models.ClassSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	key := bookingKey{userID: userID, sessionID: sessionID}
	if _, exists := m.bookings[key]; !exists {
		return nil, domain.ErrNotBooked
	}

	delete(m.bookings, key)
	if s.Booked > 0 {
		s.Booked--
	}
	return clone(s), nil
}

func (m *MemoryStore) HasBooking(ctx context.Context, userID, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.bookings[bookingKey{userID: userID, sessionID: sessionID}]
	return ok, nil
}

func (m *MemoryStore) GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	return m.collect(func(k bookingKey) bool { return k.userID == userID }), nil
}

func (m *MemoryStore) GetSessionBookings(ctx context.Context, sessionID string) ([]*models.Booking, error) {
	return m.collect(func(k bookingKey) bool { return k.sessionID == sessionID }), nil
}

func (m *MemoryStore) collect(match func(bookingKey) bool) []*models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Booking
	for k, b := range m.bookings {
		if match(k) {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}
