package worker

import "time"

// Backoff controls how a failed sync task is rescheduled.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Ceiling  time.Duration
	Factor   float64
}

// DefaultBackoff fills in any zero field of a configured Backoff.
var DefaultBackoff = Backoff{Attempts: 5, Base: 2 * time.Second, Ceiling: time.Minute, Factor: 2}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = DefaultBackoff.Attempts
	}
	if b.Base <= 0 {
		b.Base = DefaultBackoff.Base
	}
	if b.Ceiling <= 0 {
		b.Ceiling = DefaultBackoff.Ceiling
	}
	if b.Factor < 1 {
		b.Factor = DefaultBackoff.Factor
	}
	return b
}

// Delay is the wait before the given attempt. Attempt 1 waits Base and every
// following attempt multiplies by Factor until Ceiling is reached.
func (b Backoff) Delay(attempt int) time.Duration {
	wait := b.Base
	if wait <= 0 {
		wait = time.Second
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}

	for n := 1; n < attempt; n++ {
		wait = time.Duration(float64(wait) * factor)
		if b.Ceiling > 0 && wait >= b.Ceiling {
			break
		}
	}
	if b.Ceiling > 0 && wait > b.Ceiling {
		return b.Ceiling
	}
	return wait
}
