package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gymbody/internal/domain"
	"gymbody/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStateRepository serves from primary until it errors, then from fallback.
// While primary is down one call per recoveryInterval is sent to it as a recheck.
type FailoverStateRepository struct {
	primary  domain.StateRepository
	fallback domain.StateRepository
	logger   *zerolog.Logger
	now      func() time.Time

	down      atomic.Bool
	mu        sync.Mutex
	recheckAt time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// Degraded reports whether calls are currently served by the fallback.
func (r *FailoverStateRepository) Degraded() bool {
	return r.down.Load()
}

func (r *FailoverStateRepository) shouldTryPrimary() bool {
	if !r.down.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if now := r.now(); !now.Before(r.recheckAt) {
		r.recheckAt = now.Add(recoveryInterval)
		return true
	}
	return false
}

func (r *FailoverStateRepository) record(err error) {
	if err == nil {
		if r.down.Swap(false) {
			r.logger.Info().Msg("Redis state store is back, leaving in-memory fallback")
		}
		return
	}
	if !r.down.Swap(true) {
		r.logger.Error().Err(err).Msg("Redis state store failed, serving from memory")
	}
	r.mu.Lock()
	r.recheckAt = r.now().Add(recoveryInterval)
	r.mu.Unlock()
}

func failover[T any](r *FailoverStateRepository, call func(domain.StateRepository) (T, error)) (T, error) {
	if r.shouldTryPrimary() {
		v, err := call(r.primary)
		r.record(err)
		if err == nil {
			return v, nil
		}
	}
	return call(r.fallback)
}

func (r *FailoverStateRepository) GetState(ctx context.Context, userID string) (*models.UserState, error) {
	return failover(r, func(s domain.StateRepository) (*models.UserState, error) {
		return s.GetState(ctx, userID)
	})
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	_, err := failover(r, func(s domain.StateRepository) (struct{}, error) {
		return struct{}{}, s.SetState(ctx, state)
	})
	return err
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, userID string) error {
	_, err := failover(r, func(s domain.StateRepository) (struct{}, error) {
		return struct{}{}, s.ClearState(ctx, userID)
	})
	return err
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	return failover(r, func(s domain.StateRepository) (bool, error) {
		return s.CheckRateLimit(ctx, userID, limit, window)
	})
}
