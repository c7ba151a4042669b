package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gymbody/internal/config"
	"gymbody/internal/models"

	"github.com/redis/go-redis/v9"
)

var errNilClient = errors.New("redis client is nil")

func stateKey(userID string) string { return "gymbody:state:" + userID }
func rateKey(userID string) string  { return "gymbody:rate:" + userID }

// NewRedisClient builds a client from config. It does not dial.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	return redis.NewClient(opts)
}

// Ping reports whether the server answers.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// RedisStateRepository keeps pending prompts as JSON values that expire after ttl,
// and chat rate counters as fixed-window integers.
type RedisStateRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{rdb: client, ttl: ttl}
}

func (r *RedisStateRepository) GetState(ctx context.Context, userID string) (*models.UserState, error) {
	if r.rdb == nil {
		return nil, errNilClient
	}

	raw, err := r.rdb.Get(ctx, stateKey(userID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get state %s: %w", userID, err)
	}

	state := new(models.UserState)
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", userID, err)
	}
	return state, nil
}

func (r *RedisStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	if r.rdb == nil {
		return errNilClient
	}

	state.UpdatedAt = time.Now()
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", state.UserID, err)
	}
	if err := r.rdb.Set(ctx, stateKey(state.UserID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set state %s: %w", state.UserID, err)
	}
	return nil
}

func (r *RedisStateRepository) ClearState(ctx context.Context, userID string) error {
	if r.rdb == nil {
		return errNilClient
	}
	if err := r.rdb.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis clear state %s: %w", userID, err)
	}
	return nil
}

// CheckRateLimit opens a window on the first call and counts every call inside it.
// SET NX creates the counter together with its expiry.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	if r.rdb == nil {
		return false, errNilClient
	}

	key := rateKey(userID)
	pipe := r.rdb.Pipeline()
	pipe.SetNX(ctx, key, 0, window)
	hits := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis rate window %s: %w", userID, err)
	}
	return hits.Val() <= int64(limit), nil
}
