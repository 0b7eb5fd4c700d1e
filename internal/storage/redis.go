package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	_ Backend    = (*RedisBackend)(nil)
	_ DedupStore = (*RedisBackend)(nil)
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	dedupKeyPrefix     = "webhook:dedup:"
	stateKeyPrefix     = "oauth:state:"
)

type RedisConfig struct {
	Client *redis.Client

	// RatePerSec and Burst carry the same meaning as for NewMemoryBackend.
	RatePerSec float64
	Burst      int
}

type RedisBackend struct {
	client     *redis.Client
	rateLimit  int
	rateWindow time.Duration
	retryAfter time.Duration
}

func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.RatePerSec <= 0 || cfg.Burst < 1 {
		return nil, fmt.Errorf("invalid rate limit: %v/s burst %d", cfg.RatePerSec, cfg.Burst)
	}
	window, limit := slidingWindow(cfg.RatePerSec, cfg.Burst)
	return &RedisBackend{
		client:     cfg.Client,
		rateLimit:  limit,
		rateWindow: window,
		retryAfter: time.Duration(float64(time.Second) / cfg.RatePerSec),
	}, nil
}

// slidingWindow maps a token bucket onto the sliding window script: burst
// requests per burst/rate seconds keeps both the peak and the sustained rate.
func slidingWindow(ratePerSec float64, burst int) (time.Duration, int) {
	window := time.Duration(float64(burst) / ratePerSec * float64(time.Second))
	if window < time.Millisecond {
		window = time.Millisecond
	}
	return window, burst
}

func (r *RedisBackend) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	params := rateLimitParams{
		window: r.rateWindow,
		limit:  r.rateLimit,
		ttl:    r.rateWindow + time.Second,
	}

	allowed, err := runRateLimitScript(ctx, r.client, rateLimitKeyPrefix+key, params)
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if allowed {
		return RateLimitResult{Allowed: true}, nil
	}
	return RateLimitResult{RetryAfter: r.retryAfter}, nil
}

func (r *RedisBackend) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, dedupKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", err)
	}
	return n > 0, nil
}

func (r *RedisBackend) Record(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Set(ctx, dedupKeyPrefix+key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to record dedup key: %w", err)
	}
	return nil
}

func (r *RedisBackend) SetState(ctx context.Context, state string, ttl time.Duration) error {
	if err := r.client.Set(ctx, stateKeyPrefix+state, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

func (r *RedisBackend) ConsumeState(ctx context.Context, state string) error {
	err := r.client.GetDel(ctx, stateKeyPrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to consume state: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
