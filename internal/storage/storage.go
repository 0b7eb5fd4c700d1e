package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrConstraint marks writes the database rejected on integrity grounds.
	// Retrying the same write will fail the same way.
	ErrConstraint = errors.New("constraint violation")
)

type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// DedupStore remembers dedup keys of deliveries that were applied successfully.
type DedupStore interface {
	Seen(ctx context.Context, key string) (bool, error)

	// Record marks key as applied for ttl. Recording an existing key refreshes it.
	Record(ctx context.Context, key string, ttl time.Duration) error
}

// StateStore holds short-lived OAuth state values between the authorize
// redirect and the callback.
type StateStore interface {
	SetState(ctx context.Context, state string, ttl time.Duration) error

	// ConsumeState atomically checks and removes state.
	// Returns ErrNotFound if the state does not exist or has expired.
	ConsumeState(ctx context.Context, state string) error
}

// Backend holds the per-process or shared ephemeral state. Dedup is not part
// of it: the in-memory mode answers dedup from the attempt log instead.
type Backend interface {
	RateLimiter
	StateStore

	Close() error

	Ping(ctx context.Context) error
}

// Store is everything the webhook pipeline persists in the relational database.
type Store interface {
	InvoiceStore
	AttemptStore
	TokenStore

	Ping(ctx context.Context) error
}
