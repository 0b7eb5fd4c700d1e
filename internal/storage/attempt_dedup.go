package storage

import (
	"context"
	"time"
)

var _ DedupStore = (*AttemptDedupStore)(nil)

// AttemptDedupStore answers dedup lookups from the attempt log itself, so a
// deployment without redis still dedups across restarts and replicas.
// Record is a no-op: the successful attempt row is the record.
type AttemptDedupStore struct {
	attempts AttemptStore
	window   time.Duration
	now      func() time.Time
}

func NewAttemptDedupStore(attempts AttemptStore, window time.Duration) *AttemptDedupStore {
	return &AttemptDedupStore{attempts: attempts, window: window, now: time.Now}
}

func (s *AttemptDedupStore) Seen(ctx context.Context, key string) (bool, error) {
	return s.attempts.SucceededSince(ctx, key, s.now().Add(-s.window))
}

func (s *AttemptDedupStore) Record(context.Context, string, time.Duration) error {
	return nil
}
