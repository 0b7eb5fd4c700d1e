package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/garrettladley/adega/internal/service/webhook"
	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xslog"
)

var _ webhook.Applier = (*Service)(nil)

// Service applies invoice events to an InvoiceStore, retrying transient
// store errors in-process while the caller's deadline allows.
type Service struct {
	store    storage.InvoiceStore
	attempts int
	backoff  time.Duration
}

type Option func(*Service)

// WithRetry sets how many times a retryable store error is attempted in total,
// and the first backoff, which doubles between tries.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		s.attempts = max(attempts, 1)
		s.backoff = backoff
	}
}

func NewService(store storage.InvoiceStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		attempts: 3,
		backoff:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ApplyCreateOrUpdate(ctx context.Context, e webhook.Event) (bool, error) {
	inv := storage.Invoice{
		Kind:       e.Type.Kind(),
		ResourceID: e.ResourceID,
		TypeCode:   e.Invoice.TypeCode,
		StatusCode: e.Invoice.StatusCode,
		Number:     e.Invoice.Number,
		Series:     e.Invoice.Series,
		Total:      e.Invoice.Total,
		ContactID:  e.Invoice.ContactID,
		StoreID:    e.Invoice.StoreID,
		IssuedAt:   e.Invoice.IssuedAt,
		OccurredAt: e.OccurredAt,
	}

	return s.do(ctx, e, func(ctx context.Context) (bool, error) {
		return s.store.Upsert(ctx, inv)
	})
}

func (s *Service) ApplyDelete(ctx context.Context, e webhook.Event) (bool, error) {
	return s.do(ctx, e, func(ctx context.Context) (bool, error) {
		return s.store.Delete(ctx, e.Type.Kind(), e.ResourceID, e.OccurredAt)
	})
}

func (s *Service) do(ctx context.Context, e webhook.Event, op func(context.Context) (bool, error)) (bool, error) {
	backoff := s.backoff
	for try := 1; ; try++ {
		applied, err := op(ctx)
		if err == nil {
			if !applied {
				xslog.FromContext(ctx).InfoContext(ctx, "skipped stale invoice event",
					xslog.EventType(string(e.Type)))
			}
			return applied, nil
		}

		err = Classify(err)
		if errors.Is(err, webhook.ErrPermanent) || !IsRetryable(err) || try >= s.attempts {
			return false, err
		}

		xslog.FromContext(ctx).WarnContext(ctx, "retrying invoice write",
			xslog.EventType(string(e.Type)), slog.Int("try", try), xslog.Error(err))

		select {
		case <-ctx.Done():
			return false, fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
