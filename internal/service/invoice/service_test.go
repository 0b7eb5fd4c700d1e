package invoice

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettladley/adega/internal/service/webhook"
	"github.com/garrettladley/adega/internal/storage"
)

var t0 = time.Date(2024, 9, 27, 11, 24, 56, 0, time.UTC)

func event(t webhook.EventType, at time.Time) webhook.Event {
	return webhook.Event{
		EventID:    "e1",
		Type:       t,
		OccurredAt: at,
		ResourceID: "123",
		Invoice: webhook.InvoiceFields{
			TypeCode:   1,
			StatusCode: 5,
			Number:     "6541",
			Total:      "150.00",
			ContactID:  "77",
		},
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	svc := NewService(store)
	ctx := t.Context()

	_, err := svc.ApplyCreateOrUpdate(ctx, event(webhook.InvoiceCreated, t0))
	require.NoError(t, err)
	first, err := store.Get(ctx, storage.InvoiceKindInvoice, "123")
	require.NoError(t, err)

	_, err = svc.ApplyCreateOrUpdate(ctx, event(webhook.InvoiceCreated, t0))
	require.NoError(t, err)
	second, err := store.Get(ctx, storage.InvoiceKindInvoice, "123")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "150.00", second.Total)
	assert.Equal(t, "77", second.ContactID)
}

func TestApplyDeleteMissingIsFine(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	svc := NewService(store)

	applied, err := svc.ApplyDelete(t.Context(), event(webhook.ConsumerInvoiceDeleted, t0))
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.Get(t.Context(), storage.InvoiceKindConsumerInvoice, "123")
	require.NoError(t, err)
	assert.True(t, got.Deleted())
}

func TestApplyStaleEventSkipped(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	svc := NewService(store)
	ctx := t.Context()

	_, err := svc.ApplyDelete(ctx, event(webhook.InvoiceDeleted, t0.Add(time.Minute)))
	require.NoError(t, err)

	applied, err := svc.ApplyCreateOrUpdate(ctx, event(webhook.InvoiceUpdated, t0))
	require.NoError(t, err)
	assert.False(t, applied)
}

type flakyStore struct {
	storage.InvoiceStore
	errs  []error
	calls int
}

func (f *flakyStore) Upsert(ctx context.Context, inv storage.Invoice) (bool, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return false, err
	}
	return f.InvoiceStore.Upsert(ctx, inv)
}

func TestApplyErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		errs          []error
		wantErr       bool
		wantPermanent bool
		wantCalls     int
	}{
		{
			name:      "retryable error recovers",
			errs:      []error{fmt.Errorf("dial: %w", syscall.ECONNREFUSED)},
			wantCalls: 2,
		},
		{
			name: "retry budget exhausted stays transient",
			errs: []error{
				fmt.Errorf("dial: %w", syscall.ECONNRESET),
				fmt.Errorf("dial: %w", syscall.ECONNRESET),
				fmt.Errorf("dial: %w", syscall.ECONNRESET),
			},
			wantErr:   true,
			wantCalls: 3,
		},
		{
			name:          "constraint is permanent and not retried",
			errs:          []error{fmt.Errorf("upsert invoice: %w", storage.ErrConstraint)},
			wantErr:       true,
			wantPermanent: true,
			wantCalls:     1,
		},
		{
			name:      "unknown error is transient and not retried",
			errs:      []error{errors.New("disk full")},
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &flakyStore{InvoiceStore: storage.NewMemoryStore(), errs: tt.errs}
			svc := NewService(store, WithRetry(3, time.Millisecond))

			_, err := svc.ApplyCreateOrUpdate(t.Context(), event(webhook.InvoiceCreated, t0))
			if !tt.wantErr {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantPermanent, errors.Is(err, webhook.ErrPermanent))
			}
			assert.Equal(t, tt.wantCalls, store.calls)
		})
	}
}

func TestApplyRespectsDeadline(t *testing.T) {
	t.Parallel()

	store := &flakyStore{
		InvoiceStore: storage.NewMemoryStore(),
		errs:         []error{syscall.ECONNREFUSED, syscall.ECONNREFUSED},
	}
	svc := NewService(store, WithRetry(5, time.Hour))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.ApplyCreateOrUpdate(ctx, event(webhook.InvoiceCreated, t0))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, webhook.ErrPermanent))
	assert.Equal(t, 1, store.calls)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(Classify(storage.ErrConstraint)))
	assert.True(t, IsRetryable(syscall.ECONNRESET))
}
