package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettladley/adega/internal/migrations"
	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xslog"
)

func openTemp(t *testing.T) *Handle {
	t.Helper()

	h, err := Open(t.Context(), Config{
		Driver: migrations.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "adega.db"),
	}, xslog.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(t.Context(), Config{Driver: "mysql"}, xslog.Discard())
	require.Error(t, err)
}

func TestSQLiteInvoiceCompareAndSet(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := openTemp(t).Store

	t0 := time.Date(2024, 9, 27, 11, 24, 56, 0, time.UTC)
	inv := storage.Invoice{
		Kind:       storage.InvoiceKindInvoice,
		ResourceID: "123",
		StatusCode: 1,
		Number:     "6541",
		Total:      "150.00",
		OccurredAt: t0,
	}

	applied, err := store.Upsert(ctx, inv)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.Upsert(ctx, inv)
	require.NoError(t, err)
	assert.True(t, applied, "identical upsert reapplies")

	stale := inv
	stale.StatusCode = 9
	stale.OccurredAt = t0.Add(-time.Minute)
	applied, err = store.Upsert(ctx, stale)
	require.NoError(t, err)
	assert.False(t, applied, "older event must not overwrite")

	applied, err = store.Delete(ctx, storage.InvoiceKindInvoice, "123", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.Upsert(ctx, inv)
	require.NoError(t, err)
	assert.False(t, applied, "late update must not resurrect a tombstone")

	got, err := store.Get(ctx, storage.InvoiceKindInvoice, "123")
	require.NoError(t, err)
	assert.True(t, got.Deleted())
	assert.Equal(t, t0.Add(time.Minute), got.OccurredAt)

	_, err = store.Get(ctx, storage.InvoiceKindConsumerInvoice, "123")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteConstraintViolation(t *testing.T) {
	t.Parallel()

	store := openTemp(t).Store

	_, err := store.Upsert(t.Context(), storage.Invoice{
		Kind:       storage.InvoiceKindInvoice,
		ResourceID: "1",
		StatusCode: -1,
		OccurredAt: time.Now(),
	})
	assert.ErrorIs(t, err, storage.ErrConstraint)
}

func TestSQLiteAttempts(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := openTemp(t).Store

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, outcome := range []storage.Outcome{storage.OutcomeSuccess, storage.OutcomeError, storage.OutcomeSuccess} {
		require.NoError(t, store.Record(ctx, storage.Attempt{
			ID:         fmt.Sprintf("attempt-%d", i),
			ReceivedAt: base.Add(time.Duration(i) * time.Hour),
			Outcome:    outcome,
			HTTPStatus: 200,
			EventType:  "invoice.created",
			DedupKey:   "k",
		}))
	}

	page, err := store.List(ctx, storage.AttemptFilter{Outcome: storage.OutcomeSuccess}, storage.Page{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	require.Len(t, page.Attempts, 1)
	assert.Equal(t, base.Add(2*time.Hour), page.Attempts[0].ReceivedAt)

	seen, err := store.SucceededSince(ctx, "k", base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.SucceededSince(ctx, "k", base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSQLiteToken(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := openTemp(t).Store

	_, err := store.GetToken(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)

	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertToken(ctx, storage.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry}))
	require.NoError(t, store.UpsertToken(ctx, storage.Token{AccessToken: "b", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry}))

	got, err := store.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", got.AccessToken)
	assert.Equal(t, expiry, got.Expiry)
}

func TestConnectThenMigrate(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	h, err := Connect(ctx, Config{Path: filepath.Join(t.TempDir(), "nested", "adega.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	assert.Equal(t, migrations.DriverSQLite, h.Driver)

	before, err := h.MigrationStatus(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, before)
	for _, m := range before {
		assert.False(t, m.Applied, m.Name)
	}

	n, err := h.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(before), n)

	after, err := h.MigrationStatus(ctx)
	require.NoError(t, err)
	for _, m := range after {
		assert.True(t, m.Applied, m.Name)
	}

	n, err = h.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
