package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore stores timestamps as unix milliseconds so that ordering and
// range filters compare integers.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const liteUpsertInvoice = `
INSERT INTO invoices (kind, resource_id, type_code, status_code, number, series, total, contact_id, store_id, issued_at, occurred_at, deleted_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
ON CONFLICT (kind, resource_id) DO UPDATE SET
	type_code = excluded.type_code,
	status_code = excluded.status_code,
	number = excluded.number,
	series = excluded.series,
	total = excluded.total,
	contact_id = excluded.contact_id,
	store_id = excluded.store_id,
	issued_at = excluded.issued_at,
	occurred_at = excluded.occurred_at,
	deleted_at = NULL,
	updated_at = excluded.updated_at
WHERE invoices.occurred_at < excluded.occurred_at
	OR (invoices.occurred_at = excluded.occurred_at AND invoices.deleted_at IS NULL)`

func (s *SQLiteStore) Upsert(ctx context.Context, inv Invoice) (bool, error) {
	res, err := s.db.ExecContext(ctx, liteUpsertInvoice,
		string(inv.Kind),
		inv.ResourceID,
		inv.TypeCode,
		inv.StatusCode,
		inv.Number,
		inv.Series,
		inv.Total,
		inv.ContactID,
		inv.StoreID,
		toMillisPtr(inv.IssuedAt),
		inv.OccurredAt.UnixMilli(),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("upsert invoice: %w", sqliteError(err))
	}
	return affected(res)
}

const liteDeleteInvoice = `
INSERT INTO invoices (kind, resource_id, occurred_at, deleted_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (kind, resource_id) DO UPDATE SET
	occurred_at = excluded.occurred_at,
	deleted_at = excluded.deleted_at,
	updated_at = excluded.updated_at
WHERE invoices.occurred_at <= excluded.occurred_at`

func (s *SQLiteStore) Delete(ctx context.Context, kind InvoiceKind, resourceID string, occurredAt time.Time) (bool, error) {
	ms := occurredAt.UnixMilli()
	res, err := s.db.ExecContext(ctx, liteDeleteInvoice, string(kind), resourceID, ms, ms, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("delete invoice: %w", sqliteError(err))
	}
	return affected(res)
}

const liteGetInvoice = `
SELECT kind, resource_id, type_code, status_code, number, series, total, contact_id, store_id, issued_at, occurred_at, deleted_at
FROM invoices
WHERE kind = ? AND resource_id = ?`

func (s *SQLiteStore) Get(ctx context.Context, kind InvoiceKind, resourceID string) (Invoice, error) {
	var (
		inv        Invoice
		rawKind    string
		issuedAt   sql.NullInt64
		occurredAt int64
		deletedAt  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, liteGetInvoice, string(kind), resourceID).Scan(
		&rawKind,
		&inv.ResourceID,
		&inv.TypeCode,
		&inv.StatusCode,
		&inv.Number,
		&inv.Series,
		&inv.Total,
		&inv.ContactID,
		&inv.StoreID,
		&issuedAt,
		&occurredAt,
		&deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("get invoice: %w", err)
	}

	inv.Kind = InvoiceKind(rawKind)
	inv.IssuedAt = fromNullMillis(issuedAt)
	inv.OccurredAt = time.UnixMilli(occurredAt).UTC()
	inv.DeletedAt = fromNullMillis(deletedAt)
	return inv, nil
}

const liteInsertAttempt = `
INSERT INTO webhook_attempts (id, received_at, source_ip, retry_attempt, outcome, http_status, error_message, resource_id, event_id, event_type, dedup_key, payload_digest, duplicate, note, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) Record(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, liteInsertAttempt,
		a.ID,
		a.ReceivedAt.UnixMilli(),
		a.SourceIP,
		a.RetryAttempt,
		string(a.Outcome),
		a.HTTPStatus,
		a.ErrorMessage,
		a.ResourceID,
		a.EventID,
		a.EventType,
		a.DedupKey,
		a.PayloadDigest,
		a.Duplicate,
		a.Note,
		a.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert webhook attempt: %w", sqliteError(err))
	}
	return nil
}

const liteSelectAttempts = `
SELECT id, received_at, source_ip, retry_attempt, outcome, http_status, error_message, resource_id, event_id, event_type, dedup_key, payload_digest, duplicate, note, duration_ms
FROM webhook_attempts`

func (s *SQLiteStore) List(ctx context.Context, filter AttemptFilter, page Page) (AttemptPage, error) {
	where, args := liteAttemptWhere(filter)

	result := AttemptPage{Attempts: []Attempt{}, Page: page.Page, PageSize: page.PageSize}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM webhook_attempts"+where, args...).Scan(&result.Total); err != nil {
		return AttemptPage{}, fmt.Errorf("count webhook attempts: %w", err)
	}
	if result.Total == 0 {
		return result, nil
	}

	query := liteSelectAttempts + where + " ORDER BY received_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, page.PageSize, page.offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return AttemptPage{}, fmt.Errorf("list webhook attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			a          Attempt
			receivedAt int64
			outcome    string
		)
		if err := rows.Scan(
			&a.ID,
			&receivedAt,
			&a.SourceIP,
			&a.RetryAttempt,
			&outcome,
			&a.HTTPStatus,
			&a.ErrorMessage,
			&a.ResourceID,
			&a.EventID,
			&a.EventType,
			&a.DedupKey,
			&a.PayloadDigest,
			&a.Duplicate,
			&a.Note,
			&a.DurationMS,
		); err != nil {
			return AttemptPage{}, fmt.Errorf("scan webhook attempt: %w", err)
		}
		a.ReceivedAt = time.UnixMilli(receivedAt).UTC()
		a.Outcome = Outcome(outcome)
		result.Attempts = append(result.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return AttemptPage{}, fmt.Errorf("iterate webhook attempts: %w", err)
	}
	return result, nil
}

func liteAttemptWhere(filter AttemptFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.Start != nil {
		clauses = append(clauses, "received_at >= ?")
		args = append(args, filter.Start.UnixMilli())
	}
	if filter.End != nil {
		clauses = append(clauses, "received_at <= ?")
		args = append(args, filter.End.UnixMilli())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const liteSucceededSince = `
SELECT EXISTS (
	SELECT 1 FROM webhook_attempts
	WHERE dedup_key = ? AND outcome = 'success' AND received_at >= ?
)`

func (s *SQLiteStore) SucceededSince(ctx context.Context, dedupKey string, since time.Time) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, liteSucceededSince, dedupKey, since.UnixMilli()).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup dedup key: %w", err)
	}
	return exists, nil
}

const liteGetToken = `
SELECT access_token, refresh_token, token_type, expiry, updated_at
FROM bling_tokens
WHERE id = 1`

func (s *SQLiteStore) GetToken(ctx context.Context) (Token, error) {
	var (
		t         Token
		expiry    int64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, liteGetToken).Scan(&t.AccessToken, &t.RefreshToken, &t.TokenType, &expiry, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, fmt.Errorf("get token: %w", err)
	}
	t.Expiry = time.UnixMilli(expiry).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return t, nil
}

const liteUpsertToken = `
INSERT INTO bling_tokens (id, access_token, refresh_token, token_type, expiry, updated_at)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	access_token = excluded.access_token,
	refresh_token = excluded.refresh_token,
	token_type = excluded.token_type,
	expiry = excluded.expiry,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertToken(ctx context.Context, t Token) error {
	_, err := s.db.ExecContext(ctx, liteUpsertToken,
		t.AccessToken, t.RefreshToken, t.TokenType, t.Expiry.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert token: %w", sqliteError(err))
	}
	return nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func toMillisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func sqliteError(err error) error {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", ErrConstraint, liteErr.Error())
	}
	return err
}
