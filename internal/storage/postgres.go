package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const pgUpsertInvoice = `
INSERT INTO invoices (kind, resource_id, type_code, status_code, number, series, total, contact_id, store_id, issued_at, occurred_at, deleted_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, NOW())
ON CONFLICT (kind, resource_id) DO UPDATE SET
	type_code = EXCLUDED.type_code,
	status_code = EXCLUDED.status_code,
	number = EXCLUDED.number,
	series = EXCLUDED.series,
	total = EXCLUDED.total,
	contact_id = EXCLUDED.contact_id,
	store_id = EXCLUDED.store_id,
	issued_at = EXCLUDED.issued_at,
	occurred_at = EXCLUDED.occurred_at,
	deleted_at = NULL,
	updated_at = NOW()
WHERE invoices.occurred_at < EXCLUDED.occurred_at
	OR (invoices.occurred_at = EXCLUDED.occurred_at AND invoices.deleted_at IS NULL)`

func (s *PostgresStore) Upsert(ctx context.Context, inv Invoice) (bool, error) {
	tag, err := s.pool.Exec(ctx, pgUpsertInvoice,
		string(inv.Kind),
		inv.ResourceID,
		inv.TypeCode,
		inv.StatusCode,
		inv.Number,
		inv.Series,
		inv.Total,
		inv.ContactID,
		inv.StoreID,
		inv.IssuedAt,
		inv.OccurredAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("upsert invoice: %w", pgError(err))
	}
	return tag.RowsAffected() > 0, nil
}

const pgDeleteInvoice = `
INSERT INTO invoices (kind, resource_id, occurred_at, deleted_at, updated_at)
VALUES ($1, $2, $3, $3, NOW())
ON CONFLICT (kind, resource_id) DO UPDATE SET
	occurred_at = EXCLUDED.occurred_at,
	deleted_at = EXCLUDED.deleted_at,
	updated_at = NOW()
WHERE invoices.occurred_at <= EXCLUDED.occurred_at`

func (s *PostgresStore) Delete(ctx context.Context, kind InvoiceKind, resourceID string, occurredAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, pgDeleteInvoice, string(kind), resourceID, occurredAt.UTC())
	if err != nil {
		return false, fmt.Errorf("delete invoice: %w", pgError(err))
	}
	return tag.RowsAffected() > 0, nil
}

const pgGetInvoice = `
SELECT kind, resource_id, type_code, status_code, number, series, total, contact_id, store_id, issued_at, occurred_at, deleted_at
FROM invoices
WHERE kind = $1 AND resource_id = $2`

func (s *PostgresStore) Get(ctx context.Context, kind InvoiceKind, resourceID string) (Invoice, error) {
	var (
		inv     Invoice
		rawKind string
	)
	err := s.pool.QueryRow(ctx, pgGetInvoice, string(kind), resourceID).Scan(
		&rawKind,
		&inv.ResourceID,
		&inv.TypeCode,
		&inv.StatusCode,
		&inv.Number,
		&inv.Series,
		&inv.Total,
		&inv.ContactID,
		&inv.StoreID,
		&inv.IssuedAt,
		&inv.OccurredAt,
		&inv.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	inv.Kind = InvoiceKind(rawKind)
	return inv, nil
}

const pgInsertAttempt = `
INSERT INTO webhook_attempts (id, received_at, source_ip, retry_attempt, outcome, http_status, error_message, resource_id, event_id, event_type, dedup_key, payload_digest, duplicate, note, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

func (s *PostgresStore) Record(ctx context.Context, a Attempt) error {
	_, err := s.pool.Exec(ctx, pgInsertAttempt,
		a.ID,
		a.ReceivedAt.UTC(),
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
		return fmt.Errorf("insert webhook attempt: %w", pgError(err))
	}
	return nil
}

const pgSelectAttempts = `
SELECT id::text, received_at, source_ip, retry_attempt, outcome, http_status, error_message, resource_id, event_id, event_type, dedup_key, payload_digest, duplicate, note, duration_ms
FROM webhook_attempts`

func (s *PostgresStore) List(ctx context.Context, filter AttemptFilter, page Page) (AttemptPage, error) {
	where, args := pgAttemptWhere(filter)

	result := AttemptPage{Attempts: []Attempt{}, Page: page.Page, PageSize: page.PageSize}
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM webhook_attempts"+where, args...).Scan(&result.Total); err != nil {
		return AttemptPage{}, fmt.Errorf("count webhook attempts: %w", err)
	}
	if result.Total == 0 {
		return result, nil
	}

	n := len(args)
	query := pgSelectAttempts + where +
		" ORDER BY received_at DESC, id DESC LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	args = append(args, page.PageSize, page.offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return AttemptPage{}, fmt.Errorf("list webhook attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a       Attempt
			outcome string
		)
		if err := rows.Scan(
			&a.ID,
			&a.ReceivedAt,
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
		a.Outcome = Outcome(outcome)
		a.ReceivedAt = a.ReceivedAt.UTC()
		result.Attempts = append(result.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return AttemptPage{}, fmt.Errorf("iterate webhook attempts: %w", err)
	}
	return result, nil
}

func pgAttemptWhere(filter AttemptFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if filter.Outcome != "" {
		add("outcome = ?", string(filter.Outcome))
	}
	if filter.EventType != "" {
		add("event_type = ?", filter.EventType)
	}
	if filter.Start != nil {
		add("received_at >= ?", filter.Start.UTC())
	}
	if filter.End != nil {
		add("received_at <= ?", filter.End.UTC())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const pgSucceededSince = `
SELECT EXISTS (
	SELECT 1 FROM webhook_attempts
	WHERE dedup_key = $1 AND outcome = 'success' AND received_at >= $2
)`

func (s *PostgresStore) SucceededSince(ctx context.Context, dedupKey string, since time.Time) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, pgSucceededSince, dedupKey, since.UTC()).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup dedup key: %w", err)
	}
	return exists, nil
}

const pgGetToken = `
SELECT access_token, refresh_token, token_type, expiry, updated_at
FROM bling_tokens
WHERE id = 1`

func (s *PostgresStore) GetToken(ctx context.Context) (Token, error) {
	var t Token
	err := s.pool.QueryRow(ctx, pgGetToken).Scan(&t.AccessToken, &t.RefreshToken, &t.TokenType, &t.Expiry, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

const pgUpsertToken = `
INSERT INTO bling_tokens (id, access_token, refresh_token, token_type, expiry, updated_at)
VALUES (1, $1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE SET
	access_token = EXCLUDED.access_token,
	refresh_token = EXCLUDED.refresh_token,
	token_type = EXCLUDED.token_type,
	expiry = EXCLUDED.expiry,
	updated_at = NOW()`

func (s *PostgresStore) UpsertToken(ctx context.Context, t Token) error {
	if _, err := s.pool.Exec(ctx, pgUpsertToken, t.AccessToken, t.RefreshToken, t.TokenType, t.Expiry.UTC()); err != nil {
		return fmt.Errorf("upsert token: %w", pgError(err))
	}
	return nil
}

// pgError maps integrity constraint violations (SQLSTATE class 23) to ErrConstraint.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%w: %s", ErrConstraint, pgErr.Message)
	}
	return err
}
