package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRunner struct {
	pool *pgxpool.Pool
}

// ApplyPostgres runs pending postgres migrations and returns how many were applied.
func ApplyPostgres(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	return apply(ctx, DriverPostgres, &postgresRunner{pool: pool})
}

func StatusPostgres(ctx context.Context, pool *pgxpool.Pool) ([]Migration, error) {
	return status(ctx, DriverPostgres, &postgresRunner{pool: pool})
}

func (r *postgresRunner) createHistoryTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS migrations_history (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating migrations history table: %w", err)
	}
	return nil
}

func (r *postgresRunner) isApplied(ctx context.Context, name string) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM migrations_history WHERE name = $1", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking if migration applied: %w", err)
	}
	return count > 0, nil
}

func (r *postgresRunner) applyTx(ctx context.Context, name string, stmts []string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, "INSERT INTO migrations_history (name) VALUES ($1)", name); err != nil {
			return fmt.Errorf("recording migration: %w", err)
		}
		return nil
	})
}
