package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

type sqliteRunner struct {
	db *sql.DB
}

// ApplySQLite runs pending sqlite migrations and returns how many were applied.
func ApplySQLite(ctx context.Context, db *sql.DB) (int, error) {
	return apply(ctx, DriverSQLite, &sqliteRunner{db: db})
}

func StatusSQLite(ctx context.Context, db *sql.DB) ([]Migration, error) {
	return status(ctx, DriverSQLite, &sqliteRunner{db: db})
}

func (r *sqliteRunner) createHistoryTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating migrations history table: %w", err)
	}
	return nil
}

func (r *sqliteRunner) isApplied(ctx context.Context, name string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations_history WHERE name = ?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking if migration applied: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteRunner) applyTx(ctx context.Context, name string, stmts []string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, "INSERT INTO migrations_history (name) VALUES (?)", name); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}
