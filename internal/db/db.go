package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"

	"github.com/garrettladley/adega/internal/migrations"
	"github.com/garrettladley/adega/internal/paths"
	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xslog"
)

type Config struct {
	Driver migrations.Driver
	URL    string
	Path   string
}

// Handle owns the open database and the storage.Store built on it.
type Handle struct {
	Driver migrations.Driver
	Store  storage.Store

	pool  *pgxpool.Pool
	sqlDB *sql.DB
}

// Open connects to the configured driver and applies pending migrations.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Handle, error) {
	h, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	n, err := h.Migrate(ctx)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	logger.InfoContext(ctx, "database ready", xslog.Driver(string(h.Driver)), xslog.Count(n))

	return h, nil
}

// Connect opens the configured driver without touching the schema.
func Connect(ctx context.Context, cfg Config) (*Handle, error) {
	switch cfg.Driver {
	case migrations.DriverPostgres:
		return connectPostgres(ctx, cfg.URL)
	case migrations.DriverSQLite, "":
		return connectSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func connectPostgres(ctx context.Context, url string) (*Handle, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres driver requires a database URL")
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &Handle{
		Driver: migrations.DriverPostgres,
		Store:  storage.NewPostgresStore(pool),
		pool:   pool,
	}, nil
}

func connectSQLite(path string) (*Handle, error) {
	sqlDB, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	return &Handle{
		Driver: migrations.DriverSQLite,
		Store:  storage.NewSQLiteStore(sqlDB),
		sqlDB:  sqlDB,
	}, nil
}

// Migrate applies pending migrations and returns how many ran.
func (h *Handle) Migrate(ctx context.Context) (int, error) {
	var (
		n   int
		err error
	)
	if h.pool != nil {
		n, err = migrations.ApplyPostgres(ctx, h.pool)
	} else {
		n, err = migrations.ApplySQLite(ctx, h.sqlDB)
	}
	if err != nil {
		return 0, fmt.Errorf("migrations: %w", err)
	}
	return n, nil
}

func (h *Handle) MigrationStatus(ctx context.Context) ([]migrations.Migration, error) {
	if h.pool != nil {
		return migrations.StatusPostgres(ctx, h.pool)
	}
	return migrations.StatusSQLite(ctx, h.sqlDB)
}

// OpenSQLite opens the sqlite file without migrating. WAL mode lets the
// single writer coexist with readers.
func OpenSQLite(path string) (*sql.DB, error) {
	resolved, err := paths.DB(path)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite3", "file:"+resolved+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return sqlDB, nil
}

func (h *Handle) Close() error {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.sqlDB != nil {
		return h.sqlDB.Close()
	}
	return nil
}
