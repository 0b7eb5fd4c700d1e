package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var migrationsFS embed.FS

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Dir is where `db new` writes migration files for driver, relative to the repo root.
func Dir(driver Driver) string {
	return path.Join("internal/migrations", dir(driver))
}

func dir(driver Driver) string {
	return path.Join("sql", string(driver))
}

// runner abstracts the history table and per-migration transaction of one driver.
type runner interface {
	createHistoryTable(ctx context.Context) error
	isApplied(ctx context.Context, name string) (bool, error)
	// applyTx executes stmts and records name in one transaction.
	applyTx(ctx context.Context, name string, stmts []string) error
}

type Migration struct {
	Name    string
	Applied bool
}

func files(driver Driver) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, dir(driver))
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func status(ctx context.Context, driver Driver, r runner) ([]Migration, error) {
	if err := r.createHistoryTable(ctx); err != nil {
		return nil, err
	}

	names, err := files(driver)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		applied, err := r.isApplied(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: name, Applied: applied})
	}
	return out, nil
}

func apply(ctx context.Context, driver Driver, r runner) (int, error) {
	all, err := status(ctx, driver, r)
	if err != nil {
		return 0, err
	}

	var count int
	for _, m := range all {
		if m.Applied {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, path.Join(dir(driver), m.Name))
		if err != nil {
			return count, fmt.Errorf("failed to read migration file %s: %w", m.Name, err)
		}

		if err := r.applyTx(ctx, m.Name, statements(string(content))); err != nil {
			return count, fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		count++
	}
	return count, nil
}

// statements splits a migration file on semicolons. Migration files must not
// contain semicolons inside string literals or function bodies.
func statements(content string) []string {
	var out []string
	for stmt := range strings.SplitSeq(content, ";") {
		stmt = strings.TrimSpace(stripComments(stmt))
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func stripComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
