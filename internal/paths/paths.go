package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dotLocal = ".local"
	share    = "share"
	appName  = "adega"
	dbName   = "adega.db"
)

// Dir is the per-user data directory used by the single-file sqlite mode.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dotLocal, share, appName), nil
}

// DB resolves the sqlite file. An explicit path wins; otherwise the default
// file inside Dir is used and Dir is created.
func DB(explicit string) (string, error) {
	if explicit != "" {
		if err := os.MkdirAll(filepath.Dir(explicit), 0o700); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return explicit, nil
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", appName, err)
	}
	return filepath.Join(dir, dbName), nil
}
