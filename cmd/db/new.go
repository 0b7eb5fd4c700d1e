package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garrettladley/adega/internal/migrations"
)

func newMigrationCmd() *cobra.Command {
	var driver string

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a new migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			drivers := []migrations.Driver{migrations.DriverPostgres, migrations.DriverSQLite}
			if driver != "" {
				d := migrations.Driver(driver)
				if d != migrations.DriverPostgres && d != migrations.DriverSQLite {
					return fmt.Errorf("unknown driver %q", driver)
				}
				drivers = []migrations.Driver{d}
			}

			for _, d := range drivers {
				filename, err := writeMigration(migrations.Dir(d), name)
				if err != nil {
					return err
				}
				fmt.Printf("Created migration: %s\n", filename)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "only create the file for this driver (postgres or sqlite)")
	return cmd
}

func writeMigration(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read migrations directory: %w", err)
	}

	nextNum := getNextMigrationNum(entries)
	filename := filepath.Join(dir, fmt.Sprintf("%06d_%s.sql", nextNum, name))

	if _, err := os.Stat(filename); err == nil {
		return "", fmt.Errorf("migration file already exists: %s", filename)
	}

	content := fmt.Sprintf("-- Migration: %s\n\n", name)
	if err := os.WriteFile(filename, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to create migration file: %w", err)
	}
	return filename, nil
}

func getNextMigrationNum(entries []os.DirEntry) int {
	var nextNum int
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		parts := strings.Split(entry.Name(), "_")
		if len(parts) == 0 {
			continue
		}
		var num int
		if _, err := fmt.Sscanf(parts[0], "%d", &num); err != nil {
			continue
		}
		if num > nextNum {
			nextNum = num
		}
	}
	return nextNum + 1
}
