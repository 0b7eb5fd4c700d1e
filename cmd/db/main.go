package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/garrettladley/adega/internal/config"
	"github.com/garrettladley/adega/internal/db"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}
	rootCmd.AddCommand(newMigrationCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := fang.Execute(context.Background(), rootCmd, fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM)); err != nil {
		os.Exit(1)
	}
}

// connect opens the database named by the environment without migrating it.
func connect(ctx context.Context) (config.Config, *db.Handle, error) {
	cfg, err := config.Read()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to read config: %w", err)
	}

	h, err := db.Connect(ctx, db.Config{
		Driver: cfg.Database.Driver,
		URL:    cfg.Database.URL,
		Path:   cfg.Database.Path,
	})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, h, nil
}
