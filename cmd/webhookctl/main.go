package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/garrettladley/adega/internal/config"
	"github.com/garrettladley/adega/internal/version"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "webhookctl",
		Short: "Sign and replay Bling webhook payloads against a running server",
	}
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(sendCmd())

	if err := fang.Execute(context.Background(), rootCmd,
		fang.WithVersion(version.Get()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

// readPayload reads the file at path, or stdin when path is "-".
func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return b, nil
}

// resolveSecret prefers the flag and falls back to BLING_WEBHOOK_SECRET.
func resolveSecret(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := config.Read()
	if err != nil {
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	if cfg.Bling.WebhookSecret == "" {
		return "", fmt.Errorf("no secret: pass --secret or set BLING_WEBHOOK_SECRET")
	}
	return cfg.Bling.WebhookSecret, nil
}
