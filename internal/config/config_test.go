package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettladley/adega/internal/migrations"
)

func TestReadDefaults(t *testing.T) {
	t.Setenv("BLING_WEBHOOK_SECRET", "s3cret")

	cfg, err := Read()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "s3cret", cfg.Bling.WebhookSecret)
	assert.Equal(t, 3, cfg.Webhook.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout())
	assert.Equal(t, 2*time.Second, cfg.Webhook.LogTimeout())
	assert.Equal(t, 24*time.Hour, cfg.Webhook.DedupWindow)
	assert.Equal(t, migrations.DriverSQLite, cfg.Database.Driver)
	assert.False(t, cfg.ERPConfigured())
	assert.Equal(t, "http://localhost:8080/auth/bling/callback", cfg.GetRedirectURL())
}

func TestReadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown driver",
			env:     map[string]string{"DATABASE_DRIVER": "mysql"},
			wantErr: "DATABASE_DRIVER must be one of: postgres, sqlite",
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"DATABASE_DRIVER": "postgres"},
			wantErr: "DATABASE_URL is required for the postgres driver",
		},
		{
			name:    "zero timeout",
			env:     map[string]string{"WEBHOOK_TIMEOUT_MS": "0"},
			wantErr: "WEBHOOK_TIMEOUT_MS must be >= 1",
		},
		{
			name:    "zero dedup window",
			env:     map[string]string{"WEBHOOK_DEDUP_WINDOW": "0s"},
			wantErr: "WEBHOOK_DEDUP_WINDOW must be > 0",
		},
		{
			name:    "zero rate",
			env:     map[string]string{"RATE_LIMIT": "0"},
			wantErr: "RATE_LIMIT must be > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Read()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExplicitRedirectURL(t *testing.T) {
	cfg := Config{BaseURL: "https://adega.example", Bling: Bling{RedirectURL: "https://x/cb"}}
	assert.Equal(t, "https://x/cb", cfg.GetRedirectURL())

	cfg.Bling.RedirectURL = ""
	assert.Equal(t, "https://adega.example/auth/bling/callback", cfg.GetRedirectURL())
}
