package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	appenv "github.com/garrettladley/adega/internal/env"
	"github.com/garrettladley/adega/internal/migrations"
	"github.com/garrettladley/adega/internal/validator"
)

type Config struct {
	Port      string             `env:"PORT" envDefault:"8080"`
	Env       appenv.Environment `env:"ENV" envDefault:"development"`
	BaseURL   string             `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Bling     Bling              `envPrefix:"BLING_"`
	Webhook   Webhook            `envPrefix:"WEBHOOK_"`
	Database  Database           `envPrefix:"DATABASE_"`
	Redis     Redis              `envPrefix:"REDIS_"`
	RateLimit RateLimit          `envPrefix:"RATE_"`
	// OperatorAPIKey guards the attempt log listing when set.
	OperatorAPIKey string `env:"OPERATOR_API_KEY"`
}

type Bling struct {
	// WebhookSecret may be empty: the pipeline then refuses every delivery with
	// a configuration error instead of failing to boot.
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	ClientID      string `env:"CLIENT_ID"`
	ClientSecret  string `env:"CLIENT_SECRET"`
	RedirectURL   string `env:"REDIRECT_URL"`
}

type Webhook struct {
	MaxRetries   int           `env:"MAX_RETRIES" envDefault:"3" validate:"gte=0"`
	TimeoutMS    int           `env:"TIMEOUT_MS" envDefault:"5000" validate:"gte=1"`
	LogTimeoutMS int           `env:"LOG_TIMEOUT_MS" envDefault:"2000" validate:"gte=1"`
	DedupWindow  time.Duration `env:"DEDUP_WINDOW" envDefault:"24h" validate:"gt=0"`
}

func (w Webhook) Timeout() time.Duration    { return time.Duration(w.TimeoutMS) * time.Millisecond }
func (w Webhook) LogTimeout() time.Duration { return time.Duration(w.LogTimeoutMS) * time.Millisecond }

type Database struct {
	Driver migrations.Driver `env:"DRIVER" envDefault:"sqlite" validate:"oneof=postgres sqlite"`
	URL    string            `env:"URL"`
	Path   string            `env:"PATH"`
}

type Redis struct {
	URL string `env:"URL"`
}

type RateLimit struct {
	Limit float64 `env:"LIMIT" envDefault:"10" validate:"gt=0"`
	Burst int     `env:"BURST" envDefault:"20" validate:"gte=1"`
}

func (c Config) GetClientID() string     { return c.Bling.ClientID }
func (c Config) GetClientSecret() string { return c.Bling.ClientSecret }
func (c Config) GetRedirectURL() string {
	if c.Bling.RedirectURL != "" {
		return c.Bling.RedirectURL
	}
	return strings.TrimSuffix(c.BaseURL, "/") + "/auth/bling/callback"
}

func (c Config) ERPConfigured() bool {
	return c.Bling.ClientID != "" && c.Bling.ClientSecret != ""
}

func Read() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	fields := validator.Merge(
		prefixed("WEBHOOK_", validator.StructFields(c.Webhook)),
		prefixed("DATABASE_", validator.StructFields(c.Database)),
		prefixed("RATE_", validator.StructFields(c.RateLimit)),
	)
	if c.Database.Driver == migrations.DriverPostgres && c.Database.URL == "" {
		fields = validator.Merge(fields, map[string]string{"DATABASE_URL": "is required for the postgres driver"})
	}
	if len(fields) == 0 {
		return nil
	}

	keys := slices.Sorted(maps.Keys(fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+fields[k])
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(parts, "; "))
}

func prefixed(prefix string, fields map[string]string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[prefix+k] = v
	}
	return out
}
