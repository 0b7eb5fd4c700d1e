package xslog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	appenv "github.com/garrettladley/adega/internal/env"
)

type Level string

var _ fmt.Stringer = (*Level)(nil)

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

const (
	EnvKey     = "LOG_LEVEL"
	EnvModeKey = "ENV"
)

const Default = LevelInfo

func Parse(s string) (Level, error) {
	switch Level(strings.ToLower(s)) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo:
		return LevelInfo, nil
	case LevelWarn:
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	default:
		return "", fmt.Errorf("invalid log level: %q (valid: debug, info, warn, error)", s)
	}
}

func FromEnv() Level {
	s := os.Getenv(EnvKey)
	if s == "" {
		return Default
	}
	level, err := Parse(s)
	if err != nil {
		return Default
	}
	return level
}

func (l Level) ToSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l Level) String() string {
	return string(l)
}

// NewLogger writes JSON in production and human-readable text everywhere else.
func NewLogger(w io.Writer, level Level, environment appenv.Environment) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level.ToSlog()}
	if environment.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func NewLoggerFromEnv(w io.Writer) *slog.Logger {
	environment := appenv.Environment(os.Getenv(EnvModeKey))
	if environment == "" {
		environment = appenv.Production
	}
	return NewLogger(w, FromEnv(), environment)
}
