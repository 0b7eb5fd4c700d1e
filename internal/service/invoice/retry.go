package invoice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/garrettladley/adega/internal/service/webhook"
	"github.com/garrettladley/adega/internal/storage"
)

// Classify marks integrity violations as permanent. Everything else,
// including deadline exhaustion, stays transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrConstraint) && !errors.Is(err, webhook.ErrPermanent) {
		return fmt.Errorf("%w: %w", webhook.ErrPermanent, err)
	}
	return err
}

// IsRetryable reports whether repeating the same write may succeed.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, webhook.ErrPermanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return isRetryableNetworkError(err) || isRetryableSystemError(err) || isRetryableDatabaseError(err)
}

func isRetryableNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryableSystemError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func isRetryableDatabaseError(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}
