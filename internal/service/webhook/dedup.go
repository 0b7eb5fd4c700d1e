package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xslog"
)

// DedupKey identifies a delivery of eventID for resourceID.
func DedupKey(eventID, resourceID string) string {
	sum := sha256.Sum256([]byte(eventID + ":" + resourceID))
	return hex.EncodeToString(sum[:])
}

// PayloadDigest is the hex SHA-256 of the raw body, kept on every attempt.
func PayloadDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// deduplicator wraps a DedupStore. Store errors are logged and treated as
// "not seen": the applier is idempotent, so a missed dedup only costs a
// redundant write. A non-positive window disables dedup for every store alike.
type deduplicator struct {
	store  storage.DedupStore
	window time.Duration
}

func (d deduplicator) enabled() bool { return d.store != nil && d.window > 0 }

func (d deduplicator) seen(ctx context.Context, key string) bool {
	if !d.enabled() {
		return false
	}
	seen, err := d.store.Seen(ctx, key)
	if err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "dedup lookup failed, continuing",
			xslog.DedupKey(key), xslog.Error(err))
		return false
	}
	return seen
}

func (d deduplicator) record(ctx context.Context, key string) {
	if !d.enabled() {
		return
	}
	if err := d.store.Record(ctx, key, d.window); err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "dedup record failed",
			xslog.DedupKey(key), xslog.Error(err))
	}
}
