package storage

import (
	"context"
	"time"
)

type InvoiceKind string

const (
	InvoiceKindInvoice         InvoiceKind = "invoice"
	InvoiceKindConsumerInvoice InvoiceKind = "consumer_invoice"
)

// Invoice is the persisted view of an ERP invoice. A non-nil DeletedAt marks a
// tombstone that still takes part in occurredAt ordering.
type Invoice struct {
	Kind       InvoiceKind
	ResourceID string
	TypeCode   int
	StatusCode int
	Number     string
	Series     string
	Total      string
	ContactID  string
	StoreID    string
	IssuedAt   *time.Time
	OccurredAt time.Time
	DeletedAt  *time.Time
}

func (i Invoice) Deleted() bool { return i.DeletedAt != nil }

// InvoiceStore writes are compare-and-set on OccurredAt: a write older than the
// stored row is skipped and reported with applied=false. On equal timestamps a
// tombstone wins over an upsert.
type InvoiceStore interface {
	Upsert(ctx context.Context, inv Invoice) (applied bool, err error)
	Delete(ctx context.Context, kind InvoiceKind, resourceID string, occurredAt time.Time) (applied bool, err error)
	Get(ctx context.Context, kind InvoiceKind, resourceID string) (Invoice, error)
}

func upsertWins(stored Invoice, incoming time.Time) bool {
	if stored.Deleted() {
		return stored.OccurredAt.Before(incoming)
	}
	return !stored.OccurredAt.After(incoming)
}

func deleteWins(stored Invoice, incoming time.Time) bool {
	return !stored.OccurredAt.After(incoming)
}
