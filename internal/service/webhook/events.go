package webhook

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	go_json "github.com/goccy/go-json"

	"github.com/garrettladley/adega/internal/storage"
)

// TimestampLayout is the sender's wall-clock format, always UTC.
const TimestampLayout = "2006-01-02 15:04:05"

type EventType string

const (
	InvoiceCreated         EventType = "invoice.created"
	InvoiceUpdated         EventType = "invoice.updated"
	InvoiceDeleted         EventType = "invoice.deleted"
	ConsumerInvoiceCreated EventType = "consumer_invoice.created"
	ConsumerInvoiceUpdated EventType = "consumer_invoice.updated"
	ConsumerInvoiceDeleted EventType = "consumer_invoice.deleted"
)

var eventTypes = map[string]EventType{
	string(InvoiceCreated):         InvoiceCreated,
	string(InvoiceUpdated):         InvoiceUpdated,
	string(InvoiceDeleted):         InvoiceDeleted,
	string(ConsumerInvoiceCreated): ConsumerInvoiceCreated,
	string(ConsumerInvoiceUpdated): ConsumerInvoiceUpdated,
	string(ConsumerInvoiceDeleted): ConsumerInvoiceDeleted,
}

func (t EventType) Kind() storage.InvoiceKind {
	if strings.HasPrefix(string(t), "consumer_invoice.") {
		return storage.InvoiceKindConsumerInvoice
	}
	return storage.InvoiceKindInvoice
}

func (t EventType) IsDelete() bool {
	return t == InvoiceDeleted || t == ConsumerInvoiceDeleted
}

// InvoiceFields is the normalized subset of the invoice payload that is persisted.
type InvoiceFields struct {
	TypeCode   int
	StatusCode int
	Number     string
	Series     string
	Total      string
	ContactID  string
	StoreID    string
	IssuedAt   *time.Time
}

// Event is one parsed delivery. OccurredAt is zero when the payload had no date.
type Event struct {
	EventID    string
	Type       EventType
	OccurredAt time.Time
	ResourceID string
	Invoice    InvoiceFields
}

func (e Event) DedupKey() string { return DedupKey(e.EventID, e.ResourceID) }

type rawPayload struct {
	EventID flexString  `json:"eventId"`
	Date    *string     `json:"date"`
	Event   string      `json:"event"`
	Data    *rawInvoice `json:"data"`
}

type rawInvoice struct {
	ID          flexString `json:"id"`
	Tipo        *int       `json:"tipo"`
	Situacao    *int       `json:"situacao"`
	Numero      flexString `json:"numero"`
	Serie       flexString `json:"serie"`
	DataEmissao string     `json:"dataEmissao"`
	ValorNota   flexString `json:"valorNota"`
	Contato     *rawRef    `json:"contato"`
	Loja        *rawRef    `json:"loja"`
}

type rawRef struct {
	ID flexString `json:"id"`
}

func (r *rawRef) id() string {
	if r == nil {
		return ""
	}
	return string(r.ID)
}

// flexString accepts a JSON string or number. Ids arrive as either.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := go_json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n go_json.Number
	if err := go_json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// ParseEvent decodes a raw body. Checks run in a fixed order: decodable JSON
// with an event name, a supported event name, required ids, then the date.
// On ErrUnsupportedEventType the returned Event still carries whatever ids
// were present so the attempt can be logged with them.
func ParseEvent(body []byte) (Event, error) {
	var raw rawPayload
	if err := go_json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	name := strings.TrimSpace(raw.Event)
	if name == "" {
		return Event{}, fmt.Errorf("%w: missing event", ErrMalformedPayload)
	}

	e := Event{EventID: string(raw.EventID)}
	if raw.Data != nil {
		e.ResourceID = string(raw.Data.ID)
	}

	t, ok := eventTypes[name]
	if !ok {
		return e, fmt.Errorf("%w: %q", ErrUnsupportedEventType, name)
	}
	e.Type = t

	if e.EventID == "" {
		return e, fmt.Errorf("%w: missing eventId", ErrMalformedPayload)
	}
	if e.ResourceID == "" {
		return e, fmt.Errorf("%w: missing data.id", ErrMalformedPayload)
	}

	if raw.Date != nil {
		occurredAt, err := ParseTimestamp(*raw.Date)
		if err != nil {
			return e, err
		}
		e.OccurredAt = occurredAt
	}

	e.Invoice = normalizeInvoice(raw.Data)
	return e, nil
}

func normalizeInvoice(d *rawInvoice) InvoiceFields {
	f := InvoiceFields{
		Number:    string(d.Numero),
		Series:    string(d.Serie),
		Total:     string(d.ValorNota),
		ContactID: d.Contato.id(),
		StoreID:   d.Loja.id(),
	}
	if d.Tipo != nil {
		f.TypeCode = *d.Tipo
	}
	if d.Situacao != nil {
		f.StatusCode = *d.Situacao
	}
	// issue date is informational; an unreadable one is dropped rather than
	// failing the delivery.
	if issued, err := ParseTimestamp(d.DataEmissao); err == nil {
		f.IssuedAt = &issued
	} else if issued, err := time.Parse(time.DateOnly, strings.TrimSpace(d.DataEmissao)); err == nil {
		f.IssuedAt = &issued
	}
	return f
}

// ParseTimestamp reads the sender's "YYYY-MM-DD HH:MM:SS" format as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return t, nil
}

// FormatTimestamp renders t in the sender's format. Sub-second precision is dropped.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
