package storage

import (
	"context"
	"time"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeError
}

// Attempt is the audit record of one inbound webhook call.
type Attempt struct {
	ID            string    `json:"id"`
	ReceivedAt    time.Time `json:"receivedAt"`
	SourceIP      string    `json:"sourceIp"`
	RetryAttempt  int       `json:"retryAttempt"`
	Outcome       Outcome   `json:"outcome"`
	HTTPStatus    int       `json:"httpStatus"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	ResourceID    string    `json:"resourceId,omitempty"`
	EventID       string    `json:"eventId,omitempty"`
	EventType     string    `json:"eventType,omitempty"`
	DedupKey      string    `json:"dedupKey,omitempty"`
	PayloadDigest string    `json:"payloadDigest"`
	Duplicate     bool      `json:"duplicate"`
	Note          string    `json:"note,omitempty"`
	DurationMS    int64     `json:"durationMs"`
}

type AttemptFilter struct {
	Outcome   Outcome
	EventType string
	Start     *time.Time
	End       *time.Time
}

func (f AttemptFilter) match(a Attempt) bool {
	if f.Outcome != "" && a.Outcome != f.Outcome {
		return false
	}
	if f.EventType != "" && a.EventType != f.EventType {
		return false
	}
	if f.Start != nil && a.ReceivedAt.Before(*f.Start) {
		return false
	}
	if f.End != nil && a.ReceivedAt.After(*f.End) {
		return false
	}
	return true
}

type Page struct {
	Page     int
	PageSize int
}

func (p Page) offset() int { return (p.Page - 1) * p.PageSize }

type AttemptPage struct {
	Attempts []Attempt
	Total    int
	Page     int
	PageSize int
}

func (p AttemptPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

type AttemptStore interface {
	Record(ctx context.Context, a Attempt) error

	// List returns attempts matching filter, newest first.
	List(ctx context.Context, filter AttemptFilter, page Page) (AttemptPage, error)

	// SucceededSince reports whether a successful attempt carrying dedupKey was
	// received at or after since.
	SucceededSince(ctx context.Context, dedupKey string, since time.Time) (bool, error)
}
