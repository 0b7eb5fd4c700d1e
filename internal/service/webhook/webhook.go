package webhook

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMalformedPayload     = errors.New("malformed payload")
	ErrUnsupportedEventType = errors.New("unsupported event type")
	ErrInvalidTimestamp     = errors.New("invalid timestamp")

	// ErrPermanent marks an apply failure that redelivery cannot fix.
	// Any other apply error is treated as transient.
	ErrPermanent = errors.New("permanent apply failure")
)

// Messages returned to the sender. They never carry internal detail.
const (
	MsgNotConfigured    = "webhook endpoint is not configured"
	MsgMissingSignature = "missing signature"
	MsgInvalidSignature = "invalid signature"
	MsgMalformed        = "malformed payload"
	MsgInvalidTimestamp = "invalid timestamp"
	MsgTransient        = "temporary failure, retry later"
	MsgPermanent        = "event rejected"
	MsgTooLarge         = "payload too large"
	MsgUnreadable       = "failed to read request body"

	NoteIgnored   = "event type ignored"
	NoteDuplicate = "duplicate delivery"
	NoteStale     = "older than stored state"
)

type Request struct {
	Body         []byte
	Signature    string
	SourceIP     string
	RetryAttempt int
}

// Result is the outcome of one delivery. Expected failures are reported here,
// never as errors.
type Result struct {
	Success        bool
	StatusCode     int
	ResourceID     string
	ErrorMessage   string
	Note           string
	Duplicate      bool
	ProcessingTime time.Duration
}

func (r Result) ProcessingMS() int64 { return r.ProcessingTime.Milliseconds() }

type Config struct {
	Secret string
	// MaxRetries is the sender's redelivery budget. It is reported, not enforced.
	MaxRetries  int
	Timeout     time.Duration
	LogTimeout  time.Duration
	DedupWindow time.Duration
}

func (c Config) Configured() bool { return c.Secret != "" }

// Applier commits an event's side effect on invoice state. Implementations
// must be idempotent. applied=false means the write lost an ordering race.
type Applier interface {
	ApplyCreateOrUpdate(ctx context.Context, e Event) (applied bool, err error)
	ApplyDelete(ctx context.Context, e Event) (applied bool, err error)
}

type Service interface {
	Process(ctx context.Context, req Request) Result
	Reject(ctx context.Context, req Request, status int, msg string, cause error) Result
}
