package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xslog"
)

var _ Service = (*Processor)(nil)

// Processor runs one delivery through verify, parse, dedup, apply and log.
type Processor struct {
	cfg      Config
	applier  Applier
	attempts storage.AttemptStore
	dedup    deduplicator
	flights  singleflight.Group
	now      func() time.Time
	newID    func() string
}

type Option func(*Processor)

// WithDedupStore enables the dedup lookup. Without it every delivery is applied.
func WithDedupStore(store storage.DedupStore) Option {
	return func(p *Processor) { p.dedup.store = store }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(cfg Config, applier Applier, attempts storage.AttemptStore, opts ...Option) *Processor {
	p := &Processor{
		cfg:      cfg,
		applier:  applier,
		attempts: attempts,
		dedup:    deduplicator{window: cfg.DedupWindow},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// outcome pairs the sender-facing result with the operator-facing cause.
type outcome struct {
	res   Result
	cause error
}

func ok(resourceID, note string) outcome {
	return outcome{res: Result{Success: true, StatusCode: http.StatusOK, ResourceID: resourceID, Note: note}}
}

func fail(status int, msg string, cause error) outcome {
	return outcome{res: Result{StatusCode: status, ErrorMessage: msg}, cause: cause}
}

func (p *Processor) Process(ctx context.Context, req Request) (res Result) {
	start := p.now()
	attempt := p.newAttempt(start, req)

	defer func() {
		if r := recover(); r != nil {
			p.finish(ctx, &attempt, fail(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), fmt.Errorf("panic: %v", r)), start)
			panic(r)
		}
	}()

	o := p.process(ctx, req, &attempt)
	return p.finish(ctx, &attempt, o, start)
}

// Reject records a delivery refused before its body was fully read. req.Body
// holds whatever arrived before the failure.
func (p *Processor) Reject(ctx context.Context, req Request, status int, msg string, cause error) Result {
	start := p.now()
	attempt := p.newAttempt(start, req)
	return p.finish(ctx, &attempt, fail(status, msg, cause), start)
}

func (p *Processor) newAttempt(start time.Time, req Request) storage.Attempt {
	return storage.Attempt{
		ID:            p.newID(),
		ReceivedAt:    start.UTC(),
		SourceIP:      req.SourceIP,
		RetryAttempt:  req.RetryAttempt,
		PayloadDigest: PayloadDigest(req.Body),
	}
}

func (p *Processor) process(ctx context.Context, req Request, attempt *storage.Attempt) outcome {
	if !p.cfg.Configured() {
		return fail(http.StatusInternalServerError, MsgNotConfigured, errors.New("webhook secret is not configured"))
	}

	if req.Signature == "" {
		return fail(http.StatusUnauthorized, MsgMissingSignature, errors.New("signature header absent"))
	}
	if !Verify(req.Body, req.Signature, p.cfg.Secret) {
		return fail(http.StatusUnauthorized, MsgInvalidSignature, errors.New("signature mismatch"))
	}

	event, err := ParseEvent(req.Body)
	attempt.EventID = event.EventID
	attempt.ResourceID = event.ResourceID
	attempt.EventType = string(event.Type)
	switch {
	case errors.Is(err, ErrUnsupportedEventType):
		o := ok(event.ResourceID, NoteIgnored)
		o.cause = err
		return o
	case errors.Is(err, ErrInvalidTimestamp):
		return fail(http.StatusBadRequest, MsgInvalidTimestamp, err)
	case err != nil:
		return fail(http.StatusBadRequest, MsgMalformed, err)
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = attempt.ReceivedAt.Truncate(time.Second)
	}

	key := event.DedupKey()
	attempt.DedupKey = key
	ctx = xslog.WithAttrs(ctx, xslog.EventID(event.EventID), xslog.ResourceID(event.ResourceID))

	if p.cfg.MaxRetries > 0 && req.RetryAttempt >= p.cfg.MaxRetries {
		xslog.FromContext(ctx).WarnContext(ctx, "sender retry budget exhausted",
			xslog.WebhookGroup(event.EventID, string(event.Type), event.ResourceID, req.RetryAttempt))
	}

	// Concurrent deliveries of the same key share one apply; followers see the
	// leader's outcome and, when it succeeded, report a duplicate.
	var leader bool
	v, _, _ := p.flights.Do(key, func() (any, error) {
		leader = true
		return p.apply(ctx, event, key), nil
	})
	o := v.(outcome)
	if !leader && o.res.Success {
		o.res.Duplicate = true
		o.res.Note = NoteDuplicate
	}
	return o
}

// apply runs on a context detached from the caller so that a sender hanging
// up does not abort a half-finished write. Timeout still bounds it.
func (p *Processor) apply(ctx context.Context, event Event, key string) outcome {
	ctx, cancel := p.withTimeout(context.WithoutCancel(ctx), p.cfg.Timeout)
	defer cancel()

	if p.dedup.seen(ctx, key) {
		o := ok(event.ResourceID, NoteDuplicate)
		o.res.Duplicate = true
		return o
	}

	var (
		applied bool
		err     error
	)
	if event.Type.IsDelete() {
		applied, err = p.applier.ApplyDelete(ctx, event)
	} else {
		applied, err = p.applier.ApplyCreateOrUpdate(ctx, event)
	}

	switch {
	case errors.Is(err, ErrPermanent):
		return fail(http.StatusUnprocessableEntity, MsgPermanent, err)
	case err != nil:
		return fail(http.StatusInternalServerError, MsgTransient, err)
	}

	p.dedup.record(ctx, key)

	if !applied {
		return ok(event.ResourceID, NoteStale)
	}
	return ok(event.ResourceID, "")
}

func (p *Processor) finish(ctx context.Context, attempt *storage.Attempt, o outcome, start time.Time) Result {
	res := o.res
	res.ProcessingTime = p.now().Sub(start)

	attempt.HTTPStatus = res.StatusCode
	attempt.Duplicate = res.Duplicate
	attempt.Note = res.Note
	attempt.DurationMS = res.ProcessingMS()
	if res.ResourceID != "" {
		attempt.ResourceID = res.ResourceID
	}
	if res.Success {
		attempt.Outcome = storage.OutcomeSuccess
	} else {
		attempt.Outcome = storage.OutcomeError
		attempt.ErrorMessage = res.ErrorMessage
		if o.cause != nil {
			attempt.ErrorMessage = o.cause.Error()
		}
	}

	p.logResult(ctx, *attempt, o)
	p.record(ctx, *attempt)

	return res
}

func (p *Processor) logResult(ctx context.Context, a storage.Attempt, o outcome) {
	logger := xslog.FromContext(ctx)
	attrs := []any{
		xslog.WebhookGroup(a.EventID, a.EventType, a.ResourceID, a.RetryAttempt),
		xslog.IP(a.SourceIP),
		xslog.Outcome(string(a.Outcome)),
		xslog.HTTPStatus(a.HTTPStatus),
		xslog.Duration(o.res.ProcessingTime),
	}
	if a.Duplicate {
		attrs = append(attrs, xslog.Duplicate(true))
	}
	if a.Note != "" {
		attrs = append(attrs, slog.String("note", a.Note))
	}
	if o.cause != nil {
		attrs = append(attrs, xslog.Error(o.cause))
	}

	switch {
	case a.HTTPStatus >= http.StatusInternalServerError:
		logger.ErrorContext(ctx, "webhook failed", attrs...)
	case !o.res.Success:
		logger.WarnContext(ctx, "webhook rejected", attrs...)
	default:
		logger.InfoContext(ctx, "webhook processed", attrs...)
	}
}

// record writes the attempt under LogTimeout. A failure here never changes the
// result already decided; it only surfaces in the service log.
func (p *Processor) record(ctx context.Context, a storage.Attempt) {
	if p.attempts == nil {
		return
	}

	ctx, cancel := p.withTimeout(context.WithoutCancel(ctx), p.cfg.LogTimeout)
	defer cancel()

	if err := p.attempts.Record(ctx, a); err != nil {
		xslog.FromContext(ctx).ErrorContext(ctx, "failed to record webhook attempt",
			xslog.Error(err),
			xslog.WebhookGroup(a.EventID, a.EventType, a.ResourceID, a.RetryAttempt),
			xslog.HTTPStatus(a.HTTPStatus),
		)
	}
}

func (p *Processor) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
