package storage

import (
	"context"
	"slices"
	"sync"
	"time"
)

type invoiceKey struct {
	kind       InvoiceKind
	resourceID string
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps invoices, attempts and the ERP token in process memory.
// It backs tests and single-process development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices map[invoiceKey]Invoice
	attempts []Attempt
	token    *Token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices: make(map[invoiceKey]Invoice),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Upsert(_ context.Context, inv Invoice) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := invoiceKey{kind: inv.Kind, resourceID: inv.ResourceID}
	if stored, ok := s.invoices[key]; ok && !upsertWins(stored, inv.OccurredAt) {
		return false, nil
	}

	inv.DeletedAt = nil
	s.invoices[key] = inv
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, kind InvoiceKind, resourceID string, occurredAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := invoiceKey{kind: kind, resourceID: resourceID}
	stored, ok := s.invoices[key]
	if ok && !deleteWins(stored, occurredAt) {
		return false, nil
	}
	if !ok {
		stored = Invoice{Kind: kind, ResourceID: resourceID}
	}

	deletedAt := occurredAt
	stored.OccurredAt = occurredAt
	stored.DeletedAt = &deletedAt
	s.invoices[key] = stored
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, kind InvoiceKind, resourceID string) (Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[invoiceKey{kind: kind, resourceID: resourceID}]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (s *MemoryStore) Record(_ context.Context, a Attempt) error {
	s.mu.Lock()
	s.attempts = append(s.attempts, a)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context, filter AttemptFilter, page Page) (AttemptPage, error) {
	s.mu.RLock()
	matched := make([]Attempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		if filter.match(a) {
			matched = append(matched, a)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b Attempt) int {
		return b.ReceivedAt.Compare(a.ReceivedAt)
	})

	result := AttemptPage{
		Attempts: []Attempt{},
		Total:    len(matched),
		Page:     page.Page,
		PageSize: page.PageSize,
	}

	start := page.offset()
	if start < 0 || start >= len(matched) {
		return result, nil
	}
	end := min(start+page.PageSize, len(matched))
	result.Attempts = matched[start:end]
	return result, nil
}

func (s *MemoryStore) SucceededSince(_ context.Context, dedupKey string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.attempts {
		if a.DedupKey == dedupKey && a.Outcome == OutcomeSuccess && !a.ReceivedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetToken(_ context.Context) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return Token{}, ErrNotFound
	}
	return *s.token, nil
}

func (s *MemoryStore) UpsertToken(_ context.Context, t Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	s.token = &t
	return nil
}

// Attempts returns a copy of every recorded attempt in insertion order.
func (s *MemoryStore) Attempts() []Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.attempts)
}
