package storage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ Backend = (*MemoryBackend)(nil)

type MemoryBackend struct {
	// Rate limiting
	limiters  map[string]*rate.Limiter
	limiterMu sync.RWMutex
	rateLimit rate.Limit
	rateBurst int

	// OAuth state -> expiry
	states   map[string]time.Time
	statesMu sync.Mutex

	now func() time.Time

	// Cleanup
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryBackend(ratePerSec float64, burst int) *MemoryBackend {
	m := &MemoryBackend{
		limiters:  make(map[string]*rate.Limiter),
		rateLimit: rate.Limit(ratePerSec),
		rateBurst: burst,
		states:    make(map[string]time.Time),
		now:       time.Now,
		done:      make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *MemoryBackend) Allow(_ context.Context, key string) (RateLimitResult, error) {
	limiter := m.limiter(key)
	if limiter.Allow() {
		return RateLimitResult{Allowed: true}, nil
	}

	retryAfter := time.Second
	if m.rateLimit > 0 {
		retryAfter = time.Duration(float64(time.Second) / float64(m.rateLimit))
	}
	return RateLimitResult{Allowed: false, RetryAfter: retryAfter}, nil
}

func (m *MemoryBackend) limiter(key string) *rate.Limiter {
	m.limiterMu.RLock()
	limiter, exists := m.limiters[key]
	m.limiterMu.RUnlock()

	if exists {
		return limiter
	}

	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()

	limiter, exists = m.limiters[key]
	if exists {
		return limiter
	}

	limiter = rate.NewLimiter(m.rateLimit, m.rateBurst)
	m.limiters[key] = limiter
	return limiter
}

func (m *MemoryBackend) SetState(_ context.Context, state string, ttl time.Duration) error {
	m.statesMu.Lock()
	m.states[state] = m.now().Add(ttl)
	m.statesMu.Unlock()
	return nil
}

func (m *MemoryBackend) ConsumeState(_ context.Context, state string) error {
	m.statesMu.Lock()
	expiry, ok := m.states[state]
	delete(m.states, state)
	m.statesMu.Unlock()

	if !ok || !m.now().Before(expiry) {
		return ErrNotFound
	}
	return nil
}

func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryBackend) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictExpired()
		case <-m.done:
			return
		}
	}
}

func (m *MemoryBackend) evictExpired() {
	now := m.now()

	m.statesMu.Lock()
	for state, expiry := range m.states {
		if !now.Before(expiry) {
			delete(m.states, state)
		}
	}
	m.statesMu.Unlock()
}
