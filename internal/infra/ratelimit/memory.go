package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"truthcert/internal/domain"
)

// ErrCapacity is returned when every tracked window is still live and the
// limiter cannot admit another key.
var ErrCapacity = errors.New("rate limiter capacity exceeded")

type window struct {
	count int
	end   time.Time
}

type MemoryConfig struct {
	Now     func() time.Time
	MaxKeys int
}

// Memory is a fixed-window limiter for single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &Memory{
		now:     cfg.Now,
		windows: make(map[string]*window),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.end) {
		delete(m.windows, key)
		if len(m.windows) >= m.maxKeys {
			m.sweep(now)
		}
		if len(m.windows) >= m.maxKeys {
			return domain.RateLimitDecision{}, ErrCapacity
		}
		w = &window{end: now.Add(span)}
		m.windows[key] = w
	}

	if w.count >= limit {
		return domain.RateLimitDecision{Allowed: false, Limit: limit, ResetAt: w.end}, nil
	}
	w.count++
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetAt:   w.end,
	}, nil
}

func (m *Memory) sweep(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.end) {
			delete(m.windows, key)
		}
	}
}
