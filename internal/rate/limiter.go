package rate

import (
	"sync"
	"time"
)

// Limiter is a fixed-window counter keyed by caller, e.g. "login:203.0.113.9".
type Limiter interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*window
	now     func() time.Time
	allows  int
}

type window struct {
	count   int
	resetAt time.Time
	length  time.Duration
}

// sweepEvery is how many Allow calls pass between expired-bucket sweeps.
const sweepEvery = 1024

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*window), now: time.Now}
}

// Allow consumes one slot for key. When the window is full it reports false
// and the time until the window resets. A non-positive limit allows all.
func (m *MemoryLimiter) Allow(key string, limit int, length time.Duration) (bool, time.Duration) {
	if limit <= 0 {
		return true, 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.allows++
	if m.allows%sweepEvery == 0 {
		m.sweep(now)
	}

	w, ok := m.buckets[key]
	if !ok || !now.Before(w.resetAt) || w.length != length {
		w = &window{resetAt: now.Add(length), length: length}
		m.buckets[key] = w
	}

	if w.count >= limit {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, w.resetAt.Sub(now)
}

// Len reports how many keys are tracked.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *MemoryLimiter) sweep(now time.Time) {
	for key, w := range m.buckets {
		if !now.Before(w.resetAt) {
			delete(m.buckets, key)
		}
	}
}
