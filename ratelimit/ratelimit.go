package ratelimit

import (
	"sync"
	"time"
)

// Limiter bounds how often one caller may perform a guarded operation.
type Limiter interface {
	// Allow reports whether the caller may proceed now. It never blocks.
	Allow(caller string) bool

	// Close shuts down the limiter. Allow returns false afterwards.
	Close() error
}

// Config holds limiter configuration.
type Config struct {
	// Capacity is the number of operations allowed per window per caller.
	// Default: 10
	Capacity int

	// Window is the refill period. Default: 1m
	Window time.Duration

	// MaxIdle is how long an untouched caller bucket survives before
	// pruning. Default: 10m
	MaxIdle time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity: 10,
		Window:   time.Minute,
		MaxIdle:  10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = d.MaxIdle
	}
	return c
}

// bucket is a per-caller token bucket.
type bucket struct {
	available  float64
	lastRefill time.Time
	lastUsed   time.Time
}

// MemoryLimiter is a local token-bucket limiter keyed by caller. Buckets
// are created full on first use and pruned after sitting idle. It is
// safe for concurrent use.
type MemoryLimiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	closed  bool

	nowFunc func() time.Time
}

// NewMemoryLimiter creates a per-caller token bucket limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg.withDefaults(),
		buckets: make(map[string]*bucket),
		nowFunc: time.Now,
	}
}

// Allow implements Limiter.
func (m *MemoryLimiter) Allow(caller string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	now := m.nowFunc()
	b, ok := m.buckets[caller]
	if !ok {
		m.prune(now)
		b = &bucket{available: float64(m.cfg.Capacity), lastRefill: now}
		m.buckets[caller] = b
	}

	refill := float64(m.cfg.Capacity) * float64(now.Sub(b.lastRefill)) / float64(m.cfg.Window)
	if refill > 0 {
		b.available += refill
		if b.available > float64(m.cfg.Capacity) {
			b.available = float64(m.cfg.Capacity)
		}
		b.lastRefill = now
	}
	b.lastUsed = now

	if b.available < 1 {
		return false
	}
	b.available--
	return true
}

// prune drops buckets idle past MaxIdle. Called with the lock held,
// only on the bucket-creation path so steady-state calls stay cheap.
func (m *MemoryLimiter) prune(now time.Time) {
	for caller, b := range m.buckets {
		if now.Sub(b.lastUsed) > m.cfg.MaxIdle {
			delete(m.buckets, caller)
		}
	}
}

// Close implements Limiter.
func (m *MemoryLimiter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.buckets = nil
	return nil
}

var _ Limiter = (*MemoryLimiter)(nil)
