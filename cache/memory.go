// Package cache provides caching implementations for resolved permission
// sets.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/id"
)

// Compile-time interface check.
var _ sentinel.Cache = (*Memory)(nil)

// Memory is an in-memory permission cache with TTL-based expiration,
// keyed by user ID.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int

	done     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	cached    *sentinel.CachedPermissions
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// WithSweepInterval starts a background sweep that removes expired entries
// at the given interval. Zero disables the sweep; expired entries are then
// dropped lazily on Get.
func WithSweepInterval(interval time.Duration) MemoryOption {
	return func(m *Memory) {
		if interval <= 0 {
			return
		}
		go m.sweep(interval)
	}
}

// NewMemory creates a new in-memory permission cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     sentinel.DefaultCacheTTL,
		maxSize: 10000,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached entry for a user, if present and unexpired.
func (m *Memory) Get(_ context.Context, userID id.UserID) (*sentinel.CachedPermissions, bool) {
	key := userID.String()
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.cached, true
}

// Set stores the entry for a user.
func (m *Memory) Set(_ context.Context, userID id.UserID, cached *sentinel.CachedPermissions) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Evict if at capacity.
	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[userID.String()] = &entry{
		cached:    cached,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// Invalidate removes the entry for a user.
func (m *Memory) Invalidate(_ context.Context, userID id.UserID) {
	m.mu.Lock()
	delete(m.entries, userID.String())
	m.mu.Unlock()
}

// Clear removes all entries.
func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	m.entries = make(map[string]*entry)
	m.mu.Unlock()
}

// Len returns the number of entries currently held, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stop terminates the background sweep, if running.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			m.evictExpired()
			m.mu.Unlock()
		}
	}
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
