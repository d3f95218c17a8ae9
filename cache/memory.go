// Package cache provides caching implementations for authorization results.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/authsome"
)

// Compile-time interface check.
var _ authsome.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	resolution *authsome.Resolution
	expiresAt  time.Time
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

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     5 * time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a cached resolution. The caller gets its own copy: the
// engine stamps evaluation time on the result, and the shared entry must
// not be written by concurrent hits.
func (m *Memory) Get(_ context.Context, organisationID string, req *authsome.AuthRequest) (*authsome.Resolution, bool) {
	key := cacheKey(organisationID, req)
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
	cp := *e.resolution
	return &cp, true
}

// Set stores a resolution in the cache.
func (m *Memory) Set(_ context.Context, organisationID string, req *authsome.AuthRequest, res *authsome.Resolution) {
	key := cacheKey(organisationID, req)
	m.mu.Lock()
	defer m.mu.Unlock()

	// Evict if at capacity.
	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			// Evict oldest entry.
			m.evictOne()
		}
	}

	m.entries[key] = &entry{
		resolution: res,
		expiresAt:  time.Now().Add(m.ttl),
	}
}

// InvalidateOrganisation removes all cached resolutions for an organisation.
func (m *Memory) InvalidateOrganisation(_ context.Context, organisationID string) {
	prefix := organisationID + ":"
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(m.entries, k)
		}
	}
}

// InvalidateAccount removes all cached resolutions for a specific account.
func (m *Memory) InvalidateAccount(_ context.Context, organisationID, accountID string) {
	prefix := fmt.Sprintf("%s:%s:", organisationID, accountID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.entries, k)
		}
	}
}

func cacheKey(organisationID string, req *authsome.AuthRequest) string {
	return fmt.Sprintf("%s:%s:%s:%s",
		organisationID,
		req.AccountID,
		req.Action,
		req.Resource,
	)
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
