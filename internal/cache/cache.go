// Package cache provides the TTL key-value store behind the knowledge
// aggregator: lazy expiry on read, structured keys, and forge-scoped bulk
// invalidation through a secondary index.
package cache

import (
	"sync"
	"time"

	"github.com/forgefit/brain/internal/knowledge"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Key is a structured cache key. Structured tuples replace opaque strings
// so forge-scoped eviction can never match an unrelated entry.
type Key struct {
	UserID string
	Forge  knowledge.Forge
	Subkey string
}

type entry struct {
	data      any
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Stats summarizes cache occupancy at a point in time.
type Stats struct {
	Total   int `json:"total"`
	Fresh   int `json:"fresh"`
	Expired int `json:"expired"`
}

// Manager is a concurrency-safe TTL cache. Entries are never swept in the
// background; validity is evaluated lazily on read.
type Manager struct {
	mu      sync.RWMutex
	entries map[Key]entry
	byForge map[knowledge.Forge]map[Key]struct{}
	clock   Clock
}

// New creates a Manager using the wall clock.
func New() *Manager {
	return NewWithClock(realClock{})
}

// NewWithClock creates a Manager with a custom clock (for testing).
func NewWithClock(clock Clock) *Manager {
	return &Manager{
		entries: make(map[Key]entry),
		byForge: make(map[knowledge.Forge]map[Key]struct{}),
		clock:   clock,
	}
}

// Get returns the cached value for key, or (nil, false) if the entry is
// missing or stale. A stale entry is evicted on the spot.
func (m *Manager) Get(key Key) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(m.clock.Now()) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// replaced the entry with a fresh one.
		if cur, ok := m.entries[key]; ok && cur.expired(m.clock.Now()) {
			m.remove(key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

// Set stores data under key with the given TTL, replacing any previous
// entry.
func (m *Manager) Set(key Key, data any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{data: data, createdAt: m.clock.Now(), ttl: ttl}
	idx, ok := m.byForge[key.Forge]
	if !ok {
		idx = make(map[Key]struct{})
		m.byForge[key.Forge] = idx
	}
	idx[key] = struct{}{}
}

// Delete removes a single entry. Missing keys are a no-op.
func (m *Manager) Delete(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
}

// InvalidateForge removes every entry tagged with forge, leaving all other
// entries untouched. Returns the number of evicted entries.
func (m *Manager) InvalidateForge(forge knowledge.Forge) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.byForge[forge]
	n := len(idx)
	for key := range idx {
		delete(m.entries, key)
	}
	delete(m.byForge, forge)
	return n
}

// InvalidateUser removes every entry belonging to one user across all
// forges. Used on user/session change.
func (m *Manager) InvalidateUser(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.entries {
		if key.UserID == userID {
			m.remove(key)
			n++
		}
	}
	return n
}

// Clear drops every entry.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[Key]entry)
	m.byForge = make(map[knowledge.Forge]map[Key]struct{})
}

// GetStats counts total, fresh, and expired entries without evicting.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.clock.Now()
	s := Stats{Total: len(m.entries)}
	for _, e := range m.entries {
		if e.expired(now) {
			s.Expired++
		} else {
			s.Fresh++
		}
	}
	return s
}

// IsHealthy reports whether the cache is serving fresh data or is simply
// empty. A cache full of nothing but expired entries is unhealthy.
func (m *Manager) IsHealthy() bool {
	s := m.GetStats()
	return s.Fresh > 0 || s.Total == 0
}

// remove deletes key from both maps. Caller holds the write lock.
func (m *Manager) remove(key Key) {
	delete(m.entries, key)
	if idx, ok := m.byForge[key.Forge]; ok {
		delete(idx, key)
		if len(idx) == 0 {
			delete(m.byForge, key.Forge)
		}
	}
}
