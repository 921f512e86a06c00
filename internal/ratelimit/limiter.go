// Package ratelimit provides fixed-window call admission control for
// provider and tool invocations.
package ratelimit

import (
	"sync"
	"time"
)

// Record holds the call count for one key within its current window.
// A record lives until its window expires and is lazily replaced on the
// next call for the key.
type Record struct {
	Count   int
	ResetAt time.Time
}

// Store is the pluggable key→record backend. The in-memory MemoryStore can
// be swapped for a shared external store without changing the limiter's
// algorithm. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the record for a key and whether one exists.
	Get(key string) (Record, bool)

	// Put stores the record for a key.
	Put(key string, rec Record)
}

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Put implements Store.
func (s *MemoryStore) Put(key string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter implements fixed-window admission control over a Store.
type Limiter struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

// NewLimiter creates a limiter backed by the given store. A nil store gets
// a fresh MemoryStore.
func NewLimiter(store Store) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{store: store, now: time.Now}
}

// Allow admits or rejects one call for key under a max-calls-per-window
// policy. The first call for a key, or the first call after the stored
// window expired, resets the counter to 1 and is allowed. While the window
// is active, calls are allowed until Count reaches max.
func (l *Limiter) Allow(key string, max int, window time.Duration) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	rec, ok := l.store.Get(key)
	if !ok || now.After(rec.ResetAt) {
		rec = Record{Count: 1, ResetAt: now.Add(window)}
		l.store.Put(key, rec)
		return Decision{Allowed: true, Remaining: max - 1, ResetAt: rec.ResetAt}
	}

	if rec.Count >= max {
		return Decision{Allowed: false, Remaining: 0, ResetAt: rec.ResetAt}
	}

	rec.Count++
	l.store.Put(key, rec)
	return Decision{Allowed: true, Remaining: max - rec.Count, ResetAt: rec.ResetAt}
}
