package interview

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Repository holds live sessions.
type Repository interface {
	Get(id string) (*Session, bool)
	// Put stores the session and restarts its idle timer.
	Put(s *Session)
	// Touch restarts the idle timer of s only if s is still the live session
	// under its id, and reports whether it was.
	Touch(s *Session) bool
	Remove(id string)
	Len() int
}

// MemoryRepository keeps sessions in memory with an idle TTL and a capacity
// bound. When full, the least recently used session is dropped.
type MemoryRepository struct {
	// mu orders writes so Touch never revives a removed session.
	mu  sync.Mutex
	lru *expirable.LRU[string, *Session]
}

// NewMemoryRepository builds a repository. A zero capacity means unbounded and a
// zero ttl means sessions never expire. onDrop, when set, is called for every
// session leaving the repository, including explicit removals.
func NewMemoryRepository(capacity int, ttl time.Duration, onDrop func(id string)) *MemoryRepository {
	var cb expirable.EvictCallback[string, *Session]
	if onDrop != nil {
		cb = func(id string, _ *Session) { onDrop(id) }
	}
	return &MemoryRepository{lru: expirable.NewLRU[string, *Session](capacity, cb, ttl)}
}

func (r *MemoryRepository) Get(id string) (*Session, bool) {
	return r.lru.Get(id)
}

func (r *MemoryRepository) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lru.Add(s.id, s)
}

func (r *MemoryRepository) Touch(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if live, ok := r.lru.Peek(s.id); !ok || live != s {
		return false
	}
	r.lru.Add(s.id, s)
	return true
}

func (r *MemoryRepository) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lru.Remove(id)
}

func (r *MemoryRepository) Len() int {
	return r.lru.Len()
}
