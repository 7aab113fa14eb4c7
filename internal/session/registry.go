package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"importdesk/internal/cache"
)

// Factory builds a fresh session for id.
type Factory func(id string) *Session

// Registry keeps live sessions keyed by an opaque id. Idle sessions expire
// after ttl; past max sessions the least recently used one is dropped.
type Registry struct {
	mu       sync.Mutex
	sessions *cache.LRUCache[*Session]
	factory  Factory
}

func NewRegistry(max int, ttl time.Duration, factory Factory) *Registry {
	return &Registry{
		sessions: cache.NewLRUCache[*Session](max, ttl),
		factory:  factory,
	}
}

// Lookup returns the session for id and extends its lifetime.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions.Get(id)
	if ok {
		r.sessions.Set(id, s)
	}
	return s, ok
}

// Ensure returns the session for id, creating a new one under a new id when id
// is unknown or malformed. created reports whether a new session was made.
func (r *Registry) Ensure(id string) (s *Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := uuid.Parse(id); err == nil {
		if s, ok := r.sessions.Get(id); ok {
			r.sessions.Set(id, s)
			return s, false
		}
	}

	id = uuid.NewString()
	s = r.factory(id)
	r.sessions.Set(id, s)
	return s, true
}

// Drop forgets the session for id.
func (r *Registry) Drop(id string) {
	r.sessions.Delete(id)
}

func (r *Registry) Len() int {
	return r.sessions.Size()
}

// Cache exposes the backing cache for periodic cleanup.
func (r *Registry) Cache() cache.Cleaner {
	return r.sessions
}
