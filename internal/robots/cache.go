package robots

import (
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// Lookup results recorded on the robots cache metric.
const (
	lookupHit     = "hit"
	lookupMiss    = "miss"
	lookupExpired = "expired"
)

// entry holds one domain's parsed robots.txt. Nil data marks a failed
// fetch whose outcome is decided by the fail-open policy.
type entry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// store is a concurrency-safe TTL cache of robots.txt entries keyed by
// domain.
type store struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*entry
}

func newStore(ttl time.Duration) *store {
	return &store{
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

// get retrieves an unexpired entry and reports how the lookup went.
func (s *store) get(domain string, now time.Time) (*entry, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.entries[domain]
	if !found {
		return nil, lookupMiss
	}
	if now.Sub(e.fetchedAt) >= s.ttl {
		return nil, lookupExpired
	}
	return e, lookupHit
}

// putIfStale stores an entry unless a fresh one is already present, so
// concurrent refreshes of the same domain keep the first writer's result.
func (s *store) putIfStale(domain string, e *entry, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, found := s.entries[domain]; found && now.Sub(existing.fetchedAt) < s.ttl {
		return
	}
	s.entries[domain] = e
}
