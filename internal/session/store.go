// Package session keeps the per-visitor order form view state in memory.
// Nothing here outlives the process.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/bike-order-form/internal/domain/order"
)

// entry holds one view and the time it was last touched.
type entry struct {
	view     *order.Controller
	lastSeen time.Time
}

// Store maps opaque session IDs to order form controllers. Entries idle for
// longer than the TTL are evicted.
type Store struct {
	newView func() *order.Controller
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewStore returns a Store creating views with newView.
func NewStore(newView func() *order.Controller, ttl time.Duration) *Store {
	return &Store{
		newView: newView,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Get returns the view for id, creating a fresh one under a new ID when id
// is unknown or expired. The returned ID must be sent back to the client.
func (s *Store) Get(id string) (string, *order.Controller) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok && now.Sub(e.lastSeen) < s.ttl {
		e.lastSeen = now
		return id, e.view
	}
	delete(s.entries, id)

	id = uuid.New().String()
	e := &entry{view: s.newView(), lastSeen: now}
	s.entries[id] = e
	return id, e.view
}

// Lookup returns the view for id without creating one.
func (s *Store) Lookup(id string) (*order.Controller, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || now.Sub(e.lastSeen) >= s.ttl {
		return nil, false
	}
	e.lastSeen = now
	return e.view, true
}

// Len returns the number of stored views, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// cleanup removes entries idle for at least the TTL.
func (s *Store) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if now.Sub(e.lastSeen) >= s.ttl {
			delete(s.entries, id)
		}
	}
}

// StartCleanup launches a goroutine that evicts idle entries every TTL. It
// stops when ctx is cancelled.
func (s *Store) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanup(now)
			}
		}
	}()
}
