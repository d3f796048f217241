// Package store provides a generic, thread-safe, in-memory table keyed by
// integer IDs, plus a simulated clock. The Hichers twin keeps offers, schemes
// and users in it; IDs are sequential like the remote API's.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Store is a generic, thread-safe, in-memory store for records of type T.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[int]T
	order []int // insertion order for deterministic listing
	next  int
	start int
}

// New creates a Store whose first generated ID is start.
func New[T any](start int) *Store[T] {
	if start <= 0 {
		start = 1
	}
	return &Store[T]{
		items: make(map[int]T),
		next:  start,
		start: start,
	}
}

// NextID reserves and returns the next sequential ID.
func (s *Store[T]) NextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}

// Set stores an item under id. Overwriting keeps the original position.
func (s *Store[T]) Set(id int, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(id, item)
}

func (s *Store[T]) setLocked(id int, item T) {
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
	if id >= s.next {
		s.next = id + 1
	}
}

// Get retrieves an item by ID.
func (s *Store[T]) Get(id int) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Update applies fn to the item stored under id and saves the result.
// It reports false when no such item exists.
func (s *Store[T]) Update(id int, fn func(*T)) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return item, false
	}
	fn(&item)
	s.items[id] = item
	return item, true
}

// Delete removes an item by ID. Returns true if the item existed.
func (s *Store[T]) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns all items in insertion order.
func (s *Store[T]) List() []T {
	return s.Filter(func(int, T) bool { return true })
}

// Filter returns items matching predicate, in insertion order. The result is
// never nil.
func (s *Store[T]) Filter(predicate func(id int, item T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]T, 0, len(s.order))
	for _, id := range s.order {
		if predicate(id, s.items[id]) {
			result = append(result, s.items[id])
		}
	}
	return result
}

// Find returns the first item matching predicate.
func (s *Store[T]) Find(predicate func(id int, item T) bool) (int, T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if predicate(id, s.items[id]) {
			return id, s.items[id], true
		}
	}
	var zero T
	return 0, zero, false
}

// Count returns the number of items in the store.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reset clears all items and rewinds the ID sequence.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int]T)
	s.order = nil
	s.next = s.start
}

// Snapshot returns a copy of all items keyed by ID.
func (s *Store[T]) Snapshot() map[int]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[int]T, len(s.items))
	for k, v := range s.items {
		snapshot[k] = v
	}
	return snapshot
}

// LoadSnapshot replaces all items. Order follows ascending ID and the
// sequence continues after the highest loaded ID.
func (s *Store[T]) LoadSnapshot(snapshot map[int]T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int]T, len(snapshot))
	s.order = make([]int, 0, len(snapshot))
	s.next = s.start
	ids := make([]int, 0, len(snapshot))
	for k := range snapshot {
		ids = append(ids, k)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s.setLocked(id, snapshot[id])
	}
}

// MarshalJSON serializes the store as its items map.
func (s *Store[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON replaces the store's items from a JSON object.
func (s *Store[T]) UnmarshalJSON(data []byte) error {
	var snapshot map[int]T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	s.LoadSnapshot(snapshot)
	return nil
}

// Clock provides a simulated clock for time-dependent twin behavior.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock creates a new simulated clock with no offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Advance moves the simulated clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Reset resets the clock offset to zero.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}

// Offset returns the current clock offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
