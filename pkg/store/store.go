// Package store provides a generic, thread-safe, in-memory store keyed by
// integer IDs. Records are spread over independently locked shards so that
// operations on unrelated IDs never contend, and IDs are minted from an atomic
// counter that is never rewound.
package store

import (
	"sort"
	"sync"
	"sync/atomic"
)

// DefaultShards is the shard count used by New.
const DefaultShards = 32

type shard[T any] struct {
	mu    sync.RWMutex
	items map[int64]T
}

// Store is a generic, thread-safe, in-memory store for objects of type T.
type Store[T any] struct {
	shards  []*shard[T]
	counter atomic.Int64
}

// New creates a new Store with DefaultShards shards.
func New[T any]() *Store[T] {
	s := &Store[T]{shards: make([]*shard[T], DefaultShards)}
	for i := range s.shards {
		s.shards[i] = &shard[T]{items: make(map[int64]T)}
	}
	return s
}

func (s *Store[T]) shardFor(id int64) *shard[T] {
	idx := id % int64(len(s.shards))
	if idx < 0 {
		idx = -idx
	}
	return s.shards[idx]
}

// NextID returns a fresh ID. IDs start at 1 and are never handed out twice.
func (s *Store[T]) NextID() int64 {
	return s.counter.Add(1)
}

// LastID returns the most recently minted ID, or 0 if none was minted yet.
func (s *Store[T]) LastID() int64 {
	return s.counter.Load()
}

// Insert mints a new ID, builds the item for it and stores the result.
func (s *Store[T]) Insert(build func(id int64) T) (int64, T) {
	id := s.NextID()
	item := build(id)

	sh := s.shardFor(id)
	sh.mu.Lock()
	sh.items[id] = item
	sh.mu.Unlock()
	return id, item
}

// Get retrieves an item by ID. Returns the item and true if found, zero value and false otherwise.
func (s *Store[T]) Get(id int64) (T, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	item, ok := sh.items[id]
	return item, ok
}

// Update applies mutate to the item stored under id while holding the
// shard's write lock and stores the result. If no item exists, nothing is
// written and false is returned.
func (s *Store[T]) Update(id int64, mutate func(T) T) (T, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	item, ok := sh.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	item = mutate(item)
	sh.items[id] = item
	return item, true
}

// Delete removes an item by ID. Returns true if the item existed.
func (s *Store[T]) Delete(id int64) bool {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.items[id]; !exists {
		return false
	}
	delete(sh.items, id)
	return true
}

// List returns all items ordered by ID.
func (s *Store[T]) List() []T {
	snap := s.Snapshot()
	ids := sortedIDs(snap)
	result := make([]T, 0, len(ids))
	for _, id := range ids {
		result = append(result, snap[id])
	}
	return result
}

// Count returns the number of items in the store.
func (s *Store[T]) Count() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// Reset clears all items. The ID counter keeps its value.
func (s *Store[T]) Reset() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.items = make(map[int64]T)
		sh.mu.Unlock()
	}
}

// Snapshot returns a copy of all items. Each shard is copied under its read
// lock, so every value reflects a complete write.
func (s *Store[T]) Snapshot() map[int64]T {
	snapshot := make(map[int64]T)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, v := range sh.items {
			snapshot[k] = v
		}
		sh.mu.RUnlock()
	}
	return snapshot
}

// LoadSnapshot replaces all items from the given map and advances the ID
// counter to at least the largest loaded ID.
func (s *Store[T]) LoadSnapshot(snapshot map[int64]T) {
	for _, sh := range s.shards {
		sh.mu.Lock()
	}
	for _, sh := range s.shards {
		sh.items = make(map[int64]T)
	}
	var maxID int64
	for k, v := range snapshot {
		s.shardFor(k).items[k] = v
		if k > maxID {
			maxID = k
		}
	}
	for _, sh := range s.shards {
		sh.mu.Unlock()
	}
	s.AdvanceTo(maxID)
}

// AdvanceTo moves the ID counter forward to id. It never moves it back.
func (s *Store[T]) AdvanceTo(id int64) {
	for {
		cur := s.counter.Load()
		if cur >= id || s.counter.CompareAndSwap(cur, id) {
			return
		}
	}
}

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
