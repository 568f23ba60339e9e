package liststore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownEntity marks an update or delete whose id is absent from the
// local list: the store surfaces the inconsistency instead of silently
// diverging from the backend's notion of identity.
var ErrUnknownEntity = errors.New("entity not present in list")

// Patch is the partial-update payload forwarded to the backend.
type Patch map[string]any

// Backend performs the authoritative mutation. The store only applies the
// server-confirmed result; it never mutates optimistically before the
// backend answers.
type Backend[T any] interface {
	Create(ctx context.Context, input T) (T, error)
	Update(ctx context.Context, id string, patch Patch) (T, error)
	Delete(ctx context.Context, id string) error
}

// Store keeps an in-memory entity list consistent with create/update/
// delete operations without a full refetch. Every mutation is atomic from
// the caller's point of view: fully applied on backend success, untouched
// on failure. Operations on the same id are serialized; distinct ids may
// proceed concurrently. External code never splices the backing slice —
// Snapshot returns copies.
type Store[T any] struct {
	backend Backend[T]
	idOf    func(T) string

	mu    sync.RWMutex
	items []T
	index map[string]int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a store over backend. idOf extracts the stable entity id;
// seed is the initially fetched list (copied, caller keeps ownership).
func New[T any](backend Backend[T], idOf func(T) string, seed []T) *Store[T] {
	items := make([]T, len(seed))
	copy(items, seed)

	index := make(map[string]int, len(items))
	for i, item := range items {
		index[idOf(item)] = i
	}

	return &Store[T]{
		backend: backend,
		idOf:    idOf,
		items:   items,
		index:   index,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Create asks the backend to create the entity and appends the confirmed
// result. On failure the list is unchanged and the error propagates.
func (s *Store[T]) Create(ctx context.Context, input T) (T, error) {
	var zero T

	created, err := s.backend.Create(ctx, input)
	if err != nil {
		return zero, err
	}

	id := s.idOf(created)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[id]; exists {
		return zero, fmt.Errorf("create %q: id already present in list", id)
	}
	s.index[id] = len(s.items)
	s.items = append(s.items, created)
	return created, nil
}

// Update asks the backend to apply patch and replaces the matching entity
// in place with the confirmed result. An id with no local match is an
// inconsistency error — no append is performed.
func (s *Store[T]) Update(ctx context.Context, id string, patch Patch) (T, error) {
	var zero T

	unlock := s.lockID(id)
	defer unlock()

	s.mu.RLock()
	_, exists := s.index[id]
	s.mu.RUnlock()
	if !exists {
		return zero, fmt.Errorf("update %q: %w", id, ErrUnknownEntity)
	}

	updated, err := s.backend.Update(ctx, id, patch)
	if err != nil {
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, exists := s.index[id]
	if !exists {
		return zero, fmt.Errorf("update %q: %w", id, ErrUnknownEntity)
	}
	s.items[idx] = updated
	return updated, nil
}

// Delete asks the backend to delete the entity and removes the matching
// entry. On failure the list is unchanged.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	unlock := s.lockID(id)
	defer unlock()

	s.mu.RLock()
	_, exists := s.index[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("delete %q: %w", id, ErrUnknownEntity)
	}

	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, exists := s.index[id]
	if !exists {
		return fmt.Errorf("delete %q: %w", id, ErrUnknownEntity)
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	delete(s.index, id)
	for i := idx; i < len(s.items); i++ {
		s.index[s.idOf(s.items[i])] = i
	}
	return nil
}

// Get returns the entity with the given id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var zero T
	idx, ok := s.index[id]
	if !ok {
		return zero, false
	}
	return s.items[idx], true
}

// Len returns the current list length.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot returns a copy of the current list in order.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// lockID serializes operations per entity id. The lock map grows with the
// set of distinct ids touched, which is bounded by the list size.
func (s *Store[T]) lockID(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}
