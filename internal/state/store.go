// Package state holds an observable value published as whole snapshots.
//
// Readers load the current snapshot without locking. Writers replace it
// under a mutex and subscribers are notified in publication order, on the
// writer's goroutine. Subscribers must not publish from inside a callback.
package state

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// Store is an observable, atomically swapped snapshot of T.
// T should be treated as immutable once published.
type Store[T any] struct {
	cur atomic.Pointer[T]

	mu     sync.Mutex
	subs   map[int]func(T)
	nextID int
	frozen bool
}

// NewStore returns a store holding initial.
func NewStore[T any](initial T) *Store[T] {
	s := &Store[T]{subs: make(map[int]func(T))}
	s.cur.Store(&initial)
	return s
}

// Load returns the current snapshot.
func (s *Store[T]) Load() T {
	return *s.cur.Load()
}

// Update derives the next snapshot from the current one and publishes it.
// It returns the published snapshot, or the unchanged one if the store is frozen.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return *s.cur.Load()
	}
	next := fn(*s.cur.Load())
	s.cur.Store(&next)
	for _, id := range slices.Sorted(maps.Keys(s.subs)) {
		s.subs[id](next)
	}
	return next
}

// Subscribe registers fn for every future snapshot and returns a function that removes it.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Freeze stops all further publication and drops subscribers. The last
// snapshot stays readable.
func (s *Store[T]) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
	s.subs = make(map[int]func(T))
}

// Frozen reports whether Freeze was called.
func (s *Store[T]) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}
