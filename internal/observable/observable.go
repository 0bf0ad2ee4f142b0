package observable

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Store holds an immutable snapshot of type T and a set of change listeners.
//
// The zero value is not usable; create stores with [New]. All methods are
// safe for concurrent use.
type Store[T any] struct {
	mu        sync.Mutex
	state     T
	eq        func(a, b T) bool
	listeners map[int]func()
	nextID    int
	onStart   func()
	onStop    func()
}

// New creates a [Store] seeded with initial.
//
// eq reports whether two snapshots are equal; [Store.Set] uses it to
// suppress notifications for no-op updates. A nil eq treats every Set as a
// change.
func New[T any](initial T, eq func(a, b T) bool) *Store[T] {
	return &Store[T]{
		state:     initial,
		eq:        eq,
		listeners: make(map[int]func()),
	}
}

// SetLifecycle installs the hooks fired on subscriber-count transitions:
// onStart when the count goes 0→1, onStop when it returns to 0.
//
// Owning stores use these to start and stop their background polling without
// an explicit init/teardown call. Either hook may be nil. SetLifecycle must
// be called before the first Subscribe.
func (s *Store[T]) SetLifecycle(onStart, onStop func()) {
	s.mu.Lock()
	s.onStart = onStart
	s.onStop = onStop
	s.mu.Unlock()
}

// Snapshot returns the current state.
//
// The returned value is immutable by contract: any slices or maps it
// contains were fixed at publication time and are never mutated afterwards.
func (s *Store[T]) Snapshot() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called after every state change and returns
// the corresponding unsubscribe function.
//
// Listeners receive no payload; they are expected to pull the new state via
// [Store.Snapshot]. The unsubscribe function is idempotent: calling it more
// than once is a safe no-op.
func (s *Store[T]) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	first := len(s.listeners) == 1
	start := s.onStart
	s.mu.Unlock()

	if first && start != nil {
		start()
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *Store[T]) unsubscribe(id int) {
	s.mu.Lock()
	delete(s.listeners, id)
	last := len(s.listeners) == 0
	stop := s.onStop
	s.mu.Unlock()

	if last && stop != nil {
		stop()
	}
}

// SubscriberCount returns the number of active subscriptions.
func (s *Store[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Set replaces the state with next and notifies all listeners, unless the
// store's equality func reports next equal to the current state, in which
// case nothing happens. Returns whether the state was replaced.
//
// Each listener is invoked exactly once per state-changing call, in no
// particular order, on the caller's goroutine.
func (s *Store[T]) Set(next T) bool {
	s.mu.Lock()
	if s.eq != nil && s.eq(s.state, next) {
		s.mu.Unlock()
		return false
	}
	s.state = next
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		notifySafe(fn)
	}
	return true
}

// notifySafe calls a listener with panic recovery so a misbehaving consumer
// cannot take down the goroutine committing store updates. The stack is
// logged with a correlation ID for debugging.
func notifySafe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("store listener panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
			)
		}
	}()
	fn()
}
