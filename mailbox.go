package offscreen

import (
	"sync"
	"sync/atomic"
)

// edgeFlag is set by one side and consumed by the other.
type edgeFlag struct{ v atomic.Bool }

func (f *edgeFlag) set() { f.v.Store(true) }

// consume reports whether the flag was set and clears it.
func (f *edgeFlag) consume() bool { return f.v.Swap(false) }

func (f *edgeFlag) peek() bool { return f.v.Load() }

// slot is a single-value mailbox written by engine callbacks and read by
// the host thread.
type slot[T any] struct {
	mu      sync.Mutex
	present bool
	value   T
}

func (s *slot[T]) Store(v T) {
	s.mu.Lock()
	s.value, s.present = v, true
	s.mu.Unlock()
}

// Peek returns the value without consuming it.
func (s *slot[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.present
}

// Take returns the value and marks the slot empty. The value is kept so a
// repeated Take returns it again with ok false.
func (s *slot[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.present
	s.present = false
	return s.value, ok
}

func (s *slot[T]) Reset() {
	var zero T
	s.mu.Lock()
	s.value, s.present = zero, false
	s.mu.Unlock()
}
