// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import "sync"

// handlerSet is a registration-ordered list of callbacks.
type handlerSet[T any] struct {
	mu      sync.Mutex
	next    uint64
	entries []handlerEntry[T]
}

type handlerEntry[T any] struct {
	id uint64
	fn func(T)
}

// add registers fn and returns a function removing it. Removing twice
// is harmless.
func (s *handlerSet[T]) add(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.entries = append(s.entries, handlerEntry[T]{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, entry := range s.entries {
			if entry.id == id {
				s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
				return
			}
		}
	}
}

// emit calls every registered handler in registration order. Handlers
// added or removed during emit take effect from the next emit.
func (s *handlerSet[T]) emit(value T) {
	s.mu.Lock()
	entries := s.entries
	s.mu.Unlock()
	for _, entry := range entries {
		entry.fn(value)
	}
}
