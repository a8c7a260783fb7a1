// Package buffer holds fixed-capacity circular buffers used to expose recent
// telemetry history to observers.
package buffer

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidCapacity is returned for non-positive buffer capacities.
var ErrInvalidCapacity = errors.New("buffer: capacity must be positive")

// Ring is a fixed-capacity circular buffer that overwrites its oldest entry
// once full. Write and Snapshot are serialized by an internal lock; the
// Unsafe variants skip it for owners that synchronize several rings at once.
type Ring[T any] struct {
	mu     sync.Mutex
	items  []T
	index  int
	filled bool
}

func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Ring[T]{items: make([]T, capacity)}, nil
}

func (r *Ring[T]) Capacity() int { return len(r.items) }

// Len returns how many values a snapshot would currently hold.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenUnsafe()
}

func (r *Ring[T]) Write(v T) {
	r.mu.Lock()
	r.WriteUnsafe(v)
	r.mu.Unlock()
}

// Snapshot returns the buffered values oldest first in a freshly allocated
// slice.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.SnapshotUnsafe()
}

// WriteUnsafe is Write without locking. The caller must serialize access.
func (r *Ring[T]) WriteUnsafe(v T) {
	r.items[r.index] = v
	r.index++
	if r.index >= len(r.items) {
		r.index = 0
		r.filled = true
	}
}

// SnapshotUnsafe is Snapshot without locking. The caller must serialize access.
func (r *Ring[T]) SnapshotUnsafe() []T {
	out := make([]T, r.lenUnsafe())
	if len(out) == 0 {
		return out
	}
	if !r.filled {
		copy(out, r.items[:r.index])
		return out
	}
	n := copy(out, r.items[r.index:])
	copy(out[n:], r.items[:r.index])
	return out
}

func (r *Ring[T]) lenUnsafe() int {
	if r.filled {
		return len(r.items)
	}
	return r.index
}
