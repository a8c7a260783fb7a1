package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when no slot frees up within the enqueue wait.
	ErrQueueFull = errors.New("queue: full")
	// ErrQueueClosed is returned once the queue no longer accepts writes.
	ErrQueueClosed = errors.New("queue: closed for writes")
)

// Bounded is a fixed-capacity FIFO queue shared by one producer stage and one
// consumer stage. Closing it rejects further writes while the consumer keeps
// draining what is already buffered.
type Bounded[T any] struct {
	items     chan T
	closed    chan struct{}
	closeOnce sync.Once
}

func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		items:  make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// Enqueue appends v, waiting at most wait for a free slot. A non-positive
// wait makes it a single non-blocking attempt.
func (q *Bounded[T]) Enqueue(v T, wait time.Duration) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.items <- v:
		return nil
	default:
	}
	if wait <= 0 {
		return ErrQueueFull
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case q.items <- v:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-timer.C:
		return ErrQueueFull
	}
}

// Dequeue blocks until an item is available. It returns false once the queue
// is closed and drained, or when ctx is done.
func (q *Bounded[T]) Dequeue(ctx context.Context) (T, bool) {
	var zero T
	select {
	case v := <-q.items:
		return v, true
	case <-ctx.Done():
		return zero, false
	case <-q.closed:
		select {
		case v := <-q.items:
			return v, true
		default:
			return zero, false
		}
	}
}

// Close stops accepting writes. It is safe to call more than once.
func (q *Bounded[T]) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

func (q *Bounded[T]) Closed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

func (q *Bounded[T]) Len() int { return len(q.items) }

func (q *Bounded[T]) Cap() int { return cap(q.items) }
