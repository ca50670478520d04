package bridge

import (
	"log"
	"sync"
)

// Intake is an unbounded, lock-protected FIFO. Push never blocks.
type Intake[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	wake   chan struct{}
}

func NewIntake[T any]() *Intake[T] {
	return &Intake[T]{wake: make(chan struct{}, 1)}
}

// Push appends v and signals the waiting consumer (non-blocking)
func (q *Intake[T]) Push(v T) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bridge: push recovered from panic: %v", r)
			ok = false
		}
	}()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns everything queued, oldest first
func (q *Intake[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Wait returns a channel that receives after at least one Push
func (q *Intake[T]) Wait() <-chan struct{} {
	return q.wake
}

func (q *Intake[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further pushes. Queued items stay until drained.
func (q *Intake[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
