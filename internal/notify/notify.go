package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Observer receives values published on a List
type Observer[T any] interface {
	Notify(ctx context.Context, v T) error
}

// Func adapts a plain function to an Observer
type Func[T any] func(ctx context.Context, v T) error

func (f Func[T]) Notify(ctx context.Context, v T) error {
	return f(ctx, v)
}

// List fans a value out to every registered observer.
// A failing or panicking observer is logged and skipped; the rest still run.
type List[T any] struct {
	name      string
	mu        sync.RWMutex
	observers []Observer[T]
}

// NewList creates an empty observer list. name prefixes log lines.
func NewList[T any](name string) *List[T] {
	return &List[T]{name: name}
}

// Add registers an observer. Nil observers are ignored.
func (l *List[T]) Add(o Observer[T]) {
	if o == nil {
		return
	}
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

// AddFunc registers a function observer
func (l *List[T]) AddFunc(fn func(ctx context.Context, v T) error) {
	if fn == nil {
		return
	}
	l.Add(Func[T](fn))
}

// Len returns the number of registered observers
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.observers)
}

// Notify invokes every observer in registration order and returns how many failed
func (l *List[T]) Notify(ctx context.Context, v T) int {
	l.mu.RLock()
	observers := make([]Observer[T], len(l.observers))
	copy(observers, l.observers)
	l.mu.RUnlock()

	failed := 0
	for i, o := range observers {
		if err := invoke(ctx, o, v); err != nil {
			failed++
			log.Printf("%s: observer %d failed: %v", l.name, i, err)
		}
	}
	return failed
}

func invoke[T any](ctx context.Context, o Observer[T], v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.Notify(ctx, v)
}
