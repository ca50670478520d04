package bridge

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultBufferSize   = 64
	defaultPollInterval = 10 * time.Millisecond
)

// Handler consumes values on the bridge's processing goroutine
type Handler[T any] func(ctx context.Context, v T)

// Options tunes a Bridge
type Options struct {
	Name         string        // log prefix
	BufferSize   int           // capacity of the channel between transfer and processing
	PollInterval time.Duration // fallback wake-up when no push signal arrives
}

// Bridge moves values from arbitrary producer goroutines to a single consumer
// in the order they were pushed. Producers only ever touch the intake queue.
type Bridge[T any] struct {
	name    string
	intake  *Intake[T]
	out     chan T
	handler Handler[T]
	poll    time.Duration
	pending atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New creates a bridge that delivers every pushed value to handler
func New[T any](handler Handler[T], opts Options) *Bridge[T] {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Name == "" {
		opts.Name = "bridge"
	}
	return &Bridge[T]{
		name:    opts.Name,
		intake:  NewIntake[T](),
		out:     make(chan T, opts.BufferSize),
		handler: handler,
		poll:    opts.PollInterval,
	}
}

// Start launches the transfer and processing goroutines. They stop when ctx
// is cancelled or Close is called.
func (b *Bridge[T]) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true

	ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(2)
	go b.transfer(ctx)
	go b.process(ctx)
}

// Push enqueues v. It never blocks and is safe from any goroutine.
// It returns false once the bridge is closed.
func (b *Bridge[T]) Push(v T) bool {
	b.pending.Add(1)
	if !b.intake.Push(v) {
		b.pending.Add(-1)
		return false
	}
	return true
}

// Pending returns the number of pushed values whose handler has not returned yet
func (b *Bridge[T]) Pending() int {
	return int(b.pending.Load())
}

// Close stops accepting values, cancels both goroutines and waits for them.
// Values still queued are discarded.
func (b *Bridge[T]) Close() {
	b.intake.Close()

	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()

	if dropped := b.pending.Load(); dropped > 0 {
		log.Printf("%s: closed with %d undelivered values", b.name, dropped)
	}
}

func (b *Bridge[T]) transfer(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.intake.Wait():
		case <-ticker.C:
		}

		for _, v := range b.intake.Drain() {
			select {
			case b.out <- v:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *Bridge[T]) process(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-b.out:
			if ctx.Err() != nil {
				return
			}
			b.deliver(ctx, v)
		}
	}
}

func (b *Bridge[T]) deliver(ctx context.Context, v T) {
	defer b.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s: handler panic: %v", b.name, r)
		}
	}()
	b.handler(ctx, v)
}
