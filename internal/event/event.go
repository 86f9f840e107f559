package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultPoolSize = 1000
	defaultTimeout  = 30 * time.Second
)

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

// subscription owns its own slot pool, so one slow handler only throttles
// itself. Ordered subscriptions have no pool: events queue up and a single
// worker handles them in publish order.
type subscription struct {
	name string
	h    Handler
	pool chan struct{}

	mu      sync.Mutex
	queue   []pending
	running bool
}

type pending struct {
	ctx context.Context
	e   Event
}

// Bus is an in-memory event bus. Handlers run asynchronously; Publish only
// blocks when the handler's pool is full.
type Bus struct {
	poolSize int
	timeout  time.Duration

	wg       sync.WaitGroup
	mu       sync.RWMutex
	handlers map[string][]*subscription
}

type Option func(*Bus)

// WithPoolSize bounds the number of concurrently running invocations of each
// handler.
func WithPoolSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.poolSize = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// NewBus create a new event bus. Caller should call Stop for graceful shutdown the bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		poolSize: defaultPoolSize,
		timeout:  defaultTimeout,
		handlers: make(map[string][]*subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe to an event
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], &subscription{
		name: name,
		h:    h,
		pool: make(chan struct{}, b.poolSize),
	})
}

// SubscribeOrdered subscribes h so that it sees events one at a time, in the
// order they were published. Publish never blocks on such a subscription.
func (b *Bus) SubscribeOrdered(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], &subscription{
		name: name,
		h:    h,
	})
}

// Publish an event
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := b.handlers[e.Name()]
	b.mu.RUnlock()

	for _, s := range subs {
		b.dispatch(ctx, s, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, s *subscription, e Event) {
	b.wg.Add(1)

	if s.pool == nil {
		b.enqueue(ctx, s, e)
		return
	}

	s.pool <- struct{}{}

	go func() {
		defer func() {
			<-s.pool
			b.wg.Done()
		}()

		b.handle(ctx, s, e)
	}()
}

func (b *Bus) enqueue(ctx context.Context, s *subscription, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, pending{ctx: ctx, e: e})
	if !s.running {
		s.running = true
		go b.drain(s)
	}
}

// drain runs until the queue is empty. A later enqueue starts a new worker.
func (b *Bus) drain(s *subscription) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		p := s.queue[0]
		s.queue[0] = pending{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		b.handle(p.ctx, s, p.e)
		b.wg.Done()
	}
}

func (b *Bus) handle(ctx context.Context, s *subscription, e Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event: handler panic",
				"event", s.name,
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}

		cancel()
	}()

	if err := s.h(ctx, e); err != nil {
		slog.ErrorContext(ctx, "event: handle event failed",
			"event", s.name,
			"error", err,
		)
	}
}

// Stop waits for all handlers to finish
func (b *Bus) Stop() {
	b.wg.Wait()
}
