// Package event dispatches the product events raised by imports to the
// notification handlers (Kafka, back-in-stock mail).
package event

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eshop/backend/internal/domain/shared"
)

const defaultQueueSize = 1024

// InMemoryEventBus hands events to subscribed handlers. Once started it
// dispatches from a background goroutine so a slow handler never holds an
// import back; before Start, or when the queue is full, it dispatches inline.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger

	mu      sync.RWMutex
	queue   chan queued
	running bool
	wg      sync.WaitGroup
}

type queued struct {
	ctx   context.Context
	event shared.DomainEvent
}

// BusOption configures the bus.
type BusOption func(*InMemoryEventBus)

// WithQueueSize sets the dispatch queue length.
func WithQueueSize(n int) BusOption {
	return func(b *InMemoryEventBus) {
		if n > 0 {
			b.queue = make(chan queued, n)
		}
	}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
		queue:    make(chan queued, defaultQueueSize),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish never fails: handler errors are logged.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range events {
		if b.running {
			select {
			case b.queue <- queued{ctx: context.WithoutCancel(ctx), event: e}:
				continue
			default:
				b.logger.Warn("event queue full, dispatching inline", zap.String("event_type", e.EventType()))
			}
		}
		b.dispatch(ctx, e)
	}
	return nil
}

// Subscribe registers handler for eventTypes, defaulting to its own EventTypes.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start starts the dispatch goroutine.
func (b *InMemoryEventBus) Start(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	b.running = true
	b.wg.Add(1)
	go b.loop(b.queue)
	b.logger.Info("event bus started")
	return nil
}

// Stop dispatches what is queued and stops the goroutine.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	close(b.queue)
	b.queue = make(chan queued, cap(b.queue))
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) loop(queue <-chan queued) {
	defer b.wg.Done()
	for q := range queue {
		b.dispatch(q.ctx, q.event)
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, e shared.DomainEvent) {
	for _, h := range b.registry.Handlers(e.EventType()) {
		if err := b.handle(ctx, h, e); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *InMemoryEventBus) handle(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, e)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
