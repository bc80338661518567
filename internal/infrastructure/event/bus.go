package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const defaultQueueSize = 256

// AsyncEventBus delivers domain events to handlers on a background worker so
// publishers such as job workers never wait on slow handlers. Before Start and
// after Stop, Publish delivers synchronously.
type AsyncEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger

	mu      sync.RWMutex
	running bool
	queue   chan envelope
	done    chan struct{}
}

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// BusOption configures an AsyncEventBus
type BusOption func(*AsyncEventBus)

// WithQueueSize sets how many events may wait for delivery
func WithQueueSize(n int) BusOption {
	return func(b *AsyncEventBus) {
		if n > 0 {
			b.queue = make(chan envelope, n)
		}
	}
}

// NewAsyncEventBus creates a stopped bus
func NewAsyncEventBus(logger *zap.Logger, opts ...BusOption) *AsyncEventBus {
	b := &AsyncEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
		queue:    make(chan envelope, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish hands events to the delivery worker. It blocks while the queue is
// full and returns ctx.Err() if ctx ends first.
func (b *AsyncEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ev := range events {
		if !b.running {
			b.deliver(ctx, ev)
			continue
		}
		// handlers outlive the publishing request
		env := envelope{ctx: context.WithoutCancel(ctx), event: ev}
		select {
		case b.queue <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a handler; with no explicit types the handler's own
// EventTypes are used
func (b *AsyncEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *AsyncEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start launches the delivery worker
func (b *AsyncEventBus) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}
	b.running = true
	b.done = make(chan struct{})
	go b.loop(b.queue, b.done)
	b.logger.Info("event bus started")
	return nil
}

// Stop stops accepting asynchronous events and waits for queued ones to be
// delivered or for ctx to end
func (b *AsyncEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	queue, done := b.queue, b.done
	close(queue)
	b.queue = make(chan envelope, cap(queue))
	b.mu.Unlock()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus stop: %w", ctx.Err())
	}
}

func (b *AsyncEventBus) loop(queue <-chan envelope, done chan<- struct{}) {
	defer close(done)
	for env := range queue {
		b.deliver(env.ctx, env.event)
	}
}

// deliver runs every handler; failures and panics are logged and do not stop
// delivery to the remaining handlers
func (b *AsyncEventBus) deliver(ctx context.Context, ev shared.DomainEvent) {
	for _, h := range b.registry.Handlers(ev.EventType()) {
		if err := b.safeHandle(ctx, h, ev); err != nil {
			logger.WithTraceContext(ctx, b.logger).Error("event handler failed",
				zap.String("event_type", ev.EventType()),
				zap.String("event_id", ev.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *AsyncEventBus) safeHandle(ctx context.Context, h shared.EventHandler, ev shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, ev)
}

var _ shared.EventBus = (*AsyncEventBus)(nil)
