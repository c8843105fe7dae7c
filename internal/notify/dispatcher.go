// Package notify fans committed change events out to sinks (the RabbitMQ
// exchange, the local WebSocket hub) without ever blocking the mutation
// that produced them.
package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/queue"
)

// Sink receives events in the order they were published.
type Sink interface {
	Deliver(ctx context.Context, ev queue.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev queue.Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev queue.Event) error { return f(ctx, ev) }

// Dispatcher buffers events and delivers them from a single goroutine, so
// the delivery order equals the publish order.  Publish never blocks: when
// the buffer is full the event is dropped and counted.
type Dispatcher struct {
	events chan queue.Event
	sinks  []Sink
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	dropped atomic.Int64
}

// NewDispatcher starts the delivery goroutine.  Call Close to drain it.
func NewDispatcher(buffer int, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		events: make(chan queue.Event, buffer),
		sinks:  sinks,
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues ev for delivery.
func (d *Dispatcher) Publish(ev queue.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("notification buffer full; event dropped",
			zap.String("event", ev.Name), zap.String("section", ev.Section), zap.Int64("dropped_total", n))
	}
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		for _, s := range d.sinks {
			if err := s.Deliver(context.Background(), ev); err != nil {
				d.logger.Warn("event delivery failed", zap.String("event", ev.Name), zap.Error(err))
			}
		}
	}
}

// Close stops accepting events and waits until the buffered ones are
// delivered or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
