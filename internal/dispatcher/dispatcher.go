// Package dispatcher decouples the engine from notification delivery. The
// engine enqueues alert events without blocking; a single consumer
// goroutine publishes them in order with retry and backoff. Delivery
// failures never roll back engine state.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/events"
)

// DefaultQueueSize bounds the in-flight event queue.
const DefaultQueueSize = 1024

// Publisher delivers one event to the downstream channel.
type Publisher interface {
	Publish(ctx context.Context, ev events.AlertEvent) error
}

// Dispatcher buffers alert events and delivers them asynchronously.
type Dispatcher struct {
	publisher Publisher
	retry     RetryConfig
	queue     chan events.AlertEvent
	dropped   uint64
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// New creates a dispatcher over the given publisher. queueSize <= 0 uses
// the default.
func New(publisher Publisher, retry RetryConfig, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		publisher: publisher,
		retry:     retry,
		queue:     make(chan events.AlertEvent, queueSize),
	}
}

// Start launches the delivery loop. It returns immediately; call Wait
// after cancelling ctx to drain.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				d.drain()
				return
			case ev := <-d.queue:
				d.deliver(ctx, ev)
			}
		}
	}()
}

// Wait blocks until the delivery loop has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue queues an event for delivery. It never blocks: when the queue is
// full the event is dropped and logged, because stalling the engine's state
// commit on delivery is not acceptable.
func (d *Dispatcher) Enqueue(ev events.AlertEvent) {
	select {
	case d.queue <- ev:
	default:
		d.mu.Lock()
		d.dropped++
		dropped := d.dropped
		d.mu.Unlock()
		slog.Warn("Dispatch queue full, dropping event",
			"event_type", ev.Type,
			"alert_id", ev.Alert.AlertID,
			"dropped_total", dropped,
		)
	}
}

// Dropped returns how many events were dropped due to a full queue.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) deliver(ctx context.Context, ev events.AlertEvent) {
	err := withRetry(ctx, d.retry, "publish alert event", func() error {
		return d.publisher.Publish(ctx, ev)
	})
	if err != nil {
		slog.Error("Failed to deliver alert event",
			"event_type", ev.Type,
			"alert_id", ev.Alert.AlertID,
			"error", err,
		)
	}
}

// drain makes a best-effort pass over events still queued at shutdown.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			if err := d.publisher.Publish(context.Background(), ev); err != nil {
				slog.Warn("Dropped queued event at shutdown",
					"event_type", ev.Type,
					"alert_id", ev.Alert.AlertID,
					"error", err,
				)
			}
		default:
			return
		}
	}
}
