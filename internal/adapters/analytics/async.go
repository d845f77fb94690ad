package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultQueueSize bounds the events waiting for delivery.
const DefaultQueueSize = 256

// drainTimeout bounds delivery of the events still queued at shutdown.
const drainTimeout = 5 * time.Second

// Async queues events for a background worker so Track never waits on a provider.
type Async struct {
	next    Tracker
	queue   chan Event
	dropped atomic.Int64
}

// NewAsync wraps next. A size below 1 uses DefaultQueueSize.
func NewAsync(next Tracker, size int) *Async {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Async{next: next, queue: make(chan Event, size)}
}

// Track queues e. A full queue drops the event.
// POST: never blocks
func (a *Async) Track(_ context.Context, e Event) {
	select {
	case a.queue <- e:
	default:
		n := a.dropped.Add(1)
		slog.Warn("analytics_event_dropped", "event", e.Name, "dropped_total", n)
	}
}

// Dropped reports how many events a full queue has discarded.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Run delivers queued events until ctx is cancelled.
// POST: events queued before cancellation are delivered within drainTimeout
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return nil
		case e := <-a.queue:
			a.next.Track(ctx, e)
		}
	}
}

func (a *Async) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-a.queue:
			a.next.Track(ctx, e)
		default:
			return
		}
	}
}
