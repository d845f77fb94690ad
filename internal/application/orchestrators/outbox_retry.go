package orchestrators

import (
	"context"
	"log/slog"
	"time"
)

// DefaultOutboxInterval is how often the worker polls for due entries.
const DefaultOutboxInterval = 15 * time.Second

// RunOutboxWorker processes the outbox on every tick until ctx is cancelled.
// A pass that runs longer than the interval delays the next tick.
// PRE: processor is initialised, interval > 0
// POST: returns nil once ctx is done
func RunOutboxWorker(ctx context.Context, processor *OutboxProcessor, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultOutboxInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("outbox_worker_started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox_worker_stopped")
			return nil
		case <-ticker.C:
			passCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			if _, err := processor.ProcessPending(passCtx); err != nil && ctx.Err() == nil {
				slog.Error("outbox_background_process_failed", "error", err.Error())
			}
			cancel()
		}
	}
}
