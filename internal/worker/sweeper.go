package worker

import (
	"context"
	"log/slog"
	"time"
)

// runSweeper expires overdue pending jobs on every tick
func (w *Worker) runSweeper(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	w.logger.Info("Expiry sweeper started", slog.Duration("interval", w.sweepInterval))

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	start := time.Now()
	expired, err := w.sweeper.ExpireOverdue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("Expiry sweep failed",
			slog.String("error", err.Error()),
			slog.Int("expired", expired),
		)
		return
	}
	w.logger.Debug("Expiry sweep finished",
		slog.Int("expired", expired),
		slog.Duration("took", time.Since(start)),
	)
}
