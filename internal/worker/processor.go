package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/booking-service/internal/channel"
	"github.com/cuongbtq/booking-service/internal/worker/domain"
	"github.com/cuongbtq/booking-service/shared/logger"
)

// processTask hands one push to the provider under the delivery timeout
// and classifies the failure for the NACK decision
func (w *Worker) processTask(ctx context.Context, log *slog.Logger, task *domain.PushTask) error {
	deliverCtx, cancel := context.WithTimeout(logger.IntoContext(ctx, log), w.deliveryTimeout)
	defer cancel()

	err := w.deliverer.Deliver(deliverCtx, task.Message)
	if err == nil {
		return nil
	}

	if errors.Is(err, channel.ErrRejected) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}

	if task.Attempt >= w.maxAttempts {
		log.Warn("Push exceeded max attempts", slog.Int("max_attempts", w.maxAttempts))
		return fmt.Errorf("%w: %w", domain.ErrMaxRetriesExceeded, err)
	}
	return domain.NewRetryableError(fmt.Errorf("push delivery failed: %w", err))
}
