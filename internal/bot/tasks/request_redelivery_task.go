package tasks

import (
	"context"
	"fmt"
	"time"
)

// newRequestRedeliveryTask creates the task that retries requests whose
// delivery failed or never finished, one batch per run.
func newRequestRedeliveryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "request_redelivery")

	return func(ctx context.Context) error {
		batch := deps.Config.Delivery.BatchSize
		startTime := time.Now()

		attempted, delivered, err := deps.Router.Redeliver(ctx, batch)
		duration := time.Since(startTime)

		if err != nil {
			log.ErrorContext(ctx, "Request redelivery failed", "error", err, "attempted", attempted, "delivered", delivered)
			return fmt.Errorf("request redelivery failed: %w", err)
		}
		if attempted == 0 {
			log.DebugContext(ctx, "No undelivered requests")
			return nil
		}

		log.InfoContext(ctx, "Request redelivery finished",
			"attempted", attempted,
			"delivered", delivered,
			"still_failing", attempted-delivered,
			"duration", duration)
		return nil
	}
}
