package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/frostline-foods/frostline/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpirySweep deactivates batches past their expiration date and
	// reconciles the affected aggregates.
	TaskExpirySweep = "inventory:expiry_sweep"
)

// ExpirySweepPayload carries scheduling metadata.
type ExpirySweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewExpirySweepTask constructs an expiry sweep task.
func NewExpirySweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ExpirySweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpirySweep, body, asynq.Queue(QueueDefault)), nil
}

// Sweeper is the slice of the ledger the sweep job needs.
type Sweeper interface {
	SweepExpiredBatches(ctx context.Context, asOf time.Time) (inventory.SweepResult, error)
}

// NewExpirySweepHandler returns the handler for TaskExpirySweep tasks.
func NewExpirySweepHandler(sweeper Sweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ExpirySweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		result, err := sweeper.SweepExpiredBatches(ctx, payload.ScheduledFor)
		if err != nil {
			logger.Error("expiry sweep failed", slog.Any("error", err))
			return err
		}
		logger.Info("expiry sweep finished",
			slog.Int("expired_batches", result.ExpiredBatches),
			slog.Int64("quantity_written_off", result.QuantityWrittenOff),
			slog.Int("secondary_failures", len(result.Secondary)))
		return nil
	}
}
