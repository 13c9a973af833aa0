package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/frostline-foods/frostline/internal/inventory"
)

type fakeSweeper struct {
	asOf   time.Time
	result inventory.SweepResult
	err    error
	calls  int
}

func (f *fakeSweeper) SweepExpiredBatches(_ context.Context, asOf time.Time) (inventory.SweepResult, error) {
	f.calls++
	f.asOf = asOf
	return f.result, f.err
}

func TestExpirySweepHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scheduled := time.Date(2026, 2, 10, 1, 0, 0, 0, time.UTC)

	t.Run("passes the scheduled time to the sweeper", func(t *testing.T) {
		sweeper := &fakeSweeper{result: inventory.SweepResult{ExpiredBatches: 2}}
		handler := NewExpirySweepHandler(sweeper, logger)

		task, err := NewExpirySweepTask(scheduled)
		require.NoError(t, err)
		require.NoError(t, handler(context.Background(), task))
		require.Equal(t, 1, sweeper.calls)
		require.Equal(t, scheduled, sweeper.asOf)
	})

	t.Run("sweep errors are retryable", func(t *testing.T) {
		sweeper := &fakeSweeper{err: errors.New("db down")}
		handler := NewExpirySweepHandler(sweeper, logger)

		task, err := NewExpirySweepTask(scheduled)
		require.NoError(t, err)
		err = handler(context.Background(), task)
		require.Error(t, err)
		require.NotErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("garbage payload is not retried", func(t *testing.T) {
		sweeper := &fakeSweeper{}
		handler := NewExpirySweepHandler(sweeper, logger)

		err := handler(context.Background(), asynq.NewTask(TaskExpirySweep, []byte("{")))
		require.ErrorIs(t, err, asynq.SkipRetry)
		require.Zero(t, sweeper.calls)
	})
}
