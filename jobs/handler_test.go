package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	info  *asynq.TaskInfo
	err   error
	calls int
}

func (f *fakeEnqueuer) EnqueueExpirySweep(context.Context, time.Time) (*asynq.TaskInfo, error) {
	f.calls++
	return f.info, f.err
}

func jobsRouter(enqueuer SweepEnqueuer) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(nil, enqueuer, logger).MountRoutes(r)
	return r
}

func TestEnqueueSweepEndpoint(t *testing.T) {
	t.Run("accepted with the task reference", func(t *testing.T) {
		enqueuer := &fakeEnqueuer{info: &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}}
		rec := httptest.NewRecorder()
		jobsRouter(enqueuer).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweep", nil))

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, 1, enqueuer.calls)
		require.Contains(t, rec.Body.String(), `"taskId":"task-1"`)
		require.Contains(t, rec.Body.String(), `"queue":"`+QueueDefault+`"`)
	})

	t.Run("queue unavailable", func(t *testing.T) {
		enqueuer := &fakeEnqueuer{err: errors.New("redis down")}
		rec := httptest.NewRecorder()
		jobsRouter(enqueuer).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweep", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("no enqueuer wired", func(t *testing.T) {
		rec := httptest.NewRecorder()
		jobsRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sweep", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.True(t, strings.HasPrefix(rec.Body.String(), http.StatusText(http.StatusServiceUnavailable)))
	})
}
