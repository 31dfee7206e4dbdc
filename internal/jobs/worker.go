package jobs

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

// Worker processes async tasks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	isRunning atomic.Bool
}

// NewWorker creates a new task worker.
func NewWorker(redisURL string, concurrency int) (*Worker, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		Logger: telemetry.GetGlobalLogger(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
				"operation": "process_task",
				"task_type": task.Type(),
			}).WithError(err).Error("Task failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.Use(correlationMiddleware)

	return &Worker{
		server: server,
		mux:    mux,
	}, nil
}

// correlationMiddleware gives every task run its own correlation ID for log stitching
func correlationMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		ctx = telemetry.WithCorrelationID(ctx, "")
		if taskID, ok := asynq.GetTaskID(ctx); ok {
			telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
				"operation": "process_task",
				"task_type": t.Type(),
				"task_id":   taskID,
			}).Debug("Processing task")
		}
		return next.ProcessTask(ctx, t)
	})
}

// RegisterHandler registers a task handler for a task type.
func (w *Worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
	telemetry.GetGlobalLogger().WithField("task_type", taskType).Info("Registered task handler")
}

// Run starts the worker server. Blocks until shutdown.
func (w *Worker) Run() error {
	w.isRunning.Store(true)
	defer w.isRunning.Store(false)
	return w.server.Run(w.mux)
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown() {
	w.isRunning.Store(false)
	w.server.Shutdown()
}

// IsHealthy returns true if the worker is running and healthy.
func (w *Worker) IsHealthy() bool {
	return w.isRunning.Load()
}
