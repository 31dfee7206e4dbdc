package jobs

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

// ScheduleConfig holds the cron schedules for the periodic tasks. An empty schedule disables that task.
type ScheduleConfig struct {
	ExpirySweep    string
	SwipeReconcile string
	ExpiryBatch    int
}

// Scheduler manages periodic job scheduling using asynq.
type Scheduler struct {
	scheduler *asynq.Scheduler
	entries   map[string]string
}

// NewScheduler creates a new job scheduler.
func NewScheduler(redisURL string, config ScheduleConfig) (*Scheduler, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	s := &Scheduler{
		scheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: telemetry.GetGlobalLogger()}),
		entries:   make(map[string]string),
	}

	if config.ExpirySweep != "" {
		task, err := NewExpirySweepTask(ExpirySweepPayload{Batch: config.ExpiryBatch})
		if err != nil {
			return nil, err
		}
		if err := s.register(config.ExpirySweep, task); err != nil {
			return nil, err
		}
	}
	if config.SwipeReconcile != "" {
		task, err := NewSwipeReconcileTask(ReconcilePayload{})
		if err != nil {
			return nil, err
		}
		if err := s.register(config.SwipeReconcile, task); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) register(cronspec string, task *asynq.Task) error {
	entryID, err := s.scheduler.Register(cronspec, task)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", task.Type(), err)
	}
	s.entries[task.Type()] = entryID

	telemetry.GetGlobalLogger().WithFields(map[string]interface{}{
		"operation": "register_periodic_task",
		"task_type": task.Type(),
		"schedule":  cronspec,
		"entry_id":  entryID,
	}).Info("Registered periodic task")
	return nil
}

// Entries returns the registered task types and their scheduler entry IDs
func (s *Scheduler) Entries() map[string]string {
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Run starts the scheduler. Blocks until shutdown.
func (s *Scheduler) Run() error {
	return s.scheduler.Run()
}

// Shutdown gracefully stops the scheduler.
func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
