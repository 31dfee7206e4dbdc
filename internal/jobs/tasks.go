// Package jobs runs the engine's periodic maintenance on asynq: the match expiry sweep
// and swipe reconciliation.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type identifiers
const (
	TypeExpirySweep    = "matches:expiry_sweep"
	TypeSwipeReconcile = "swipes:reconcile"
)

// ExpirySweepPayload overrides the configured batch size when Batch > 0
type ExpirySweepPayload struct {
	Batch int `json:"batch,omitempty"`
}

// ReconcilePayload overrides the configured lookback when Lookback > 0
type ReconcilePayload struct {
	Lookback time.Duration `json:"lookback,omitempty"`
	Limit    int           `json:"limit,omitempty"`
}

func NewExpirySweepTask(payload ExpirySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode expiry sweep payload: %w", err)
	}
	return asynq.NewTask(TypeExpirySweep, data, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)), nil
}

func NewSwipeReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reconcile payload: %w", err)
	}
	return asynq.NewTask(TypeSwipeReconcile, data, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

// decodePayload tolerates an empty payload, which scheduled tasks may carry
func decodePayload(t *asynq.Task, dest interface{}) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
