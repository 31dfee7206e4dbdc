package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pawmatch/pawmatch/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// maxSweepRounds bounds one task run when matches keep failing to update
const maxSweepRounds = 20

type MatchExpirer interface {
	ExpireStale(ctx context.Context, batch int) (int, error)
}

// ExpirySweepHandler persists EXPIRED for overdue matches, batch by batch, until a
// round comes back short.
type ExpirySweepHandler struct {
	expirer MatchExpirer
	batch   int
}

func NewExpirySweepHandler(expirer MatchExpirer, batch int) *ExpirySweepHandler {
	if batch <= 0 {
		batch = 500
	}
	return &ExpirySweepHandler{expirer: expirer, batch: batch}
}

// ProcessTask handles the expiry sweep task.
func (h *ExpirySweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ExpirySweepPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	batch := h.batch
	if payload.Batch > 0 {
		batch = payload.Batch
	}

	ctx, span := telemetry.StartSpan(ctx, "jobs.expiry_sweep", attribute.Int("batch", batch))
	defer span.End()

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "expiry_sweep",
		"batch":     batch,
	})
	start := time.Now()

	total := 0
	for round := 0; round < maxSweepRounds; round++ {
		n, err := h.expirer.ExpireStale(ctx, batch)
		total += n
		if err != nil {
			telemetry.RecordError(span, err)
			logger.WithError(err).WithField("expired", total).Error("Expiry sweep aborted")
			return err
		}
		if n < batch {
			break
		}
	}

	span.SetAttributes(attribute.Int("expired", total))
	logger.WithFields(map[string]interface{}{
		"expired":     total,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Expiry sweep completed")
	return nil
}
