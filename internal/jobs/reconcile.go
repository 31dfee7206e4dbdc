package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pawmatch/pawmatch/internal/database"
	"github.com/pawmatch/pawmatch/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type SwipeLister interface {
	ListPositiveSwipesSince(ctx context.Context, since time.Time, limit int) ([]*database.Swipe, error)
}

type SwipeReconciler interface {
	ReconcileSwipe(ctx context.Context, swipe *database.Swipe) (*database.Match, bool, error)
}

// ReconcileStats summarises one reconciliation run
type ReconcileStats struct {
	Scanned   int
	Recovered int
	Failed    int
}

// SwipeReconcileHandler re-runs reciprocity detection for recent likes so that a match
// missed after a partial failure is eventually created.
type SwipeReconcileHandler struct {
	swipes      SwipeLister
	reconciler  SwipeReconciler
	lookback    time.Duration
	limit       int
	concurrency int
	now         func() time.Time
}

func NewSwipeReconcileHandler(swipes SwipeLister, reconciler SwipeReconciler, lookback time.Duration) *SwipeReconcileHandler {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &SwipeReconcileHandler{
		swipes:      swipes,
		reconciler:  reconciler,
		lookback:    lookback,
		limit:       5000,
		concurrency: 4,
		now:         time.Now,
	}
}

// ProcessTask handles the swipe reconciliation task.
func (h *SwipeReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ReconcilePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	_, err := h.Reconcile(ctx, payload)
	return err
}

// Reconcile scans likes newer than the lookback. Individual swipe failures are logged and
// counted; only a failed scan fails the run.
func (h *SwipeReconcileHandler) Reconcile(ctx context.Context, payload ReconcilePayload) (ReconcileStats, error) {
	lookback := h.lookback
	if payload.Lookback > 0 {
		lookback = payload.Lookback
	}
	limit := h.limit
	if payload.Limit > 0 {
		limit = payload.Limit
	}

	ctx, span := telemetry.StartSpan(ctx, "jobs.swipe_reconcile", attribute.String("lookback", lookback.String()))
	defer span.End()

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "swipe_reconcile",
		"lookback":  lookback.String(),
	})
	start := time.Now()

	swipes, err := h.swipes.ListPositiveSwipesSince(ctx, h.now().Add(-lookback), limit)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.WithError(err).Error("Failed to list recent swipes")
		return ReconcileStats{}, err
	}

	var recovered, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for _, swipe := range swipes {
		g.Go(func() error {
			match, created, err := h.reconciler.ReconcileSwipe(gctx, swipe)
			if err != nil {
				failed.Add(1)
				logger.WithError(err).WithField("swipe_id", swipe.ID).Warn("Failed to reconcile swipe")
				return nil
			}
			if created {
				recovered.Add(1)
				logger.WithFields(map[string]interface{}{
					"swipe_id": swipe.ID,
					"match_id": match.ID,
				}).Info("Recovered missed match")
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := ReconcileStats{
		Scanned:   len(swipes),
		Recovered: int(recovered.Load()),
		Failed:    int(failed.Load()),
	}
	span.SetAttributes(
		attribute.Int("scanned", stats.Scanned),
		attribute.Int("recovered", stats.Recovered),
		attribute.Int("failed", stats.Failed),
	)
	logger.WithFields(map[string]interface{}{
		"scanned":     stats.Scanned,
		"recovered":   stats.Recovered,
		"failed":      stats.Failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Swipe reconciliation completed")
	return stats, nil
}
