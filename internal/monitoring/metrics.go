package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Instrumentation name for this package
	instrumentationName    = "github.com/pawmatch/pawmatch/internal/monitoring"
	instrumentationVersion = "1.0.0"
)

// MatchingMetrics records the engine's domain counters. A nil *MatchingMetrics
// is valid and records nothing.
type MatchingMetrics struct {
	swipesRecorded       metric.Int64Counter
	matchesCreated       metric.Int64Counter
	duplicatesSuppressed metric.Int64Counter
	conversationsCreated metric.Int64Counter
	playdatesFinalized   metric.Int64Counter
	matchesExpired       metric.Int64Counter
	scoringDuration      metric.Float64Histogram
}

// NewMatchingMetrics registers the domain instruments on the global meter provider
func NewMatchingMetrics() (*MatchingMetrics, error) {
	meter := otel.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	swipesRecorded, err := meter.Int64Counter(
		"swipes_recorded_total",
		metric.WithDescription("Total number of swipes persisted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create swipes_recorded_total counter: %w", err)
	}

	matchesCreated, err := meter.Int64Counter(
		"matches_created_total",
		metric.WithDescription("Total number of matches created"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matches_created_total counter: %w", err)
	}

	duplicatesSuppressed, err := meter.Int64Counter(
		"duplicate_matches_suppressed_total",
		metric.WithDescription("Match creations that found an existing live match for the pair"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duplicate_matches_suppressed_total counter: %w", err)
	}

	conversationsCreated, err := meter.Int64Counter(
		"conversations_created_total",
		metric.WithDescription("Total number of conversations created from matches"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversations_created_total counter: %w", err)
	}

	playdatesFinalized, err := meter.Int64Counter(
		"playdates_finalized_total",
		metric.WithDescription("Total number of playdate requests created by negotiations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create playdates_finalized_total counter: %w", err)
	}

	matchesExpired, err := meter.Int64Counter(
		"matches_expired_total",
		metric.WithDescription("Total number of matches moved to expired"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matches_expired_total counter: %w", err)
	}

	scoringDuration, err := meter.Float64Histogram(
		"match_scoring_duration_seconds",
		metric.WithDescription("Time spent scoring dog pairs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create match_scoring_duration_seconds histogram: %w", err)
	}

	return &MatchingMetrics{
		swipesRecorded:       swipesRecorded,
		matchesCreated:       matchesCreated,
		duplicatesSuppressed: duplicatesSuppressed,
		conversationsCreated: conversationsCreated,
		playdatesFinalized:   playdatesFinalized,
		matchesExpired:       matchesExpired,
		scoringDuration:      scoringDuration,
	}, nil
}

func (m *MatchingMetrics) RecordSwipe(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	m.swipesRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", direction)))
}

func (m *MatchingMetrics) RecordMatchCreated(ctx context.Context, matchType string) {
	if m == nil {
		return
	}
	m.matchesCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("match_type", matchType)))
}

func (m *MatchingMetrics) RecordDuplicateSuppressed(ctx context.Context) {
	if m == nil {
		return
	}
	m.duplicatesSuppressed.Add(ctx, 1)
}

func (m *MatchingMetrics) RecordConversationCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.conversationsCreated.Add(ctx, 1)
}

func (m *MatchingMetrics) RecordPlaydateFinalized(ctx context.Context) {
	if m == nil {
		return
	}
	m.playdatesFinalized.Add(ctx, 1)
}

// RecordMatchesExpired counts expirations. source is "lazy" or "sweep".
func (m *MatchingMetrics) RecordMatchesExpired(ctx context.Context, n int, source string) {
	if m == nil || n <= 0 {
		return
	}
	m.matchesExpired.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}

// ObserveScoring records how long one scoring pass took
func (m *MatchingMetrics) ObserveScoring(ctx context.Context, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.scoringDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("operation", operation)))
}
