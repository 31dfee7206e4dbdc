package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/pawmatch/pawmatch/internal/interfaces"
	"github.com/pawmatch/pawmatch/internal/monitoring"
	"github.com/pawmatch/pawmatch/internal/scoring"
	"github.com/pawmatch/pawmatch/internal/telemetry"
	"github.com/pawmatch/pawmatch/internal/validation"
)

// DefaultPairLockTTL bounds how long one process may hold a pair lock
const DefaultPairLockTTL = 5 * time.Second

type SwipeCommand struct {
	SwiperOwnerID string                  `json:"swiper_owner_id" validate:"required"`
	SwiperDogID   string                  `json:"swiper_dog_id" validate:"required"`
	SwipedDogID   string                  `json:"swiped_dog_id" validate:"required,nefield=SwiperDogID"`
	Direction     database.SwipeDirection `json:"direction" validate:"required,oneof=like pass super_like"`
}

// SwipeResult carries the stored swipe and, when reciprocity was found, the pair's match.
// MatchCreated is true only for the swipe that created the match.
type SwipeResult struct {
	Swipe        *database.Swipe `json:"swipe"`
	Match        *database.Match `json:"match,omitempty"`
	MatchCreated bool            `json:"match_created"`
}

type SwipeService struct {
	swipes    interfaces.SwipeStore
	matches   interfaces.MatchStore
	profiles  interfaces.ProfileLookup
	lifecycle *MatchLifecycle
	scorer    *scoring.Scorer
	locker    interfaces.PairLocker
	lockTTL   time.Duration
	notifier  interfaces.NotificationSink
	metrics   *monitoring.MatchingMetrics
	now       func() time.Time
}

// NewSwipeService wires the swipe processor. locker and notifier may be nil.
func NewSwipeService(
	swipes interfaces.SwipeStore,
	matches interfaces.MatchStore,
	profiles interfaces.ProfileLookup,
	lifecycle *MatchLifecycle,
	scorer *scoring.Scorer,
	locker interfaces.PairLocker,
	notifier interfaces.NotificationSink,
	metrics *monitoring.MatchingMetrics,
) *SwipeService {
	return &SwipeService{
		swipes:    swipes,
		matches:   matches,
		profiles:  profiles,
		lifecycle: lifecycle,
		scorer:    scorer,
		locker:    locker,
		lockTTL:   DefaultPairLockTTL,
		notifier:  notifier,
		metrics:   metrics,
		now:       time.Now,
	}
}

// WithLockTTL overrides the pair lock TTL
func (s *SwipeService) WithLockTTL(ttl time.Duration) *SwipeService {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// RecordSwipe persists the swipe and, for likes, creates the pair's match once
// both sides have shown interest. Only a failure to store the swipe is returned
// as an error. Match creation problems are logged and leave Match nil.
func (s *SwipeService) RecordSwipe(ctx context.Context, cmd SwipeCommand) (*SwipeResult, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":     "record_swipe",
		"swiper_dog_id": cmd.SwiperDogID,
		"swiped_dog_id": cmd.SwipedDogID,
		"direction":     string(cmd.Direction),
	})

	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}

	swipe := &database.Swipe{
		ID:            uuid.New().String(),
		SwiperOwnerID: cmd.SwiperOwnerID,
		SwiperDogID:   cmd.SwiperDogID,
		SwipedDogID:   cmd.SwipedDogID,
		Direction:     cmd.Direction,
		CreatedAt:     s.now(),
	}
	if err := s.swipes.InsertSwipe(ctx, swipe); err != nil {
		logger.WithError(err).Error("Failed to persist swipe")
		return nil, apperrors.NewSwipeRecordingError(err)
	}
	s.metrics.RecordSwipe(ctx, string(swipe.Direction))

	result := &SwipeResult{Swipe: swipe}
	if !swipe.Direction.IsPositive() {
		return result, nil
	}

	match, created, err := s.ReconcileSwipe(ctx, swipe)
	if err != nil {
		logger.WithError(err).Warn("Match creation failed after swipe was recorded")
		return result, nil
	}
	result.Match = match
	result.MatchCreated = created
	return result, nil
}

// ReconcileSwipe runs reciprocity detection for a stored positive swipe. It is
// safe to call repeatedly and is how background jobs recover missed matches.
// Only each side's latest swipe counts, and after a cancellation both sides
// must have liked again before the pair can match anew.
func (s *SwipeService) ReconcileSwipe(ctx context.Context, swipe *database.Swipe) (*database.Match, bool, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "reconcile_swipe",
		"swipe_id":  swipe.ID,
		"pair_key":  database.PairKey(swipe.SwiperDogID, swipe.SwipedDogID),
	})

	// The swiper's own latest swipe toward the other dog, when it is still positive.
	latest, err := s.swipes.FindReciprocalSwipe(ctx, swipe.SwipedDogID, swipe.SwiperDogID)
	if err != nil {
		return nil, false, apperrors.NewDependencyError("find_latest_swipe", err)
	}
	if latest == nil {
		logger.Debug("Swipe was superseded by a later pass")
		return nil, false, nil
	}
	swipe = latest

	reciprocal, err := s.swipes.FindReciprocalSwipe(ctx, swipe.SwiperDogID, swipe.SwipedDogID)
	if err != nil {
		return nil, false, apperrors.NewDependencyError("find_reciprocal_swipe", err)
	}
	if reciprocal == nil {
		return nil, false, nil
	}

	existing, err := s.matches.FindMatchByPair(ctx, swipe.SwiperDogID, swipe.SwipedDogID)
	if err != nil {
		return nil, false, apperrors.NewDependencyError("find_match_by_pair", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	cancelled, err := s.matches.FindLatestCancelledMatch(ctx, swipe.SwiperDogID, swipe.SwipedDogID)
	if err != nil {
		return nil, false, apperrors.NewDependencyError("find_cancelled_match", err)
	}
	if cancelled != nil {
		cancelledAt := cancelled.LastInteractionAt
		if !swipe.CreatedAt.After(cancelledAt) || !reciprocal.CreatedAt.After(cancelledAt) {
			logger.WithField("cancelled_match_id", cancelled.ID).Debug("Pair was cancelled, waiting for both sides to like again")
			return nil, false, nil
		}
	}

	pairKey := database.PairKey(swipe.SwiperDogID, swipe.SwipedDogID)
	if s.locker != nil {
		acquired, err := s.locker.AcquirePairLock(ctx, pairKey, s.lockTTL)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Pair lock unavailable, relying on conditional insert")
		case acquired:
			defer func() {
				if err := s.locker.ReleasePairLock(ctx, pairKey); err != nil {
					logger.WithError(err).Warn("Failed to release pair lock")
				}
			}()
		default:
			logger.Debug("Pair lock held elsewhere, relying on conditional insert")
		}
	}

	match, err := s.buildMatch(ctx, swipe, reciprocal)
	if err != nil {
		return nil, false, err
	}

	stored, created, err := s.matches.InsertMatchIfAbsent(ctx, match)
	if err != nil {
		return nil, false, apperrors.NewDependencyError("insert_match", err)
	}
	if !created {
		s.metrics.RecordDuplicateSuppressed(ctx)
		logger.WithField("match_id", stored.ID).Info("Match already existed for pair")
		return stored, false, nil
	}

	s.metrics.RecordMatchCreated(ctx, string(stored.MatchType))
	logger.WithFields(map[string]interface{}{
		"match_id":   stored.ID,
		"match_type": string(stored.MatchType),
		"score":      stored.CompatibilityScore,
	}).Info("Match created")

	s.notifyMatch(ctx, stored)
	return stored, true, nil
}

func (s *SwipeService) buildMatch(ctx context.Context, swipe, reciprocal *database.Swipe) (*database.Match, error) {
	swiperDog, err := s.profiles.GetDogByID(ctx, swipe.SwiperDogID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_dog", err)
	}
	if swiperDog == nil {
		return nil, apperrors.NewProfileNotFound(swipe.SwiperOwnerID, swipe.SwiperDogID)
	}
	swipedDog, err := s.profiles.GetDogByID(ctx, swipe.SwipedDogID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_dog", err)
	}
	if swipedDog == nil {
		return nil, apperrors.NewProfileNotFound(reciprocal.SwiperOwnerID, swipe.SwipedDogID)
	}

	start := time.Now()
	score := s.scorer.Score(swiperDog, swipedDog)
	s.metrics.ObserveScoring(ctx, "swipe_match", time.Since(start))

	superLike := swipe.Direction == database.SwipeSuperLike || reciprocal.Direction == database.SwipeSuperLike

	receiverOwner := reciprocal.SwiperOwnerID
	if receiverOwner == "" {
		receiverOwner = swipedDog.OwnerID
	}

	match := &database.Match{
		ID:                 uuid.New().String(),
		PairKey:            database.PairKey(swipe.SwiperDogID, swipe.SwipedDogID),
		Owner1ID:           swipe.SwiperOwnerID,
		Owner2ID:           receiverOwner,
		Dog1ID:             swipe.SwiperDogID,
		Dog2ID:             swipe.SwipedDogID,
		CompatibilityScore: score.Combined,
		Reasons:            database.StringList(score.Reasons),
		MatchType:          scoring.DeriveMatchType(score, superLike),
	}
	s.lifecycle.Prepare(match)
	return match, nil
}

func (s *SwipeService) notifyMatch(ctx context.Context, m *database.Match) {
	if s.notifier == nil {
		return
	}
	data := map[string]string{
		"match_id":   m.ID,
		"match_type": string(m.MatchType),
		"dog_id":     m.Dog1ID,
	}
	msg := fmt.Sprintf("You have a new match with %.0f%% compatibility. Accept it to start chatting.", m.CompatibilityScore*100)
	if err := s.notifier.SendMatchNotification(ctx, m.Owner2ID, "New match!", msg, data); err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "notify_match",
			"match_id":  m.ID,
		}).WithError(err).Warn("Failed to send match notification")
	}
}
