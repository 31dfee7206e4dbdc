package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/pawmatch/pawmatch/internal/interfaces"
	"github.com/pawmatch/pawmatch/internal/monitoring"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

// DefaultMatchExpiry is how long a match stays open without being expired
const DefaultMatchExpiry = 7 * 24 * time.Hour

// MatchLifecycle is the only writer of match status.
//
//	pending -> active | declined | expired
//	active  -> cancelled | expired
type MatchLifecycle struct {
	matches interfaces.MatchStore
	expiry  time.Duration
	metrics *monitoring.MatchingMetrics
	now     func() time.Time
}

func NewMatchLifecycle(matches interfaces.MatchStore, expiry time.Duration, metrics *monitoring.MatchingMetrics) *MatchLifecycle {
	if expiry <= 0 {
		expiry = DefaultMatchExpiry
	}
	return &MatchLifecycle{
		matches: matches,
		expiry:  expiry,
		metrics: metrics,
		now:     time.Now,
	}
}

// ExpiryFor returns the open window for a match type. Super likes and perfect matches get twice as long.
func (l *MatchLifecycle) ExpiryFor(t database.MatchType) time.Duration {
	if t.IsHighValue() {
		return 2 * l.expiry
	}
	return l.expiry
}

// Prepare stamps a new match as pending with its timestamps and expiry
func (l *MatchLifecycle) Prepare(m *database.Match) {
	now := l.now()
	m.Status = database.MatchPending
	m.CreatedAt = now
	m.LastInteractionAt = now
	m.ExpiresAt = now.Add(l.ExpiryFor(m.MatchType))
}

// IsActive reports whether m is active and not yet past its expiry
func IsActive(m *database.Match, now time.Time) bool {
	return m != nil && m.Status == database.MatchActive && now.Before(m.ExpiresAt)
}

// Get loads a match, expiring it first when its window has passed
func (l *MatchLifecycle) Get(ctx context.Context, matchID string) (*database.Match, error) {
	m, err := l.matches.GetMatchByID(ctx, matchID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_match", err)
	}
	if m == nil {
		return nil, apperrors.NewMatchNotFound(matchID)
	}

	if l.shouldExpire(m) {
		m.Status = database.MatchExpired
		if err := l.matches.UpdateMatch(ctx, m); err != nil {
			return nil, apperrors.NewDependencyError("expire_match", err)
		}
		l.metrics.RecordMatchesExpired(ctx, 1, "lazy")
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "expire_match",
			"match_id":  m.ID,
		}).Info("Match expired on read")
	}
	return m, nil
}

// Accept moves a pending match to active. Only the receiving owner may accept.
func (l *MatchLifecycle) Accept(ctx context.Context, matchID, actorOwnerID string) (*database.Match, error) {
	return l.respond(ctx, matchID, actorOwnerID, database.MatchActive)
}

// Decline moves a pending match to declined. Only the receiving owner may decline.
func (l *MatchLifecycle) Decline(ctx context.Context, matchID, actorOwnerID string) (*database.Match, error) {
	return l.respond(ctx, matchID, actorOwnerID, database.MatchDeclined)
}

func (l *MatchLifecycle) respond(ctx context.Context, matchID, actorOwnerID string, to database.MatchStatus) (*database.Match, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "respond_to_match",
		"match_id":  matchID,
		"actor_id":  actorOwnerID,
		"to":        string(to),
	})

	m, err := l.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(actorOwnerID) {
		return nil, apperrors.NewNotAParticipant(actorOwnerID)
	}
	if m.Owner2ID != actorOwnerID {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeForbidden, apperrors.CodeNotAParticipant,
			"only the receiving owner can respond to this match").WithMetadata("user_id", actorOwnerID)
	}
	if m.Status != database.MatchPending {
		return nil, apperrors.NewInvalidTransition(string(m.Status), string(to))
	}

	m.Status = to
	m.LastInteractionAt = l.now()
	if err := l.matches.UpdateMatch(ctx, m); err != nil {
		logger.WithError(err).Error("Failed to persist match response")
		return nil, apperrors.NewDependencyError("update_match", err)
	}

	logger.Info("Match response recorded")
	return m, nil
}

// Cancel ends an active match. Either participant may cancel.
func (l *MatchLifecycle) Cancel(ctx context.Context, matchID, actorOwnerID string) (*database.Match, error) {
	m, err := l.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(actorOwnerID) {
		return nil, apperrors.NewNotAParticipant(actorOwnerID)
	}
	if m.Status != database.MatchActive {
		return nil, apperrors.NewInvalidTransition(string(m.Status), string(database.MatchCancelled))
	}

	m.Status = database.MatchCancelled
	m.LastInteractionAt = l.now()
	if err := l.matches.UpdateMatch(ctx, m); err != nil {
		return nil, apperrors.NewDependencyError("update_match", err)
	}

	telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "cancel_match",
		"match_id":  matchID,
		"actor_id":  actorOwnerID,
	}).Info("Match cancelled")
	return m, nil
}

// Touch records activity on a live match
func (l *MatchLifecycle) Touch(ctx context.Context, matchID string) error {
	m, err := l.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Status.IsTerminal() {
		return nil
	}
	m.LastInteractionAt = l.now()
	if err := l.matches.UpdateMatch(ctx, m); err != nil {
		return apperrors.NewDependencyError("touch_match", err)
	}
	return nil
}

// AttachConversation stores the conversation reference on the match
func (l *MatchLifecycle) AttachConversation(ctx context.Context, m *database.Match, conversationID string) error {
	if m.ConversationID != nil && *m.ConversationID == conversationID {
		return nil
	}
	m.ConversationID = &conversationID
	m.LastInteractionAt = l.now()
	if err := l.matches.UpdateMatch(ctx, m); err != nil {
		return apperrors.NewDependencyError("attach_conversation", err)
	}
	return nil
}

// ExpireStale persists the expired status for up to batch overdue matches and returns how many it moved
func (l *MatchLifecycle) ExpireStale(ctx context.Context, batch int) (int, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "expire_stale_matches",
		"batch":     batch,
	})

	stale, err := l.matches.ListExpirableMatches(ctx, l.now(), batch)
	if err != nil {
		return 0, fmt.Errorf("list expirable matches: %w", err)
	}

	expired := 0
	for _, m := range stale {
		if !l.shouldExpire(m) {
			continue
		}
		m.Status = database.MatchExpired
		if err := l.matches.UpdateMatch(ctx, m); err != nil {
			logger.WithError(err).WithField("match_id", m.ID).Warn("Failed to expire match")
			continue
		}
		expired++
	}

	l.metrics.RecordMatchesExpired(ctx, expired, "sweep")
	logger.WithField("expired", expired).Info("Expiry sweep finished")
	return expired, nil
}

func (l *MatchLifecycle) shouldExpire(m *database.Match) bool {
	return !m.Status.IsTerminal() && !l.now().Before(m.ExpiresAt)
}
