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
	"github.com/pawmatch/pawmatch/internal/session"
	"github.com/pawmatch/pawmatch/internal/telemetry"
	"github.com/pawmatch/pawmatch/internal/validation"
)

// DefaultPlaydateDuration is the length of the slot created from a proposed start time
const DefaultPlaydateDuration = time.Hour

// Availability warnings. They never block a proposal.
const (
	WarningAvailabilityUnknown = "availability_unknown"
	WarningOutsideAvailability = "outside_availability"
)

type NegotiationStatus string

const (
	NegotiationPendingLocation NegotiationStatus = "pending_location"
	NegotiationPendingTime     NegotiationStatus = "pending_time"
	NegotiationFinalized       NegotiationStatus = "finalized"
)

// NegotiationResult is the outcome of a proposal. Context is set while the
// negotiation is still open, Request once it finalized.
type NegotiationResult struct {
	Status   NegotiationStatus                   `json:"status"`
	Context  *session.PlaydateNegotiationContext `json:"context,omitempty"`
	Request  *database.PlaydateRequest           `json:"request,omitempty"`
	Warnings []string                            `json:"warnings"`
}

type RespondAction string

const (
	RespondAccept     RespondAction = "accept"
	RespondDecline    RespondAction = "decline"
	RespondReschedule RespondAction = "reschedule"
	RespondCancel     RespondAction = "cancel"
)

type PlaydateService struct {
	lifecycle     *MatchLifecycle
	profiles      interfaces.ProfileLookup
	sessions      *session.Manager
	locations     interfaces.LocationValidator
	availability  interfaces.AvailabilityProvider
	playdates     interfaces.PlaydateStore
	conversations interfaces.ConversationStore
	notifier      interfaces.NotificationSink
	metrics       *monitoring.MatchingMetrics
	duration      time.Duration
	now           func() time.Time
}

// NewPlaydateService wires the negotiation coordinator. locations, availability,
// conversations and notifier may be nil.
func NewPlaydateService(
	lifecycle *MatchLifecycle,
	profiles interfaces.ProfileLookup,
	sessions *session.Manager,
	locations interfaces.LocationValidator,
	availability interfaces.AvailabilityProvider,
	playdates interfaces.PlaydateStore,
	conversations interfaces.ConversationStore,
	notifier interfaces.NotificationSink,
	metrics *monitoring.MatchingMetrics,
) *PlaydateService {
	return &PlaydateService{
		lifecycle:     lifecycle,
		profiles:      profiles,
		sessions:      sessions,
		locations:     locations,
		availability:  availability,
		playdates:     playdates,
		conversations: conversations,
		notifier:      notifier,
		metrics:       metrics,
		duration:      DefaultPlaydateDuration,
		now:           time.Now,
	}
}

// Start opens a negotiation for the caller's session, replacing any open one
func (s *PlaydateService) Start(ctx context.Context, sessionID, matchID, callerOwnerID string) (*session.PlaydateNegotiationContext, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":  "start_playdate_negotiation",
		"session_id": sessionID,
		"match_id":   matchID,
		"caller_id":  callerOwnerID,
	})

	if sessionID == "" {
		return nil, apperrors.NewValidationError("session_id", "session_id is required")
	}

	match, err := s.lifecycle.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !IsActive(match, s.now()) {
		return nil, apperrors.NewInvalidMatchStatus(match.ID, string(match.Status), string(database.MatchActive))
	}
	if !match.HasParticipant(callerOwnerID) {
		return nil, apperrors.NewNotAParticipant(callerOwnerID)
	}

	otherOwnerID, otherDogID := match.OtherSide(callerOwnerID)
	otherDog, err := s.profiles.GetDogByID(ctx, otherDogID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_dog", err)
	}
	if otherDog == nil {
		return nil, apperrors.NewProfileNotFound(otherOwnerID, otherDogID)
	}

	c := s.sessions.Open(ctx, &session.PlaydateNegotiationContext{
		SessionID:    sessionID,
		Match:        match,
		InitiatorID:  callerOwnerID,
		OtherDog:     otherDog,
		Participants: []string{match.Owner1ID, match.Owner2ID},
	})
	s.setHint(ctx, match, database.PlaydateStatusScheduling)

	logger.Info("Playdate negotiation started")
	return c, nil
}

// ProposeTime stores a future start time and finalizes when a location is already set
func (s *PlaydateService) ProposeTime(ctx context.Context, sessionID string, at time.Time) (*NegotiationResult, error) {
	c, ok := s.sessions.Get(ctx, sessionID)
	if !ok {
		return nil, apperrors.NewNegotiationNotOpen(sessionID)
	}
	if !at.After(s.now()) {
		return nil, apperrors.NewValidationError("proposed_time", "proposed time must be in the future")
	}

	warnings := s.checkAvailability(ctx, c.Participants, at)
	c.ProposedTime = &at

	if c.Location != nil {
		return s.finalize(ctx, c, warnings)
	}
	if !s.sessions.Save(ctx, c) {
		return nil, apperrors.NewNegotiationNotOpen(sessionID)
	}
	s.setHint(ctx, c.Match, database.PlaydateStatusDateSuggested)

	return &NegotiationResult{Status: NegotiationPendingLocation, Context: c, Warnings: warnings}, nil
}

// ProposeLocation validates and stores a meeting place and finalizes when a time is already set
func (s *PlaydateService) ProposeLocation(ctx context.Context, sessionID string, loc database.PlaydateLocation) (*NegotiationResult, error) {
	c, ok := s.sessions.Get(ctx, sessionID)
	if !ok {
		return nil, apperrors.NewNegotiationNotOpen(sessionID)
	}
	if err := validation.Struct(loc); err != nil {
		return nil, err
	}
	if s.locations != nil {
		if err := s.locations.Validate(ctx, loc); err != nil {
			if appErr, ok := apperrors.AsAppError(err); ok {
				return nil, appErr
			}
			return nil, apperrors.NewDependencyError("validate_location", err)
		}
	}

	c.Location = &loc
	if c.ProposedTime != nil {
		return s.finalize(ctx, c, []string{})
	}
	if !s.sessions.Save(ctx, c) {
		return nil, apperrors.NewNegotiationNotOpen(sessionID)
	}
	s.setHint(ctx, c.Match, database.PlaydateStatusLocationSuggested)

	return &NegotiationResult{Status: NegotiationPendingTime, Context: c, Warnings: []string{}}, nil
}

// Finalize turns a complete negotiation into a playdate request
func (s *PlaydateService) Finalize(ctx context.Context, sessionID string) (*NegotiationResult, error) {
	c, ok := s.sessions.Get(ctx, sessionID)
	if !ok {
		return nil, apperrors.NewNegotiationNotOpen(sessionID)
	}
	return s.finalize(ctx, c, []string{})
}

func (s *PlaydateService) finalize(ctx context.Context, c *session.PlaydateNegotiationContext, warnings []string) (*NegotiationResult, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":  "finalize_playdate_negotiation",
		"session_id": c.SessionID,
	})

	if missing := c.Missing(); len(missing) > 0 {
		return nil, apperrors.NewNegotiationIncomplete(missing...)
	}
	if !c.ProposedTime.After(s.now()) {
		return nil, apperrors.NewValidationError("proposed_time", "proposed time is no longer in the future")
	}

	match, err := s.lifecycle.Get(ctx, c.Match.ID)
	if err != nil {
		return nil, err
	}
	if !IsActive(match, s.now()) {
		return nil, apperrors.NewInvalidMatchStatus(match.ID, string(match.Status), string(database.MatchActive))
	}

	// Claim the negotiation so a concurrent proposal or finalize cannot create a second request.
	if !s.sessions.Take(ctx, c) {
		logger.Info("Negotiation was finalized or replaced concurrently")
		return nil, apperrors.NewNegotiationNotOpen(c.SessionID)
	}

	now := s.now()
	start := *c.ProposedTime
	req := &database.PlaydateRequest{
		ID:          uuid.New().String(),
		MatchID:     match.ID,
		RequesterID: c.InitiatorID,
		ReceiverID:  c.ReceiverID(),
		TimeSlots:   database.TimeSlots{{Start: start, End: start.Add(s.duration)}},
		Location:    *c.Location,
		Status:      database.PlaydateRequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.playdates.CreatePlaydateRequest(ctx, req); err != nil {
		logger.WithError(err).Error("Failed to store playdate request")
		s.sessions.Reinstate(ctx, c)
		return nil, apperrors.NewDependencyError("create_playdate_request", err)
	}
	s.metrics.RecordPlaydateFinalized(ctx)

	s.setHint(ctx, match, database.PlaydateStatusPendingConfirmation)
	s.notifyRequest(ctx, match, req)
	if err := s.lifecycle.Touch(ctx, match.ID); err != nil {
		logger.WithError(err).Warn("Failed to record match interaction")
	}

	logger.WithField("request_id", req.ID).Info("Playdate request created")
	if warnings == nil {
		warnings = []string{}
	}
	return &NegotiationResult{Status: NegotiationFinalized, Request: req, Warnings: warnings}, nil
}

// Cancel abandons the session's negotiation. It never fails.
func (s *PlaydateService) Cancel(ctx context.Context, sessionID string) {
	c, ok := s.sessions.Get(ctx, sessionID)
	s.sessions.Clear(ctx, sessionID)
	if ok {
		s.setHint(ctx, c.Match, database.PlaydateStatusNone)
	}
}

// Respond applies an owner's answer to a pending playdate request. The receiver
// accepts, declines or asks to reschedule; the requester may cancel.
func (s *PlaydateService) Respond(ctx context.Context, requestID, actorID string, action RespondAction) (*database.PlaydateRequest, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":  "respond_playdate_request",
		"request_id": requestID,
		"actor_id":   actorID,
		"action":     string(action),
	})

	to, hint, ok := respondTarget(action)
	if !ok {
		return nil, apperrors.NewValidationError("action", "action must be one of: accept decline reschedule cancel")
	}

	req, err := s.playdates.GetPlaydateRequest(ctx, requestID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_playdate_request", err)
	}
	if req == nil {
		return nil, apperrors.NewPlaydateRequestNotFound(requestID)
	}
	if actorID != req.RequesterID && actorID != req.ReceiverID {
		return nil, apperrors.NewNotAParticipant(actorID)
	}

	allowedActor := req.ReceiverID
	if action == RespondCancel {
		allowedActor = req.RequesterID
	}
	if actorID != allowedActor {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeForbidden, apperrors.CodeNotAParticipant,
			fmt.Sprintf("user cannot %s this playdate request", action)).WithMetadata("user_id", actorID)
	}
	if req.Status != database.PlaydateRequestPending {
		return nil, apperrors.NewInvalidTransition(string(req.Status), string(to))
	}

	req.Status = to
	req.UpdatedAt = s.now()
	if err := s.playdates.UpdatePlaydateRequest(ctx, req); err != nil {
		logger.WithError(err).Error("Failed to update playdate request")
		return nil, apperrors.NewDependencyError("update_playdate_request", err)
	}

	if match, err := s.lifecycle.Get(ctx, req.MatchID); err == nil {
		s.setHint(ctx, match, hint)
	}
	s.notifyResponse(ctx, req, actorID)

	logger.Info("Playdate request updated")
	return req, nil
}

func respondTarget(action RespondAction) (database.PlaydateRequestStatus, database.PlaydateStatus, bool) {
	switch action {
	case RespondAccept:
		return database.PlaydateRequestAccepted, database.PlaydateStatusConfirmed, true
	case RespondDecline:
		return database.PlaydateRequestDeclined, database.PlaydateStatusCancelled, true
	case RespondReschedule:
		return database.PlaydateRequestRescheduled, database.PlaydateStatusScheduling, true
	case RespondCancel:
		return database.PlaydateRequestCanceled, database.PlaydateStatusCancelled, true
	}
	return "", "", false
}

// checkAvailability flags participants whose published week does not cover at
func (s *PlaydateService) checkAvailability(ctx context.Context, participants []string, at time.Time) []string {
	warnings := []string{}
	if s.availability == nil {
		return warnings
	}

	seen := make(map[string]bool)
	add := func(w string) {
		if !seen[w] {
			seen[w] = true
			warnings = append(warnings, w)
		}
	}

	week := weekStart(at)
	for _, userID := range participants {
		slots, err := s.availability.GetAvailabilityWindow(ctx, userID, week)
		if err != nil {
			telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
				"operation": "check_availability",
				"user_id":   userID,
			}).WithError(err).Debug("Availability lookup failed")
			add(WarningAvailabilityUnknown)
			continue
		}
		if len(slots) == 0 {
			add(WarningAvailabilityUnknown)
			continue
		}
		free := false
		for _, slot := range slots {
			if slot.Contains(at) {
				free = true
				break
			}
		}
		if !free {
			add(WarningOutsideAvailability)
		}
	}
	return warnings
}

// weekStart returns midnight of the Monday starting t's week, in t's location
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *PlaydateService) setHint(ctx context.Context, m *database.Match, status database.PlaydateStatus) {
	if s.conversations == nil || m == nil || m.ConversationID == nil {
		return
	}
	if err := s.conversations.SetPlaydateStatus(ctx, *m.ConversationID, status); err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation":       "set_playdate_hint",
			"conversation_id": *m.ConversationID,
		}).WithError(err).Warn("Failed to update playdate hint")
	}
}

// notifyRequest tells the receiver which dog wants a playdate
func (s *PlaydateService) notifyRequest(ctx context.Context, m *database.Match, req *database.PlaydateRequest) {
	if s.notifier == nil {
		return
	}
	dogName := "A matched dog"
	if dog, err := s.profiles.GetDogByID(ctx, m.DogOf(req.RequesterID)); err == nil && dog != nil {
		dogName = dog.Name
	}
	if err := s.notifier.SendPlaydateRequestNotification(ctx, req.ReceiverID, req.ID, dogName); err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation":  "notify_playdate_request",
			"request_id": req.ID,
		}).WithError(err).Warn("Failed to send playdate request notification")
	}
}

func (s *PlaydateService) notifyResponse(ctx context.Context, req *database.PlaydateRequest, actorID string) {
	if s.notifier == nil {
		return
	}
	target := req.RequesterID
	if actorID == req.RequesterID {
		target = req.ReceiverID
	}
	data := map[string]string{
		"request_id": req.ID,
		"match_id":   req.MatchID,
		"status":     string(req.Status),
	}
	msg := fmt.Sprintf("Your playdate request is now %s.", req.Status)
	if err := s.notifier.SendMatchNotification(ctx, target, "Playdate update", msg, data); err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation":  "notify_playdate_response",
			"request_id": req.ID,
		}).WithError(err).Warn("Failed to send playdate update notification")
	}
}
