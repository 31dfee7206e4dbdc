package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/pawmatch/pawmatch/internal/interfaces"
	"github.com/pawmatch/pawmatch/internal/monitoring"
	"github.com/pawmatch/pawmatch/internal/telemetry"
	"github.com/pawmatch/pawmatch/internal/validation"
	"golang.org/x/sync/singleflight"
)

const (
	maxWelcomeReasons   = 3
	DefaultMessagesPage = 50
)

// MessageLimiter throttles user messages per sender
type MessageLimiter interface {
	Allow(key string) bool
	Limit() int
	Window() time.Duration
}

type SendMessageCommand struct {
	ConversationID string               `json:"conversation_id" validate:"required"`
	SenderID       string               `json:"sender_id" validate:"required"`
	Body           string               `json:"body" validate:"required,max=2000"`
	Type           database.MessageType `json:"type" validate:"omitempty,oneof=text system playdate_suggestion image"`
	Metadata       database.Metadata    `json:"metadata,omitempty"`
}

type ConversationService struct {
	lifecycle     *MatchLifecycle
	conversations interfaces.ConversationStore
	profiles      interfaces.ProfileLookup
	notifier      interfaces.NotificationSink
	limiter       MessageLimiter
	metrics       *monitoring.MatchingMetrics
	group         singleflight.Group
	now           func() time.Time
}

// NewConversationService wires the conversation coordinator. notifier and limiter may be nil.
func NewConversationService(
	lifecycle *MatchLifecycle,
	conversations interfaces.ConversationStore,
	profiles interfaces.ProfileLookup,
	notifier interfaces.NotificationSink,
	limiter MessageLimiter,
	metrics *monitoring.MatchingMetrics,
) *ConversationService {
	return &ConversationService{
		lifecycle:     lifecycle,
		conversations: conversations,
		profiles:      profiles,
		notifier:      notifier,
		limiter:       limiter,
		metrics:       metrics,
		now:           time.Now,
	}
}

// InitiateConversation returns the conversation for an active match, creating it
// and posting the welcome message on first use. Calls for the same match made
// concurrently in this process share one execution.
func (s *ConversationService) InitiateConversation(ctx context.Context, matchID string) (string, error) {
	// The shared execution outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(matchID, func() (interface{}, error) {
		return s.initiate(shared, matchID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *ConversationService) initiate(ctx context.Context, matchID string) (string, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "initiate_conversation",
		"match_id":  matchID,
	})

	match, err := s.lifecycle.Get(ctx, matchID)
	if err != nil {
		return "", err
	}
	if !IsActive(match, s.now()) {
		return "", apperrors.NewInvalidMatchStatus(match.ID, string(match.Status), string(database.MatchActive))
	}

	dog1, err := s.resolveDog(ctx, match.Owner1ID, match.Dog1ID)
	if err != nil {
		return "", err
	}
	dog2, err := s.resolveDog(ctx, match.Owner2ID, match.Dog2ID)
	if err != nil {
		return "", err
	}

	conv, err := s.conversations.FindConversationByMatch(ctx, match.ID)
	if err != nil {
		return "", apperrors.NewDependencyError("find_conversation", err)
	}

	created := false
	if conv == nil {
		conv, created, err = s.conversations.CreateConversation(ctx, &database.Conversation{
			ID:             uuid.New().String(),
			MatchID:        match.ID,
			Owner1ID:       match.Owner1ID,
			Dog1ID:         match.Dog1ID,
			Owner2ID:       match.Owner2ID,
			Dog2ID:         match.Dog2ID,
			Participants:   database.StringList{match.Owner1ID, match.Owner2ID},
			PlaydateStatus: database.PlaydateStatusNone,
			CreatedAt:      s.now(),
		})
		if err != nil {
			logger.WithError(err).Error("Failed to create conversation")
			return "", apperrors.NewDependencyError("create_conversation", err)
		}
	}
	logger = logger.WithFields(map[string]interface{}{
		"conversation_id": conv.ID,
		"created":         created,
	})

	// A conversation left without messages lost its welcome to an earlier failure.
	needsWelcome := created
	if !created {
		existing, err := s.conversations.ListMessages(ctx, conv.ID, time.Time{}, 1)
		if err != nil {
			return "", apperrors.NewDependencyError("list_messages", err)
		}
		needsWelcome = len(existing) == 0
	}

	if created {
		s.metrics.RecordConversationCreated(ctx)
	}
	if needsWelcome {
		welcome := &database.Message{
			ID:             WelcomeMessageID(conv.ID),
			ConversationID: conv.ID,
			SenderID:       database.SystemSenderID,
			Body:           welcomeMessage(dog1, dog2, match),
			Type:           database.MessageSystem,
			CreatedAt:      s.now(),
			Metadata: database.Metadata{
				"match_id":      match.ID,
				"compatibility": match.CompatibilityScore,
			},
		}
		if err := s.conversations.AppendMessage(ctx, welcome); err != nil {
			logger.WithError(err).Error("Failed to post welcome message")
			return "", apperrors.NewDependencyError("append_welcome_message", err)
		}

		s.notifyConversation(ctx, match, conv, dog1, dog2)
	}

	if err := s.lifecycle.AttachConversation(ctx, match, conv.ID); err != nil {
		logger.WithError(err).Error("Failed to store conversation on match")
		return "", err
	}

	logger.Info("Conversation ready")
	return conv.ID, nil
}

// WelcomeMessageID is fixed per conversation so a repeated welcome is stored once
func WelcomeMessageID(conversationID string) string {
	return "welcome-" + conversationID
}

func (s *ConversationService) resolveDog(ctx context.Context, ownerID, dogID string) (*database.DogProfile, error) {
	dog, err := s.profiles.GetDogByID(ctx, dogID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_dog", err)
	}
	if dog == nil {
		return nil, apperrors.NewProfileNotFound(ownerID, dogID)
	}
	return dog, nil
}

func welcomeMessage(dog1, dog2 *database.DogProfile, m *database.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s and %s are a match! They are %.0f%% compatible.",
		dog1.Name, dog2.Name, m.CompatibilityScore*100)

	reasons := m.Reasons
	if len(reasons) > maxWelcomeReasons {
		reasons = reasons[:maxWelcomeReasons]
	}
	if len(reasons) > 0 {
		fmt.Fprintf(&b, " Why they fit: %s.", strings.Join(reasons, ", "))
	}
	b.WriteString(" Say hello and plan a playdate!")
	return b.String()
}

func (s *ConversationService) notifyConversation(ctx context.Context, m *database.Match, conv *database.Conversation, dog1, dog2 *database.DogProfile) {
	if s.notifier == nil {
		return
	}
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":       "notify_conversation",
		"conversation_id": conv.ID,
	})

	targets := []struct {
		ownerID  string
		otherDog *database.DogProfile
	}{
		{m.Owner1ID, dog2},
		{m.Owner2ID, dog1},
	}
	for _, t := range targets {
		data := map[string]string{
			"match_id":        m.ID,
			"conversation_id": conv.ID,
		}
		msg := fmt.Sprintf("You can now chat with %s's owner.", t.otherDog.Name)
		if err := s.notifier.SendMatchNotification(ctx, t.ownerID, "It's a match!", msg, data); err != nil {
			logger.WithError(err).WithField("user_id", t.ownerID).Warn("Failed to send conversation notification")
		}
	}
}

// SendMessage appends a participant's message. System messages skip the rate limit.
func (s *ConversationService) SendMessage(ctx context.Context, cmd SendMessageCommand) (*database.Message, error) {
	if cmd.Type == "" {
		cmd.Type = database.MessageText
	}
	if err := validation.Struct(cmd); err != nil {
		return nil, err
	}

	isSystem := cmd.SenderID == database.SystemSenderID
	if cmd.Type == database.MessageSystem && !isSystem {
		return nil, apperrors.NewValidationError("type", "type system is reserved")
	}

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":       "send_message",
		"conversation_id": cmd.ConversationID,
		"sender_id":       cmd.SenderID,
		"message_type":    string(cmd.Type),
	})

	conv, err := s.conversations.GetConversation(ctx, cmd.ConversationID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_conversation", err)
	}
	if conv == nil {
		return nil, apperrors.NewConversationNotFound(cmd.ConversationID)
	}
	if !isSystem && !conv.HasParticipant(cmd.SenderID) {
		return nil, apperrors.NewNotAParticipant(cmd.SenderID)
	}
	if !isSystem && s.limiter != nil && !s.limiter.Allow(cmd.SenderID) {
		logger.Warn("Message rate limit exceeded")
		return nil, apperrors.NewRateLimitError(s.limiter.Limit(), s.limiter.Window().String())
	}

	msg := &database.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       cmd.SenderID,
		Body:           cmd.Body,
		Type:           cmd.Type,
		CreatedAt:      s.now(),
		Metadata:       cmd.Metadata,
	}
	if err := s.conversations.AppendMessage(ctx, msg); err != nil {
		logger.WithError(err).Error("Failed to store message")
		return nil, apperrors.NewDependencyError("append_message", err)
	}

	if msg.Type == database.MessagePlaydateSuggestion {
		if err := s.conversations.SetPlaydateStatus(ctx, conv.ID, suggestedPlaydateStatus(msg.Metadata)); err != nil {
			logger.WithError(err).Warn("Failed to update playdate hint")
		}
	}
	if err := s.lifecycle.Touch(ctx, conv.MatchID); err != nil {
		logger.WithError(err).Warn("Failed to record match interaction")
	}

	return msg, nil
}

// suggestedPlaydateStatus reads an explicit hint from the message metadata, defaulting to scheduling
func suggestedPlaydateStatus(md database.Metadata) database.PlaydateStatus {
	if v, ok := md["playdate_status"].(string); ok {
		switch status := database.PlaydateStatus(v); status {
		case database.PlaydateStatusDateSuggested,
			database.PlaydateStatusLocationSuggested,
			database.PlaydateStatusPendingConfirmation:
			return status
		}
	}
	return database.PlaydateStatusScheduling
}

// ListMessages returns a participant's page of the newest messages created before
// the cursor, oldest first. A zero before starts from the latest message.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID, userID string, before time.Time, limit int) ([]*database.Message, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_conversation", err)
	}
	if conv == nil {
		return nil, apperrors.NewConversationNotFound(conversationID)
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.NewNotAParticipant(userID)
	}
	if limit <= 0 {
		limit = DefaultMessagesPage
	}

	msgs, err := s.conversations.ListMessages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, apperrors.NewDependencyError("list_messages", err)
	}
	return msgs, nil
}
