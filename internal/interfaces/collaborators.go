// Package interfaces holds the contracts the matching core consumes from storage,
// notification and geo collaborators.
package interfaces

import (
	"context"
	"time"

	"github.com/pawmatch/pawmatch/internal/database"
)

// ProfileLookup resolves dog profiles. A missing dog yields (nil, nil).
type ProfileLookup interface {
	GetDogByID(ctx context.Context, id string) (*database.DogProfile, error)
}

// ProfileStore is the writable profile catalogue behind ProfileLookup
type ProfileStore interface {
	ProfileLookup
	UpsertDog(ctx context.Context, dog *database.DogProfile) error
	// ListCandidates returns dogs not owned by excludeOwnerID, newest first
	ListCandidates(ctx context.Context, excludeOwnerID string, limit int) ([]*database.DogProfile, error)
}

type SwipeStore interface {
	InsertSwipe(ctx context.Context, swipe *database.Swipe) error
	// FindReciprocalSwipe returns the latest swipe from swipedDogID toward swiperDogID
	// when that swipe is a like or super-like, otherwise nil.
	FindReciprocalSwipe(ctx context.Context, swiperDogID, swipedDogID string) (*database.Swipe, error)
	// ListPositiveSwipesSince returns like and super-like swipes created at or after since
	ListPositiveSwipesSince(ctx context.Context, since time.Time, limit int) ([]*database.Swipe, error)
}

type MatchStore interface {
	// InsertMatchIfAbsent atomically inserts match unless a non-cancelled match
	// already exists for match.PairKey. It returns the stored match and whether
	// this call created it.
	InsertMatchIfAbsent(ctx context.Context, match *database.Match) (*database.Match, bool, error)
	GetMatchByID(ctx context.Context, id string) (*database.Match, error)
	// FindMatchByPair returns the non-cancelled match for the unordered pair, if any
	FindMatchByPair(ctx context.Context, dogA, dogB string) (*database.Match, error)
	// FindLatestCancelledMatch returns the most recently cancelled match for the unordered pair, if any
	FindLatestCancelledMatch(ctx context.Context, dogA, dogB string) (*database.Match, error)
	UpdateMatch(ctx context.Context, match *database.Match) error
	// ListExpirableMatches returns pending or active matches whose expiry is at or before now
	ListExpirableMatches(ctx context.Context, now time.Time, limit int) ([]*database.Match, error)
}

type ConversationStore interface {
	FindConversationByMatch(ctx context.Context, matchID string) (*database.Conversation, error)
	GetConversation(ctx context.Context, id string) (*database.Conversation, error)
	// CreateConversation inserts conv unless one already exists for conv.MatchID.
	// It returns the stored conversation and whether this call created it.
	CreateConversation(ctx context.Context, conv *database.Conversation) (*database.Conversation, bool, error)
	// AppendMessage stores msg and refreshes the conversation's last-message preview.
	// A message whose ID is already stored is ignored.
	AppendMessage(ctx context.Context, msg *database.Message) error
	// ListMessages returns the newest limit messages created before the cursor, oldest first.
	// A zero before reads from the latest message.
	ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]*database.Message, error)
	SetPlaydateStatus(ctx context.Context, conversationID string, status database.PlaydateStatus) error
}

type PlaydateStore interface {
	CreatePlaydateRequest(ctx context.Context, req *database.PlaydateRequest) error
	GetPlaydateRequest(ctx context.Context, id string) (*database.PlaydateRequest, error)
	UpdatePlaydateRequest(ctx context.Context, req *database.PlaydateRequest) error
}

// NotificationSink delivers user-facing notifications. Transport is up to the implementation.
type NotificationSink interface {
	SendMatchNotification(ctx context.Context, userID, title, message string, data map[string]string) error
	SendPlaydateRequestNotification(ctx context.Context, userID, requestID, otherDogName string) error
}

// LocationValidator rejects locations that cannot host a playdate
type LocationValidator interface {
	Validate(ctx context.Context, location database.PlaydateLocation) error
}

// AvailabilityProvider reports an owner's free windows for the week starting at weekStart.
// It is best-effort: callers must not block scheduling on missing data.
type AvailabilityProvider interface {
	GetAvailabilityWindow(ctx context.Context, userID string, weekStart time.Time) ([]database.TimeSlot, error)
}

// PairLocker serializes match creation for one dog pair across processes
type PairLocker interface {
	AcquirePairLock(ctx context.Context, pairKey string, ttl time.Duration) (bool, error)
	ReleasePairLock(ctx context.Context, pairKey string) error
}

// ContactDirectory resolves where an owner receives notifications. A missing owner yields (nil, nil).
type ContactDirectory interface {
	GetContact(ctx context.Context, userID string) (*database.OwnerContact, error)
	UpsertContact(ctx context.Context, contact *database.OwnerContact) error
}
