package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SystemSenderID is the reserved sender of machine-generated conversation messages
const SystemSenderID = "system"

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
	SizeGiant  Size = "giant"
)

// Level is the low/medium/high scale used for energy and exercise needs
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// DogProfile is the scoring input for one dog. It is never mutated while being scored.
type DogProfile struct {
	ID             string     `json:"id" db:"id" validate:"required"`
	OwnerID        string     `json:"owner_id" db:"owner_id" validate:"required"`
	Name           string     `json:"name" db:"name" validate:"required,max=64"`
	Breed          string     `json:"breed" db:"breed"`
	AgeYears       *float64   `json:"age_years,omitempty" db:"age_years" validate:"omitempty,gte=0,lte=30"`
	Size           Size       `json:"size,omitempty" db:"size" validate:"omitempty,oneof=small medium large giant"`
	EnergyLevel    Level      `json:"energy_level,omitempty" db:"energy_level" validate:"omitempty,oneof=low medium high"`
	Friendliness   *int       `json:"friendliness,omitempty" db:"friendliness" validate:"omitempty,min=1,max=5"`
	Trainability   *int       `json:"trainability,omitempty" db:"trainability" validate:"omitempty,min=1,max=5"`
	ExerciseNeeds  Level      `json:"exercise_needs,omitempty" db:"exercise_needs" validate:"omitempty,oneof=low medium high"`
	GroomingNeeds  Level      `json:"grooming_needs,omitempty" db:"grooming_needs" validate:"omitempty,oneof=low medium high"`
	SpecialNeeds   StringList `json:"special_needs" db:"special_needs"`
	SpayedNeutered *bool      `json:"spayed_neutered,omitempty" db:"spayed_neutered"`
	Latitude       *float64   `json:"latitude,omitempty" db:"latitude" validate:"omitempty,latitude"`
	Longitude      *float64   `json:"longitude,omitempty" db:"longitude" validate:"omitempty,longitude"`
	Venues         Venues     `json:"venues" db:"venues" validate:"dive"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// HasCoordinates reports whether both latitude and longitude are known
func (d *DogProfile) HasCoordinates() bool {
	return d.Latitude != nil && d.Longitude != nil
}

// Venue is a place a dog is known to frequent (park, beach, daycare)
type Venue struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

type Venues []Venue

func (v Venues) Value() (driver.Value, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

func (v *Venues) Scan(value interface{}) error {
	return scanJSON(value, v, "Venues")
}

// StringList is a JSON-encoded list column
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(value interface{}) error {
	return scanJSON(value, s, "StringList")
}

// Metadata is a free-form JSON object column
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	return scanJSON(value, m, "Metadata")
}

func scanJSON(value interface{}, dest interface{}, name string) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %s", value, name)
	}
}

type SwipeDirection string

const (
	SwipeLike      SwipeDirection = "like"
	SwipePass      SwipeDirection = "pass"
	SwipeSuperLike SwipeDirection = "super_like"
)

// IsPositive reports whether the direction expresses interest
func (d SwipeDirection) IsPositive() bool {
	return d == SwipeLike || d == SwipeSuperLike
}

// Valid reports whether d is one of the known directions
func (d SwipeDirection) Valid() bool {
	return d == SwipeLike || d == SwipePass || d == SwipeSuperLike
}

// Swipe is one-directional interest from one dog toward another. Swipes are append-only.
type Swipe struct {
	ID            string         `json:"id" db:"id"`
	SwiperOwnerID string         `json:"swiper_owner_id" db:"swiper_owner_id"`
	SwiperDogID   string         `json:"swiper_dog_id" db:"swiper_dog_id"`
	SwipedDogID   string         `json:"swiped_dog_id" db:"swiped_dog_id"`
	Direction     SwipeDirection `json:"direction" db:"direction"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchActive    MatchStatus = "active"
	MatchDeclined  MatchStatus = "declined"
	MatchExpired   MatchStatus = "expired"
	MatchCancelled MatchStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed out of s
func (s MatchStatus) IsTerminal() bool {
	return s == MatchDeclined || s == MatchExpired || s == MatchCancelled
}

type MatchType string

const (
	MatchTypeStandard     MatchType = "standard"
	MatchTypeSuperLike    MatchType = "super_like"
	MatchTypePerfectMatch MatchType = "perfect_match"
	MatchTypeNearby       MatchType = "nearby"
	MatchTypeSamePark     MatchType = "same_park"
)

// IsHighValue reports whether the type earns a doubled expiry window
func (t MatchType) IsHighValue() bool {
	return t == MatchTypeSuperLike || t == MatchTypePerfectMatch
}

// Match records mutual interest between two dogs. Dog1 is the side whose
// swipe completed the reciprocity, Dog2 is the receiver who accepts or declines.
type Match struct {
	ID                 string      `json:"id" db:"id"`
	PairKey            string      `json:"pair_key" db:"pair_key"`
	Owner1ID           string      `json:"owner1_id" db:"owner1_id"`
	Owner2ID           string      `json:"owner2_id" db:"owner2_id"`
	Dog1ID             string      `json:"dog1_id" db:"dog1_id"`
	Dog2ID             string      `json:"dog2_id" db:"dog2_id"`
	CompatibilityScore float64     `json:"compatibility_score" db:"compatibility_score"`
	Reasons            StringList  `json:"reasons" db:"reasons"`
	MatchType          MatchType   `json:"match_type" db:"match_type"`
	Status             MatchStatus `json:"status" db:"status"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	LastInteractionAt  time.Time   `json:"last_interaction_at" db:"last_interaction_at"`
	ExpiresAt          time.Time   `json:"expires_at" db:"expires_at"`
	ConversationID     *string     `json:"conversation_id,omitempty" db:"conversation_id"`
}

// HasParticipant reports whether ownerID owns either dog of the match
func (m *Match) HasParticipant(ownerID string) bool {
	return ownerID != "" && (m.Owner1ID == ownerID || m.Owner2ID == ownerID)
}

// OtherSide returns the owner and dog opposite ownerID
func (m *Match) OtherSide(ownerID string) (otherOwnerID, otherDogID string) {
	if m.Owner1ID == ownerID {
		return m.Owner2ID, m.Dog2ID
	}
	return m.Owner1ID, m.Dog1ID
}

// DogOf returns the dog belonging to ownerID in this match
func (m *Match) DogOf(ownerID string) string {
	if m.Owner1ID == ownerID {
		return m.Dog1ID
	}
	return m.Dog2ID
}

// PairKey canonicalizes an unordered dog pair as "low:high"
func PairKey(dogA, dogB string) string {
	ids := []string{dogA, dogB}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// PlaydateStatus is a UI hint on a conversation and carries no lifecycle semantics
type PlaydateStatus string

const (
	PlaydateStatusNone                PlaydateStatus = "none"
	PlaydateStatusScheduling          PlaydateStatus = "scheduling"
	PlaydateStatusDateSuggested       PlaydateStatus = "date_suggested"
	PlaydateStatusLocationSuggested   PlaydateStatus = "location_suggested"
	PlaydateStatusPendingConfirmation PlaydateStatus = "pending_confirmation"
	PlaydateStatusConfirmed           PlaydateStatus = "confirmed"
	PlaydateStatusCancelled           PlaydateStatus = "cancelled"
)

// Conversation is the messaging thread of a match. MatchID is unique.
type Conversation struct {
	ID             string         `json:"id" db:"id"`
	MatchID        string         `json:"match_id" db:"match_id"`
	Owner1ID       string         `json:"owner1_id" db:"owner1_id"`
	Dog1ID         string         `json:"dog1_id" db:"dog1_id"`
	Owner2ID       string         `json:"owner2_id" db:"owner2_id"`
	Dog2ID         string         `json:"dog2_id" db:"dog2_id"`
	Participants   StringList     `json:"participants" db:"participants"`
	LastMessage    string         `json:"last_message" db:"last_message"`
	LastMessageAt  *time.Time     `json:"last_message_at,omitempty" db:"last_message_at"`
	HasUnread      bool           `json:"has_unread" db:"has_unread"`
	PlaydateStatus PlaydateStatus `json:"playdate_status" db:"playdate_status"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// HasParticipant reports whether userID is part of the conversation
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type MessageType string

const (
	MessageText               MessageType = "text"
	MessageSystem             MessageType = "system"
	MessagePlaydateSuggestion MessageType = "playdate_suggestion"
	MessageImage              MessageType = "image"
)

type Message struct {
	ID             string      `json:"id" db:"id"`
	ConversationID string      `json:"conversation_id" db:"conversation_id"`
	SenderID       string      `json:"sender_id" db:"sender_id"`
	Body           string      `json:"body" db:"body"`
	Type           MessageType `json:"type" db:"type"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	Metadata       Metadata    `json:"metadata,omitempty" db:"metadata"`
}

// IsSystem reports whether the message was generated by the service
func (m *Message) IsSystem() bool {
	return m.SenderID == SystemSenderID
}

type TimeSlot struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

// Contains reports whether t falls within [Start, End)
func (s TimeSlot) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

type TimeSlots []TimeSlot

func (t TimeSlots) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

func (t *TimeSlots) Scan(value interface{}) error {
	return scanJSON(value, t, "TimeSlots")
}

// PlaydateLocation is a proposed meeting place
type PlaydateLocation struct {
	Name      string  `json:"name" validate:"required,max=128"`
	Address   string  `json:"address" validate:"required,max=256"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	VenueID   string  `json:"venue_id,omitempty"`
}

func (l PlaydateLocation) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *PlaydateLocation) Scan(value interface{}) error {
	return scanJSON(value, l, "PlaydateLocation")
}

type PlaydateRequestStatus string

const (
	PlaydateRequestPending     PlaydateRequestStatus = "pending"
	PlaydateRequestAccepted    PlaydateRequestStatus = "accepted"
	PlaydateRequestDeclined    PlaydateRequestStatus = "declined"
	PlaydateRequestRescheduled PlaydateRequestStatus = "rescheduled"
	PlaydateRequestCanceled    PlaydateRequestStatus = "canceled"
)

// PlaydateRequest is the persisted outcome of a finalized negotiation
type PlaydateRequest struct {
	ID          string                `json:"id" db:"id"`
	MatchID     string                `json:"match_id" db:"match_id"`
	RequesterID string                `json:"requester_id" db:"requester_id"`
	ReceiverID  string                `json:"receiver_id" db:"receiver_id"`
	TimeSlots   TimeSlots             `json:"time_slots" db:"time_slots"`
	Location    PlaydateLocation      `json:"location" db:"location"`
	Status      PlaydateRequestStatus `json:"status" db:"status"`
	CreatedAt   time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at" db:"updated_at"`
}

// AvailabilitySlot is one free window an owner published for a given week
type AvailabilitySlot struct {
	ID       string    `json:"id" db:"id"`
	UserID   string    `json:"user_id" db:"user_id"`
	StartsAt time.Time `json:"starts_at" db:"starts_at"`
	EndsAt   time.Time `json:"ends_at" db:"ends_at"`
}

// OwnerContact is where an owner receives notifications. Either channel may be empty.
type OwnerContact struct {
	UserID         string    `json:"user_id" db:"user_id" validate:"required"`
	DisplayName    string    `json:"display_name,omitempty" db:"display_name" validate:"max=64"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`
	Email          string    `json:"email,omitempty" db:"email" validate:"omitempty,email"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
