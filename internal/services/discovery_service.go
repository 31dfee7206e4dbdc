package services

import (
	"context"
	"time"

	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/pawmatch/pawmatch/internal/interfaces"
	"github.com/pawmatch/pawmatch/internal/monitoring"
	"github.com/pawmatch/pawmatch/internal/scoring"
	"github.com/pawmatch/pawmatch/internal/telemetry"
	"github.com/pawmatch/pawmatch/internal/validation"
)

const (
	DefaultNearbyRadiusKm = 25.0
	MaxNearbyRadiusKm     = 50.0
	DefaultNearbyLimit    = 20
	MaxNearbyLimit        = 100
	// candidatePoolSize bounds how many profiles one nearby query scores
	candidatePoolSize = 1000
)

// DiscoveryService maintains dog profiles and owner contacts and answers scoring queries
type DiscoveryService struct {
	profiles interfaces.ProfileStore
	contacts interfaces.ContactDirectory
	scorer   *scoring.Scorer
	metrics  *monitoring.MatchingMetrics
}

func NewDiscoveryService(
	profiles interfaces.ProfileStore,
	contacts interfaces.ContactDirectory,
	scorer *scoring.Scorer,
	metrics *monitoring.MatchingMetrics,
) *DiscoveryService {
	return &DiscoveryService{
		profiles: profiles,
		contacts: contacts,
		scorer:   scorer,
		metrics:  metrics,
	}
}

// UpsertDog creates or replaces a profile. Only the owning user may replace an existing dog.
func (s *DiscoveryService) UpsertDog(ctx context.Context, callerOwnerID string, dog *database.DogProfile) (*database.DogProfile, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "upsert_dog",
		"dog_id":    dog.ID,
		"owner_id":  callerOwnerID,
	})

	dog.OwnerID = callerOwnerID
	if err := validation.Struct(dog); err != nil {
		return nil, err
	}

	existing, err := s.profiles.GetDogByID(ctx, dog.ID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_dog", err)
	}
	if existing != nil {
		if existing.OwnerID != callerOwnerID {
			return nil, apperrors.NewNotAParticipant(callerOwnerID)
		}
		dog.CreatedAt = existing.CreatedAt
	}

	if err := s.profiles.UpsertDog(ctx, dog); err != nil {
		logger.WithError(err).Error("Failed to store dog profile")
		return nil, apperrors.NewDependencyError("upsert_dog", err)
	}
	logger.WithField("created", existing == nil).Info("Dog profile stored")
	return dog, nil
}

func (s *DiscoveryService) GetDog(ctx context.Context, dogID string) (*database.DogProfile, error) {
	dog, err := s.profiles.GetDogByID(ctx, dogID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_dog", err)
	}
	if dog == nil {
		return nil, apperrors.NewProfileNotFound("", dogID)
	}
	return dog, nil
}

// Nearby ranks other owners' dogs within radiusKm of dogID. Out-of-range arguments are clamped.
func (s *DiscoveryService) Nearby(ctx context.Context, dogID string, radiusKm float64, limit int) ([]scoring.RankedCandidate, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	radiusKm = min(radiusKm, MaxNearbyRadiusKm)
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}
	limit = min(limit, MaxNearbyLimit)

	dog, err := s.GetDog(ctx, dogID)
	if err != nil {
		return nil, err
	}
	if !dog.HasCoordinates() {
		return nil, apperrors.NewValidationError("location", "dog has no known location")
	}

	candidates, err := s.profiles.ListCandidates(ctx, dog.OwnerID, candidatePoolSize)
	if err != nil {
		return nil, apperrors.NewDependencyError("list_candidates", err)
	}

	start := time.Now()
	ranked := s.scorer.RankNearby(dog, candidates, radiusKm, limit)
	s.metrics.ObserveScoring(ctx, "rank_nearby", time.Since(start))

	telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":  "nearby_dogs",
		"dog_id":     dogID,
		"radius_km":  radiusKm,
		"candidates": len(candidates),
		"results":    len(ranked),
	}).Debug("Ranked nearby dogs")
	return ranked, nil
}

// ScorePair scores two stored dogs
func (s *DiscoveryService) ScorePair(ctx context.Context, dogID, otherDogID string) (scoring.MatchScore, error) {
	dog, err := s.GetDog(ctx, dogID)
	if err != nil {
		return scoring.MatchScore{}, err
	}
	other, err := s.GetDog(ctx, otherDogID)
	if err != nil {
		return scoring.MatchScore{}, err
	}

	start := time.Now()
	score := s.scorer.Score(dog, other)
	s.metrics.ObserveScoring(ctx, "score_pair", time.Since(start))
	return score, nil
}

// UpsertContact stores how an owner wants to be notified
func (s *DiscoveryService) UpsertContact(ctx context.Context, contact *database.OwnerContact) error {
	if err := validation.Struct(contact); err != nil {
		return err
	}
	if err := s.contacts.UpsertContact(ctx, contact); err != nil {
		return apperrors.NewDependencyError("upsert_contact", err)
	}
	telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":        "upsert_contact",
		"user_id":          contact.UserID,
		"telegram_linked":  contact.TelegramChatID != nil,
		"email_configured": contact.Email != "",
	}).Info("Owner contact stored")
	return nil
}

func (s *DiscoveryService) GetContact(ctx context.Context, userID string) (*database.OwnerContact, error) {
	contact, err := s.contacts.GetContact(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDependencyError("get_contact", err)
	}
	if contact == nil {
		return nil, apperrors.NewNotFoundError(apperrors.CodeProfileNotFound, "contact", userID)
	}
	return contact, nil
}
