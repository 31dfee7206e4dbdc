package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store implements every persistence contract of the matching core on Postgres
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

const dogColumns = `id, owner_id, name, breed, age_years, size, energy_level, friendliness,
	trainability, exercise_needs, grooming_needs, special_needs, spayed_neutered,
	latitude, longitude, venues, created_at, updated_at`

func (s *Store) GetDogByID(ctx context.Context, id string) (*DogProfile, error) {
	dog := &DogProfile{}
	err := s.db.GetContext(ctx, dog, `SELECT `+dogColumns+` FROM dog_profiles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dog profile: %w", err)
	}
	return dog, nil
}

func (s *Store) UpsertDog(ctx context.Context, dog *DogProfile) error {
	now := time.Now().UTC()
	if dog.CreatedAt.IsZero() {
		dog.CreatedAt = now
	}
	dog.UpdatedAt = now

	query := `
		INSERT INTO dog_profiles (` + dogColumns + `)
		VALUES (:id, :owner_id, :name, :breed, :age_years, :size, :energy_level, :friendliness,
			:trainability, :exercise_needs, :grooming_needs, :special_needs, :spayed_neutered,
			:latitude, :longitude, :venues, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			name = EXCLUDED.name,
			breed = EXCLUDED.breed,
			age_years = EXCLUDED.age_years,
			size = EXCLUDED.size,
			energy_level = EXCLUDED.energy_level,
			friendliness = EXCLUDED.friendliness,
			trainability = EXCLUDED.trainability,
			exercise_needs = EXCLUDED.exercise_needs,
			grooming_needs = EXCLUDED.grooming_needs,
			special_needs = EXCLUDED.special_needs,
			spayed_neutered = EXCLUDED.spayed_neutered,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			venues = EXCLUDED.venues,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.NamedExecContext(ctx, query, dog); err != nil {
		return fmt.Errorf("failed to upsert dog profile: %w", err)
	}
	return nil
}

func (s *Store) ListCandidates(ctx context.Context, excludeOwnerID string, limit int) ([]*DogProfile, error) {
	var dogs []*DogProfile
	err := s.db.SelectContext(ctx, &dogs, `
		SELECT `+dogColumns+` FROM dog_profiles
		WHERE owner_id <> $1
		ORDER BY created_at DESC
		LIMIT $2
	`, excludeOwnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate dogs: %w", err)
	}
	return dogs, nil
}

// GetAvailabilityWindow returns the owner's published slots in [weekStart, weekStart+7d)
func (s *Store) GetAvailabilityWindow(ctx context.Context, userID string, weekStart time.Time) ([]TimeSlot, error) {
	var rows []AvailabilitySlot
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, starts_at, ends_at FROM availability_slots
		WHERE user_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at
	`, userID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}

	slots := make([]TimeSlot, 0, len(rows))
	for _, r := range rows {
		slots = append(slots, TimeSlot{Start: r.StartsAt, End: r.EndsAt})
	}
	return slots, nil
}
