package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const swipeColumns = `id, swiper_owner_id, swiper_dog_id, swiped_dog_id, direction, created_at`

func (s *Store) InsertSwipe(ctx context.Context, swipe *Swipe) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO swipes (`+swipeColumns+`)
		VALUES (:id, :swiper_owner_id, :swiper_dog_id, :swiped_dog_id, :direction, :created_at)
	`, swipe)
	if err != nil {
		return fmt.Errorf("failed to insert swipe: %w", err)
	}
	return nil
}

// FindReciprocalSwipe looks at the latest swipe from swipedDogID toward swiperDogID.
// A later pass supersedes an earlier like.
func (s *Store) FindReciprocalSwipe(ctx context.Context, swiperDogID, swipedDogID string) (*Swipe, error) {
	swipe := &Swipe{}
	err := s.db.GetContext(ctx, swipe, `
		SELECT `+swipeColumns+` FROM swipes
		WHERE swiper_dog_id = $1 AND swiped_dog_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, swipedDogID, swiperDogID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reciprocal swipe: %w", err)
	}
	if !swipe.Direction.IsPositive() {
		return nil, nil
	}
	return swipe, nil
}

func (s *Store) ListPositiveSwipesSince(ctx context.Context, since time.Time, limit int) ([]*Swipe, error) {
	var swipes []*Swipe
	err := s.db.SelectContext(ctx, &swipes, `
		SELECT `+swipeColumns+` FROM swipes
		WHERE created_at >= $1 AND direction IN ('like', 'super_like')
		ORDER BY created_at
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list swipes: %w", err)
	}
	return swipes, nil
}
