package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const matchColumns = `id, pair_key, owner1_id, owner2_id, dog1_id, dog2_id, compatibility_score,
	reasons, match_type, status, created_at, last_interaction_at, expires_at, conversation_id`

// InsertMatchIfAbsent relies on the partial unique index over live pair keys.
// Losing the race re-reads and returns the winner.
func (s *Store) InsertMatchIfAbsent(ctx context.Context, match *Match) (*Match, bool, error) {
	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES (:id, :pair_key, :owner1_id, :owner2_id, :dog1_id, :dog2_id, :compatibility_score,
			:reasons, :match_type, :status, :created_at, :last_interaction_at, :expires_at, :conversation_id)
		ON CONFLICT (pair_key) WHERE status <> 'cancelled' DO NOTHING
		RETURNING id
	`, match)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert match: %w", err)
	}
	inserted := rows.Next()
	if err := rows.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to insert match: %w", err)
	}
	if inserted {
		return match, true, nil
	}

	existing, err := s.getLiveMatchByPairKey(ctx, match.PairKey)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// The conflicting row was cancelled between the insert and the read.
		return nil, false, fmt.Errorf("failed to insert match: pair %s changed concurrently", match.PairKey)
	}
	return existing, false, nil
}

func (s *Store) GetMatchByID(ctx context.Context, id string) (*Match, error) {
	match := &Match{}
	err := s.db.GetContext(ctx, match, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

func (s *Store) FindMatchByPair(ctx context.Context, dogA, dogB string) (*Match, error) {
	return s.getLiveMatchByPairKey(ctx, PairKey(dogA, dogB))
}

func (s *Store) getLiveMatchByPairKey(ctx context.Context, pairKey string) (*Match, error) {
	match := &Match{}
	err := s.db.GetContext(ctx, match, `
		SELECT `+matchColumns+` FROM matches
		WHERE pair_key = $1 AND status <> 'cancelled'
	`, pairKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match by pair: %w", err)
	}
	return match, nil
}

// FindLatestCancelledMatch orders by last interaction, which a cancel stamps
func (s *Store) FindLatestCancelledMatch(ctx context.Context, dogA, dogB string) (*Match, error) {
	match := &Match{}
	err := s.db.GetContext(ctx, match, `
		SELECT `+matchColumns+` FROM matches
		WHERE pair_key = $1 AND status = 'cancelled'
		ORDER BY last_interaction_at DESC
		LIMIT 1
	`, PairKey(dogA, dogB))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cancelled match: %w", err)
	}
	return match, nil
}

func (s *Store) UpdateMatch(ctx context.Context, match *Match) error {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE matches SET
			status = :status,
			last_interaction_at = :last_interaction_at,
			expires_at = :expires_at,
			conversation_id = :conversation_id
		WHERE id = :id
	`, match)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update match: %s does not exist", match.ID)
	}
	return nil
}

func (s *Store) ListExpirableMatches(ctx context.Context, now time.Time, limit int) ([]*Match, error) {
	var matches []*Match
	err := s.db.SelectContext(ctx, &matches, `
		SELECT `+matchColumns+` FROM matches
		WHERE status IN ('pending', 'active') AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expirable matches: %w", err)
	}
	return matches, nil
}
