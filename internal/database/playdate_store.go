package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const playdateColumns = `id, match_id, requester_id, receiver_id, time_slots, location, status, created_at, updated_at`

func (s *Store) CreatePlaydateRequest(ctx context.Context, req *PlaydateRequest) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO playdate_requests (`+playdateColumns+`)
		VALUES (:id, :match_id, :requester_id, :receiver_id, :time_slots, :location, :status, :created_at, :updated_at)
	`, req)
	if err != nil {
		return fmt.Errorf("failed to create playdate request: %w", err)
	}
	return nil
}

func (s *Store) GetPlaydateRequest(ctx context.Context, id string) (*PlaydateRequest, error) {
	req := &PlaydateRequest{}
	err := s.db.GetContext(ctx, req, `SELECT `+playdateColumns+` FROM playdate_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playdate request: %w", err)
	}
	return req, nil
}

func (s *Store) UpdatePlaydateRequest(ctx context.Context, req *PlaydateRequest) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE playdate_requests
		SET status = :status, time_slots = :time_slots, location = :location, updated_at = :updated_at
		WHERE id = :id
	`, req)
	if err != nil {
		return fmt.Errorf("failed to update playdate request: %w", err)
	}
	return nil
}
