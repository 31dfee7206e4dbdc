package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) GetContact(ctx context.Context, userID string) (*OwnerContact, error) {
	c := &OwnerContact{}
	err := s.db.GetContext(ctx, c, `
		SELECT user_id, display_name, telegram_chat_id, email, updated_at
		FROM owner_contacts WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner contact: %w", err)
	}
	return c, nil
}

func (s *Store) UpsertContact(ctx context.Context, contact *OwnerContact) error {
	contact.UpdatedAt = time.Now().UTC()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO owner_contacts (user_id, display_name, telegram_chat_id, email, updated_at)
		VALUES (:user_id, :display_name, :telegram_chat_id, :email, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at
	`, contact)
	if err != nil {
		return fmt.Errorf("failed to upsert owner contact: %w", err)
	}
	return nil
}
