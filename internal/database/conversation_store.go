package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
)

const conversationColumns = `id, match_id, owner1_id, dog1_id, owner2_id, dog2_id, participants,
	last_message, last_message_at, has_unread, playdate_status, created_at`

const messageColumns = `id, conversation_id, sender_id, body, type, created_at, metadata`

func (s *Store) FindConversationByMatch(ctx context.Context, matchID string) (*Conversation, error) {
	return s.getConversation(ctx, `match_id = $1`, matchID)
}

func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return s.getConversation(ctx, `id = $1`, id)
}

func (s *Store) getConversation(ctx context.Context, where string, arg string) (*Conversation, error) {
	conv := &Conversation{}
	err := s.db.GetContext(ctx, conv, `SELECT `+conversationColumns+` FROM conversations WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// CreateConversation is guarded by the unique match_id. A concurrent creator wins and is returned.
func (s *Store) CreateConversation(ctx context.Context, conv *Conversation) (*Conversation, bool, error) {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES (:id, :match_id, :owner1_id, :dog1_id, :owner2_id, :dog2_id, :participants,
			:last_message, :last_message_at, :has_unread, :playdate_status, :created_at)
	`, conv)
	if err == nil {
		return conv, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	existing, err := s.FindConversationByMatch(ctx, conv.MatchID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("failed to create conversation: conflict on match %s without a row", conv.MatchID)
	}
	return existing, false, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		inserted, err := tx.NamedExecContext(ctx, `
			INSERT INTO messages (`+messageColumns+`)
			VALUES (:id, :conversation_id, :sender_id, :body, :type, :created_at, :metadata)
			ON CONFLICT (id) DO NOTHING
		`, msg)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		if n, err := inserted.RowsAffected(); err == nil && n == 0 {
			return nil
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE conversations
			SET last_message = $1, last_message_at = $2, has_unread = true
			WHERE id = $3
		`, msg.Body, msg.CreatedAt, msg.ConversationID)
		if err != nil {
			return fmt.Errorf("failed to update conversation preview: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("failed to append message: conversation %s does not exist", msg.ConversationID)
		}
		return nil
	})
}

// ListMessages pages backwards from before, then flips the page to read oldest first
func (s *Store) ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]*Message, error) {
	var cursor interface{}
	if !before.IsZero() {
		cursor = before
	}
	var messages []*Message
	err := s.db.SelectContext(ctx, &messages, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, conversationID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

func (s *Store) SetPlaydateStatus(ctx context.Context, conversationID string, status PlaydateStatus) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET playdate_status = $1 WHERE id = $2`, status, conversationID); err != nil {
		return fmt.Errorf("failed to set playdate status: %w", err)
	}
	return nil
}
