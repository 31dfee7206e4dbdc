package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
)

// participantMatch loads the match, rejecting callers who are not one of its owners
func (h *Handler) participantMatch(ctx context.Context, matchID, userID string) (*database.Match, error) {
	m, err := h.lifecycle.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(userID) {
		return nil, apperrors.NewNotAParticipant(userID)
	}
	return m, nil
}

func (h *Handler) GetMatch(c *gin.Context) {
	m, err := h.participantMatch(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) AcceptMatch(c *gin.Context) {
	h.transition(c, h.lifecycle.Accept)
}

func (h *Handler) DeclineMatch(c *gin.Context) {
	h.transition(c, h.lifecycle.Decline)
}

func (h *Handler) CancelMatch(c *gin.Context) {
	h.transition(c, h.lifecycle.Cancel)
}

func (h *Handler) transition(c *gin.Context, apply func(ctx context.Context, matchID, actorOwnerID string) (*database.Match, error)) {
	m, err := apply(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// InitiateConversation returns the match's conversation, creating it on first call
func (h *Handler) InitiateConversation(c *gin.Context) {
	ctx := c.Request.Context()
	m, err := h.participantMatch(ctx, c.Param("id"), caller(c))
	if err != nil {
		fail(c, err)
		return
	}

	conversationID, err := h.conversations.InitiateConversation(ctx, m.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match_id": m.ID, "conversation_id": conversationID})
}
