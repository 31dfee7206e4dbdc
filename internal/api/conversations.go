package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pawmatch/pawmatch/internal/database"
	"github.com/pawmatch/pawmatch/internal/services"
)

func (h *Handler) ListMessages(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	before, ok := queryTime(c, "before")
	if !ok {
		return
	}

	messages, err := h.conversations.ListMessages(c.Request.Context(), c.Param("id"), caller(c), before, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": c.Param("id"), "messages": messages})
}

type sendMessageRequest struct {
	Body     string               `json:"body"`
	Type     database.MessageType `json:"type"`
	Metadata database.Metadata    `json:"metadata"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.conversations.SendMessage(c.Request.Context(), services.SendMessageCommand{
		ConversationID: c.Param("id"),
		SenderID:       caller(c),
		Body:           req.Body,
		Type:           req.Type,
		Metadata:       req.Metadata,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
