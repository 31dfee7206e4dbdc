package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/pawmatch/pawmatch/internal/services"
)

// sessionKey scopes a client-chosen session name to the caller so one owner
// can never read or overwrite another owner's negotiation
func sessionKey(c *gin.Context) string {
	return caller(c) + ":" + c.Param("session")
}

type startNegotiationRequest struct {
	MatchID string `json:"match_id"`
}

func (h *Handler) StartNegotiation(c *gin.Context) {
	var req startNegotiationRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.MatchID == "" {
		fail(c, apperrors.NewValidationError("match_id", "match_id is required"))
		return
	}

	negotiation, err := h.playdates.Start(c.Request.Context(), sessionKey(c), req.MatchID, caller(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, negotiation)
}

type proposeTimeRequest struct {
	Time time.Time `json:"time"`
}

func (h *Handler) ProposeTime(c *gin.Context) {
	var req proposeTimeRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Time.IsZero() {
		fail(c, apperrors.NewValidationError("time", "time is required"))
		return
	}

	result, err := h.playdates.ProposeTime(c.Request.Context(), sessionKey(c), req.Time)
	h.renderNegotiation(c, result, err)
}

func (h *Handler) ProposeLocation(c *gin.Context) {
	var loc database.PlaydateLocation
	if !bindJSON(c, &loc) {
		return
	}

	result, err := h.playdates.ProposeLocation(c.Request.Context(), sessionKey(c), loc)
	h.renderNegotiation(c, result, err)
}

func (h *Handler) FinalizeNegotiation(c *gin.Context) {
	result, err := h.playdates.Finalize(c.Request.Context(), sessionKey(c))
	h.renderNegotiation(c, result, err)
}

// renderNegotiation answers 201 once a proposal produced the playdate request
func (h *Handler) renderNegotiation(c *gin.Context, result *services.NegotiationResult, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if result.Status == services.NegotiationFinalized {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

func (h *Handler) CancelNegotiation(c *gin.Context) {
	h.playdates.Cancel(c.Request.Context(), sessionKey(c))
	c.Status(http.StatusNoContent)
}

type respondRequest struct {
	Action services.RespondAction `json:"action"`
}

func (h *Handler) RespondToPlaydate(c *gin.Context) {
	var req respondRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.playdates.Respond(c.Request.Context(), c.Param("id"), caller(c), req.Action)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
