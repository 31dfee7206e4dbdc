package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/pawmatch/pawmatch/internal/services"
)

func (h *Handler) UpsertDog(c *gin.Context) {
	var dog database.DogProfile
	if !bindJSON(c, &dog) {
		return
	}
	dog.ID = c.Param("id")

	stored, err := h.discovery.UpsertDog(c.Request.Context(), caller(c), &dog)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (h *Handler) GetDog(c *gin.Context) {
	dog, err := h.discovery.GetDog(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dog)
}

// Nearby ranks dogs around one of the caller's own dogs
func (h *Handler) Nearby(c *gin.Context) {
	radius, ok := queryFloat(c, "radius_km")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	dog, err := h.discovery.GetDog(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if dog.OwnerID != caller(c) {
		fail(c, apperrors.NewNotAParticipant(caller(c)))
		return
	}

	ranked, err := h.discovery.Nearby(ctx, dog.ID, radius, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dog_id": dog.ID, "results": ranked})
}

func (h *Handler) ScorePair(c *gin.Context) {
	score, err := h.discovery.ScorePair(c.Request.Context(), c.Param("id"), c.Param("other"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

type swipeRequest struct {
	SwiperDogID string                  `json:"swiper_dog_id"`
	SwipedDogID string                  `json:"swiped_dog_id"`
	Direction   database.SwipeDirection `json:"direction"`
}

// RecordSwipe stores a swipe made by one of the caller's dogs
func (h *Handler) RecordSwipe(c *gin.Context) {
	var req swipeRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if req.SwiperDogID != "" {
		dog, err := h.discovery.GetDog(ctx, req.SwiperDogID)
		if err != nil {
			fail(c, err)
			return
		}
		if dog.OwnerID != caller(c) {
			fail(c, apperrors.NewNotAParticipant(caller(c)))
			return
		}
	}

	result, err := h.swipes.RecordSwipe(ctx, services.SwipeCommand{
		SwiperOwnerID: caller(c),
		SwiperDogID:   req.SwiperDogID,
		SwipedDogID:   req.SwipedDogID,
		Direction:     req.Direction,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) UpsertContact(c *gin.Context) {
	var contact database.OwnerContact
	if !bindJSON(c, &contact) {
		return
	}
	contact.UserID = caller(c)

	if err := h.discovery.UpsertContact(c.Request.Context(), &contact); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) GetContact(c *gin.Context) {
	contact, err := h.discovery.GetContact(c.Request.Context(), caller(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}
