// Package api exposes the matching engine over HTTP with gin.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/pawmatch/pawmatch/internal/middleware"
	"github.com/pawmatch/pawmatch/internal/monitoring"
	"github.com/pawmatch/pawmatch/internal/services"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps are the collaborators the handlers call. Health, Metrics and RequestLimiter may be nil.
type Deps struct {
	Discovery     *services.DiscoveryService
	Swipes        *services.SwipeService
	Lifecycle     *services.MatchLifecycle
	Conversations *services.ConversationService
	Playdates     *services.PlaydateService

	Health         *monitoring.HealthChecker
	Metrics        *monitoring.HTTPMetrics
	RequestLimiter *middleware.KeyedRateLimiter
	Logging        *middleware.LoggingConfig
	// ServiceName enables otelgin spans when set
	ServiceName string
}

type Handler struct {
	discovery     *services.DiscoveryService
	swipes        *services.SwipeService
	lifecycle     *services.MatchLifecycle
	conversations *services.ConversationService
	playdates     *services.PlaydateService
}

// NewRouter builds the engine with correlation IDs, request logging, error rendering and the /v1 routes
func NewRouter(deps Deps) *gin.Engine {
	h := &Handler{
		discovery:     deps.Discovery,
		swipes:        deps.Swipes,
		lifecycle:     deps.Lifecycle,
		conversations: deps.Conversations,
		playdates:     deps.Playdates,
	}

	router := gin.New()
	if deps.ServiceName != "" {
		router.Use(otelgin.Middleware(deps.ServiceName))
	}
	router.Use(middleware.CorrelationID(), middleware.RequestLogger(deps.Logging), middleware.ErrorHandler())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
	}

	if deps.Health != nil {
		router.GET("/health", deps.Health.HealthHandler())
		router.GET("/health/live", deps.Health.LivenessHandler())
	}

	v1 := router.Group("/v1", middleware.RequireUser())
	if deps.RequestLimiter != nil {
		v1.Use(middleware.RateLimit(deps.RequestLimiter))
	}

	v1.PUT("/contacts/me", h.UpsertContact)
	v1.GET("/contacts/me", h.GetContact)

	v1.PUT("/dogs/:id", h.UpsertDog)
	v1.GET("/dogs/:id", h.GetDog)
	v1.GET("/dogs/:id/nearby", h.Nearby)
	v1.GET("/dogs/:id/score/:other", h.ScorePair)

	v1.POST("/swipes", h.RecordSwipe)

	v1.GET("/matches/:id", h.GetMatch)
	v1.POST("/matches/:id/accept", h.AcceptMatch)
	v1.POST("/matches/:id/decline", h.DeclineMatch)
	v1.POST("/matches/:id/cancel", h.CancelMatch)
	v1.POST("/matches/:id/conversation", h.InitiateConversation)

	v1.GET("/conversations/:id/messages", h.ListMessages)
	v1.POST("/conversations/:id/messages", h.SendMessage)

	sessions := v1.Group("/playdates/sessions/:session")
	sessions.POST("/start", h.StartNegotiation)
	sessions.POST("/time", h.ProposeTime)
	sessions.POST("/location", h.ProposeLocation)
	sessions.POST("/finalize", h.FinalizeNegotiation)
	sessions.DELETE("", h.CancelNegotiation)
	v1.POST("/playdates/:id/respond", h.RespondToPlaydate)

	return router
}
