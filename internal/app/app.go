// Package app turns a loaded config into the stores and services shared by the
// API server and the background worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pawmatch/pawmatch/internal/cache"
	"github.com/pawmatch/pawmatch/internal/config"
	"github.com/pawmatch/pawmatch/internal/database"
	"github.com/pawmatch/pawmatch/internal/geo"
	"github.com/pawmatch/pawmatch/internal/interfaces"
	"github.com/pawmatch/pawmatch/internal/middleware"
	"github.com/pawmatch/pawmatch/internal/monitoring"
	"github.com/pawmatch/pawmatch/internal/notification"
	"github.com/pawmatch/pawmatch/internal/scoring"
	"github.com/pawmatch/pawmatch/internal/services"
	"github.com/pawmatch/pawmatch/internal/session"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

// Store is every persistence contract the services need. Both the Postgres
// store and the in-memory store satisfy it.
type Store interface {
	interfaces.ProfileStore
	interfaces.SwipeStore
	interfaces.MatchStore
	interfaces.ConversationStore
	interfaces.PlaydateStore
	interfaces.ContactDirectory
	interfaces.AvailabilityProvider
}

var (
	_ Store = (*database.Store)(nil)
	_ Store = (*database.MemoryStore)(nil)
)

type App struct {
	Config  *config.Config
	Store   Store
	DB      *database.DB
	Redis   *cache.RedisService
	Metrics *monitoring.MatchingMetrics
	Health  *monitoring.HealthChecker

	Scorer        *scoring.Scorer
	Sessions      *session.Manager
	Lifecycle     *services.MatchLifecycle
	Swipes        *services.SwipeService
	Discovery     *services.DiscoveryService
	Conversations *services.ConversationService
	Playdates     *services.PlaydateService
	// MessageLimiter throttles conversation sends per owner
	MessageLimiter *middleware.KeyedRateLimiter
}

// New connects the configured backends and wires the services. Redis, the
// notification channels and location validation are optional: a missing or
// unreachable backend disables the feature instead of failing startup.
func New(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	logger := telemetry.GetContextualLogger(ctx).WithField("operation", "bootstrap")

	a := &App{
		Config: cfg,
		Health: monitoring.NewHealthChecker(cfg.Telemetry.ServiceName, version),
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	metrics, err := monitoring.NewMatchingMetrics()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create matching metrics: %w", err)
	}
	a.Metrics = metrics

	var (
		locker    interfaces.PairLocker
		snapshots session.Snapshotter
	)
	if cfg.Redis.Enabled {
		redisService, err := cache.NewRedisService(ctx, cache.RedisConfig{
			URL:         cfg.Redis.URL,
			SnapshotTTL: cfg.Redis.SnapshotTTL,
		})
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, pair locks and negotiation snapshots disabled")
		} else {
			a.Redis = redisService
			locker = redisService
			snapshots = redisService
			a.Health.RegisterRedisCheck("redis", redisService.HealthCheck)
		}
	}

	weights := scoring.DefaultWeights()
	weights.PrioritizeBreed = cfg.Scoring.PrioritizeBreed
	weights.PrioritizeEnergy = cfg.Scoring.PrioritizeEnergy
	weights.PriorityMultiplier = cfg.Scoring.PriorityMultiplier
	a.Scorer = scoring.NewScorer(weights, cfg.Scoring.MatchThreshold)

	notifier := a.notifier(logger)

	var locations interfaces.LocationValidator
	if cfg.Maps.APIKey != "" {
		validator, err := geo.NewLocationValidator(cfg.Maps.APIKey)
		if err != nil {
			logger.WithError(err).Warn("Location validation disabled")
		} else {
			locations = validator
		}
	}

	a.MessageLimiter = middleware.NewKeyedRateLimiter(cfg.HTTP.MessageRateLimit, cfg.HTTP.MessageRateWindow)
	a.Sessions = session.NewManager(cfg.Redis.SnapshotTTL, snapshots)
	a.Lifecycle = services.NewMatchLifecycle(a.Store, cfg.Matching.Expiry, metrics)
	a.Swipes = services.NewSwipeService(a.Store, a.Store, a.Store, a.Lifecycle, a.Scorer, locker, notifier, metrics).
		WithLockTTL(cfg.Redis.PairLockTTL)
	a.Discovery = services.NewDiscoveryService(a.Store, a.Store, a.Scorer, metrics)
	a.Conversations = services.NewConversationService(a.Lifecycle, a.Store, a.Store, notifier, a.MessageLimiter, metrics)
	a.Playdates = services.NewPlaydateService(a.Lifecycle, a.Store, a.Sessions, locations,
		a.Store, a.Store, a.Store, notifier, metrics)

	logger.WithFields(map[string]interface{}{
		"store": cfg.Database.Store,
		"redis": a.Redis != nil,
		"maps":  locations != nil,
	}).Info("Services initialized")
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.Store == "memory" {
		a.Store = database.NewMemoryStore()
		return nil
	}

	db, err := database.NewConnection(ctx, database.Config{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	a.DB = db
	a.Store = database.NewStore(db)
	a.Health.RegisterDatabaseCheck("database", db.Health)
	return nil
}

// notifier fans out to every channel with credentials. It returns nil when none is configured.
func (a *App) notifier(logger *telemetry.ContextualLogger) interfaces.NotificationSink {
	var channels []notification.Channel

	if token := a.Config.Telegram.BotToken; token != "" {
		telegram, err := notification.NewTelegramNotifier(token, a.Store)
		if err != nil {
			logger.WithError(err).Warn("Telegram notifications disabled")
		} else {
			channels = append(channels, telegram)
		}
	}

	email := a.Config.Email
	if email.SendGridAPIKey != "" {
		sender, err := notification.NewEmailNotifier(email.SendGridAPIKey, email.FromAddress, email.FromName, a.Store)
		if err != nil {
			logger.WithError(err).Warn("Email notifications disabled")
		} else {
			channels = append(channels, sender)
		}
	}

	if len(channels) == 0 {
		logger.Warn("No notification channels configured")
		return nil
	}
	return notification.NewDispatcher(channels...)
}

// Close releases the database pool and the Redis client
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// StartBackground runs the session sweeper until ctx is done
func (a *App) StartBackground(ctx context.Context) {
	a.Sessions.StartCleanupRoutine(ctx, time.Minute)
}
