package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	Latency     *int64       `json:"latency_ms,omitempty"`
	Critical    bool         `json:"critical"`
	LastChecked time.Time    `json:"last_checked"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Service    string                     `json:"service"`
	Version    string                     `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	System     SystemInfo                 `json:"system"`
}

// SystemInfo represents system-level information
type SystemInfo struct {
	Goroutines   int    `json:"goroutines"`
	AllocatedMem uint64 `json:"allocated_bytes"`
	GoVersion    string `json:"go_version"`
}

// CheckFunc pings one dependency
type CheckFunc func(ctx context.Context) error

type registeredCheck struct {
	fn            CheckFunc
	critical      bool
	degradedAfter time.Duration
}

// HealthChecker runs registered dependency checks and caches the results for checkInterval.
// A failing critical check makes the service unhealthy; a failing optional one only degrades it.
type HealthChecker struct {
	mu            sync.Mutex
	startTime     time.Time
	service       string
	version       string
	checks        map[string]registeredCheck
	components    map[string]ComponentHealth
	lastCheck     time.Time
	checkInterval time.Duration
	timeout       time.Duration
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		startTime:     time.Now(),
		service:       service,
		version:       version,
		checks:        make(map[string]registeredCheck),
		components:    make(map[string]ComponentHealth),
		checkInterval: 10 * time.Second,
		timeout:       5 * time.Second,
	}
}

// SetCheckInterval changes how long results are cached. Zero runs checks on every request.
func (hc *HealthChecker) SetCheckInterval(d time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = d
}

// RegisterDatabaseCheck registers the store ping. The service cannot work without it.
func (hc *HealthChecker) RegisterDatabaseCheck(name string, fn CheckFunc) {
	hc.register(name, registeredCheck{fn: fn, critical: true, degradedAfter: time.Second})
}

// RegisterRedisCheck registers the Redis ping. Pair locks and negotiation snapshots
// fall back without Redis, so a failure only degrades the service.
func (hc *HealthChecker) RegisterRedisCheck(name string, fn CheckFunc) {
	hc.register(name, registeredCheck{fn: fn, critical: false, degradedAfter: 500 * time.Millisecond})
}

func (hc *HealthChecker) register(name string, check registeredCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
	hc.lastCheck = time.Time{}
}

func (hc *HealthChecker) runChecks(ctx context.Context) {
	for name, check := range hc.checks {
		checkCtx, cancel := context.WithTimeout(ctx, hc.timeout)
		start := time.Now()
		err := check.fn(checkCtx)
		cancel()
		latency := time.Since(start).Milliseconds()

		component := ComponentHealth{
			Status:      HealthStatusHealthy,
			Latency:     &latency,
			Critical:    check.critical,
			LastChecked: time.Now(),
		}
		switch {
		case err != nil:
			component.Status = HealthStatusUnhealthy
			component.Message = err.Error()
		case time.Duration(latency)*time.Millisecond > check.degradedAfter:
			component.Status = HealthStatusDegraded
			component.Message = "slow response"
		}
		hc.components[name] = component
	}
	hc.lastCheck = time.Now()
}

// GetHealth returns the current health status, re-running checks when the cache is stale
func (hc *HealthChecker) GetHealth(ctx context.Context) HealthResponse {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if hc.lastCheck.IsZero() || time.Since(hc.lastCheck) >= hc.checkInterval {
		hc.runChecks(ctx)
	}

	overall := HealthStatusHealthy
	components := make(map[string]ComponentHealth, len(hc.components))
	for name, component := range hc.components {
		components[name] = component
		switch {
		case component.Status == HealthStatusUnhealthy && component.Critical:
			overall = HealthStatusUnhealthy
		case component.Status != HealthStatusHealthy && overall == HealthStatusHealthy:
			overall = HealthStatusDegraded
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return HealthResponse{
		Status:     overall,
		Service:    hc.service,
		Version:    hc.version,
		Timestamp:  time.Now(),
		Uptime:     time.Since(hc.startTime).Round(time.Second).String(),
		Components: components,
		System: SystemInfo{
			Goroutines:   runtime.NumGoroutine(),
			AllocatedMem: memStats.Alloc,
			GoVersion:    runtime.Version(),
		},
	}
}

// HealthHandler returns a Gin handler for health checks
func (hc *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.GetHealth(c.Request.Context())

		// Degraded still serves traffic
		statusCode := http.StatusOK
		if health.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, health)
	}
}

// LivenessHandler reports that the process is up without touching dependencies
func (hc *HealthChecker) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"uptime":    time.Since(hc.startTime).Round(time.Second).String(),
			"timestamp": time.Now(),
		})
	}
}
