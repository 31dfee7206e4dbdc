package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pawmatch/pawmatch/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const CorrelationIDHeader = "X-Correlation-ID"

// LoggingConfig holds the configuration for logging middleware
type LoggingConfig struct {
	SkipPaths     []string      `json:"skip_paths"`
	LogHeaders    bool          `json:"log_headers"`
	SlowThreshold time.Duration `json:"slow_threshold"`
}

// DefaultLoggingConfig returns the default logging middleware configuration
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SkipPaths:     []string{"/health"},
		LogHeaders:    false,
		SlowThreshold: 2 * time.Second,
	}
}

// CorrelationID propagates X-Correlation-ID into the request context, generating one when absent
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = telemetry.NewCorrelationID()
		}
		c.Header(CorrelationIDHeader, correlationID)
		c.Request = c.Request.WithContext(telemetry.WithCorrelationID(c.Request.Context(), correlationID))
		c.Next()
	}
}

// RequestLogger logs one line per completed request, at a level derived from the status
func RequestLogger(config *LoggingConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultLoggingConfig()
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		fields := logrus.Fields{
			"operation":   "http_request",
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(duration.Nanoseconds()) / 1e6,
			"size":        c.Writer.Size(),
			"remote_ip":   c.ClientIP(),
		}
		if userID := c.GetHeader(UserIDHeader); userID != "" {
			fields["user_id"] = userID
		}
		if config.LogHeaders {
			headers := make(map[string]string)
			for name, values := range c.Request.Header {
				if name == "Authorization" || name == "Cookie" || name == "X-Api-Key" {
					headers[name] = "[REDACTED]"
				} else if len(values) > 0 {
					headers[name] = values[0]
				}
			}
			fields["headers"] = headers
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.Errors()
		}

		logger := telemetry.GetContextualLogger(c.Request.Context()).WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("HTTP request completed with server error")
		case status >= 400:
			logger.Warn("HTTP request completed with client error")
		case duration > config.SlowThreshold:
			logger.Warn("HTTP request completed (slow)")
		default:
			logger.Info("HTTP request completed")
		}
	}
}
