package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/pawmatch/pawmatch/internal/middleware"
)

// bindJSON decodes the body into dst, recording a validation error on failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(apperrors.NewValidationErrorWithCause("body", "request body is not valid JSON for this endpoint", err))
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		_ = c.Error(apperrors.NewValidationErrorWithCause(name, name+" must be an integer", err))
		return 0, false
	}
	return v, true
}

func queryTime(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	v, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		_ = c.Error(apperrors.NewValidationErrorWithCause(name, name+" must be an RFC 3339 timestamp", err))
		return time.Time{}, false
	}
	return v, true
}

func queryFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		_ = c.Error(apperrors.NewValidationErrorWithCause(name, name+" must be a number", err))
		return 0, false
	}
	return v, true
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func caller(c *gin.Context) string {
	return middleware.UserID(c)
}
