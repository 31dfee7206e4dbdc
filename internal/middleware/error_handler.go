package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error *apperrors.AppError `json:"error"`
}

// ErrorHandler recovers panics and renders the last error a handler attached with c.Error
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				telemetry.GetContextualLogger(c.Request.Context()).WithFields(map[string]interface{}{
					"operation":   "error_handler_panic",
					"panic_value": fmt.Sprintf("%v", r),
					"stack_trace": string(debug.Stack()),
				}).Error("Panic recovered in HTTP handler")

				writeError(c, apperrors.NewInternalError(fmt.Sprintf("panic in handler: %v", r), nil))
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, c.Errors.Last().Err)
	}
}

func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.NewInternalError("An unexpected error occurred", err)
	}
	if appErr.CorrelationID == "" {
		appErr = appErr.WithCorrelationID(telemetry.GetCorrelationID(ctx))
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":  "error_handler",
		"error_type": string(appErr.Type),
		"error_code": appErr.Code,
		"status":     status,
	})
	switch appErr.Type {
	case apperrors.ErrorTypeInternal, apperrors.ErrorTypeDependency:
		logger.WithError(err).Error("Request failed")
	default:
		logger.Debug(appErr.Message)
	}

	body := *appErr
	if appErr.Type == apperrors.ErrorTypeInternal {
		// Internal details stay in the logs.
		body.Message = "An unexpected error occurred"
		body.Details = ""
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: &body})
}
