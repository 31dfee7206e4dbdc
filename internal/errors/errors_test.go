package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppError(t *testing.T) {
	appErr := NewAppError(ErrorTypeValidation, "INVALID_INPUT", "Invalid input provided")

	assert.Equal(t, ErrorTypeValidation, appErr.Type)
	assert.Equal(t, "INVALID_INPUT", appErr.Code)
	assert.Equal(t, "Invalid input provided", appErr.Message)
	assert.WithinDuration(t, time.Now(), appErr.Timestamp, time.Second)
	assert.Nil(t, appErr.Cause)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestNewAppErrorWithCause(t *testing.T) {
	originalErr := errors.New("connection timeout")

	appErr := NewAppErrorWithCause(ErrorTypeDependency, CodeDependencyFailure, "insert failed", originalErr)

	assert.Equal(t, originalErr, appErr.Cause)
	assert.Equal(t, originalErr.Error(), appErr.Details)
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus)
}

func TestAppError_Error(t *testing.T) {
	appErr := &AppError{Code: CodeMatchNotFound, Message: "match not found"}
	assert.Equal(t, "MATCH_NOT_FOUND: match not found", appErr.Error())

	appErr.Details = "id=m-1"
	assert.Equal(t, "MATCH_NOT_FOUND: match not found - id=m-1", appErr.Error())
}

func TestDefaultHTTPStatus(t *testing.T) {
	tests := []struct {
		name         string
		errorType    ErrorType
		expectedCode int
	}{
		{"Validation error", ErrorTypeValidation, http.StatusBadRequest},
		{"Not found error", ErrorTypeNotFound, http.StatusNotFound},
		{"Invalid state error", ErrorTypeInvalidState, http.StatusConflict},
		{"Conflict error", ErrorTypeConflict, http.StatusConflict},
		{"Forbidden error", ErrorTypeForbidden, http.StatusForbidden},
		{"Rate limit error", ErrorTypeRateLimit, http.StatusTooManyRequests},
		{"Dependency error", ErrorTypeDependency, http.StatusBadGateway},
		{"Internal error", ErrorTypeInternal, http.StatusInternalServerError},
		{"Unknown error", ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedCode, getDefaultHTTPStatus(tt.errorType))
		})
	}
}

func TestNotFoundConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		resource string
	}{
		{"Match", NewMatchNotFound("m-1"), CodeMatchNotFound, "match"},
		{"Profile", NewProfileNotFound("owner-1", "dog-1"), CodeProfileNotFound, "profile"},
		{"Conversation", NewConversationNotFound("c-1"), CodeConversationNotFound, "conversation"},
		{"Playdate request", NewPlaydateRequestNotFound("p-1"), CodePlaydateRequestNotFound, "playdate request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ErrorTypeNotFound, tt.err.Type)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.resource, tt.err.Metadata["resource"])
			assert.Equal(t, http.StatusNotFound, tt.err.HTTPStatus)
		})
	}
}

func TestNewProfileNotFound_NamesOwner(t *testing.T) {
	err := NewProfileNotFound("owner-7", "dog-7")

	assert.Equal(t, "owner-7", err.Metadata["owner_id"])
	assert.Equal(t, "dog-7", err.Metadata["id"])
}

func TestInvalidStateConstructors(t *testing.T) {
	statusErr := NewInvalidMatchStatus("m-1", "pending", "active")
	assert.Equal(t, ErrorTypeInvalidState, statusErr.Type)
	assert.Equal(t, CodeInvalidMatchStatus, statusErr.Code)
	assert.Equal(t, "pending", statusErr.Metadata["status"])

	transition := NewInvalidTransition("declined", "active")
	assert.Equal(t, CodeInvalidTransition, transition.Code)
	assert.Equal(t, "declined", transition.Metadata["from"])

	notOpen := NewNegotiationNotOpen("sess-1")
	assert.Equal(t, CodeNegotiationNotOpen, notOpen.Code)
	assert.Equal(t, "sess-1", notOpen.Metadata["session_id"])

	incomplete := NewNegotiationIncomplete("location", "time")
	assert.Equal(t, CodeNegotiationIncomplete, incomplete.Code)
	assert.Equal(t, []string{"location", "time"}, incomplete.Metadata["missing"])
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("proposed_time", "proposed time is in the past")

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, "proposed_time", err.Metadata["field"])
}

func TestNewValidationErrorWithCause(t *testing.T) {
	cause := errors.New("address did not resolve")
	err := NewValidationErrorWithCause("location", "location failed validation", cause)

	assert.Equal(t, "location", err.Metadata["field"])
	assert.True(t, errors.Is(err, cause))
}

func TestNewSwipeRecordingError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewSwipeRecordingError(cause)

	assert.Equal(t, ErrorTypeDependency, err.Type)
	assert.Equal(t, CodeSwipeRecordingFailed, err.Code)
	assert.Equal(t, cause, err.Unwrap())
}

func TestNewRateLimitError(t *testing.T) {
	appErr := NewRateLimitError(30, "1m")

	assert.Equal(t, ErrorTypeRateLimit, appErr.Type)
	assert.Equal(t, CodeRateLimitExceeded, appErr.Code)
	assert.Equal(t, 30, appErr.Metadata["limit"])
	assert.Equal(t, "1m", appErr.Metadata["window"])
}

func TestHelpers_WrappedErrors(t *testing.T) {
	base := NewMatchNotFound("m-1")
	wrapped := fmt.Errorf("initiate conversation: %w", base)

	assert.True(t, IsErrorType(wrapped, ErrorTypeNotFound))
	assert.False(t, IsErrorType(wrapped, ErrorTypeValidation))
	assert.True(t, HasCode(wrapped, CodeMatchNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeMatchNotFound))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, base, appErr)

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
}

func TestAppError_IsByCode(t *testing.T) {
	sentinel := &AppError{Code: CodeNegotiationNotOpen}

	assert.True(t, errors.Is(NewNegotiationNotOpen("a"), sentinel))
	assert.False(t, errors.Is(NewMatchNotFound("a"), sentinel))
}

func TestAppError_WithMethods(t *testing.T) {
	appErr := NewDependencyError("append_message", errors.New("timeout")).
		WithCorrelationID("corr-1").
		WithDetails("extra")

	assert.Equal(t, "corr-1", appErr.CorrelationID)
	assert.Equal(t, "extra", appErr.Details)
	assert.Equal(t, "append_message", appErr.Metadata["operation"])

	data, err := appErr.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code":"DEPENDENCY_FAILURE"`)
	assert.NotContains(t, string(data), "timeout\"")
}
