package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidState ErrorType = "invalid_state"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeDependency   ErrorType = "dependency"
	ErrorTypeInternal     ErrorType = "internal"
)

// Error codes surfaced to callers.
const (
	CodeMatchNotFound           = "MATCH_NOT_FOUND"
	CodeProfileNotFound         = "PROFILE_NOT_FOUND"
	CodeConversationNotFound    = "CONVERSATION_NOT_FOUND"
	CodePlaydateRequestNotFound = "PLAYDATE_REQUEST_NOT_FOUND"
	CodeInvalidMatchStatus      = "INVALID_MATCH_STATUS"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeNegotiationNotOpen      = "NEGOTIATION_NOT_OPEN"
	CodeNegotiationIncomplete   = "NEGOTIATION_INCOMPLETE"
	CodeNotAParticipant         = "NOT_A_PARTICIPANT"
	CodeValidation              = "VALIDATION_ERROR"
	CodeSwipeRecordingFailed    = "SWIPE_RECORDING_FAILED"
	CodeDependencyFailure       = "DEPENDENCY_FAILURE"
	CodeRateLimitExceeded       = "RATE_LIMIT_EXCEEDED"
	CodeInternal                = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Type          ErrorType              `json:"type"`
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	Details       string                 `json:"details,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Cause         error                  `json:"-"`
	HTTPStatus    int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError by code so callers can use errors.Is with a sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ToJSON converts the error to JSON format
func (e *AppError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Timestamp:  time.Now().UTC(),
		HTTPStatus: getDefaultHTTPStatus(errorType),
	}
}

// NewAppErrorWithCause creates a new application error with an underlying cause
func NewAppErrorWithCause(errorType ErrorType, code, message string, cause error) *AppError {
	err := NewAppError(errorType, code, message)
	err.Cause = cause
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// WithCorrelationID adds a correlation ID to the error
func (e *AppError) WithCorrelationID(correlationID string) *AppError {
	e.CorrelationID = correlationID
	return e
}

// WithDetails adds additional details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func getDefaultHTTPStatus(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeInvalidState, ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Not found

// NewNotFoundError creates a not found error for the given resource and code
func NewNotFoundError(code, resource, id string) *AppError {
	return NewAppError(ErrorTypeNotFound, code, fmt.Sprintf("%s not found", resource)).
		WithMetadata("resource", resource).
		WithMetadata("id", id)
}

// NewMatchNotFound reports a missing match
func NewMatchNotFound(matchID string) *AppError {
	return NewNotFoundError(CodeMatchNotFound, "match", matchID)
}

// NewProfileNotFound reports a missing dog profile, naming the owner whose side is missing
func NewProfileNotFound(ownerID, dogID string) *AppError {
	return NewNotFoundError(CodeProfileNotFound, "profile", dogID).
		WithMetadata("owner_id", ownerID)
}

// NewConversationNotFound reports a missing conversation
func NewConversationNotFound(conversationID string) *AppError {
	return NewNotFoundError(CodeConversationNotFound, "conversation", conversationID)
}

// NewPlaydateRequestNotFound reports a missing playdate request
func NewPlaydateRequestNotFound(requestID string) *AppError {
	return NewNotFoundError(CodePlaydateRequestNotFound, "playdate request", requestID)
}

// Invalid state

// NewInvalidStateError creates an invalid state error
func NewInvalidStateError(code, message string) *AppError {
	return NewAppError(ErrorTypeInvalidState, code, message)
}

// NewInvalidMatchStatus reports a match that is not in the required status
func NewInvalidMatchStatus(matchID, actual, required string) *AppError {
	return NewInvalidStateError(CodeInvalidMatchStatus,
		fmt.Sprintf("match is %s, expected %s", actual, required)).
		WithMetadata("match_id", matchID).
		WithMetadata("status", actual)
}

// NewInvalidTransition reports a forbidden lifecycle transition
func NewInvalidTransition(from, to string) *AppError {
	return NewInvalidStateError(CodeInvalidTransition,
		fmt.Sprintf("cannot transition from %s to %s", from, to)).
		WithMetadata("from", from).
		WithMetadata("to", to)
}

// NewNegotiationNotOpen reports a negotiation operation without an open context
func NewNegotiationNotOpen(sessionID string) *AppError {
	return NewInvalidStateError(CodeNegotiationNotOpen, "no playdate negotiation in progress").
		WithMetadata("session_id", sessionID)
}

// NewNegotiationIncomplete reports a finalize attempt with a missing field
func NewNegotiationIncomplete(missing ...string) *AppError {
	return NewInvalidStateError(CodeNegotiationIncomplete, "playdate negotiation is incomplete").
		WithMetadata("missing", missing)
}

// NewNotAParticipant reports a caller acting on a match they do not belong to
func NewNotAParticipant(userID string) *AppError {
	return NewAppError(ErrorTypeForbidden, CodeNotAParticipant, "user is not a participant").
		WithMetadata("user_id", userID)
}

// Validation

// NewValidationError creates a validation error identifying the offending field
func NewValidationError(field, message string) *AppError {
	return NewAppError(ErrorTypeValidation, CodeValidation, message).
		WithMetadata("field", field)
}

// NewValidationErrorWithCause wraps a collaborator's rejection of a field
func NewValidationErrorWithCause(field, message string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorTypeValidation, CodeValidation, message, cause).
		WithMetadata("field", field)
}

// Dependencies

// NewSwipeRecordingError reports that the swipe itself could not be persisted
func NewSwipeRecordingError(cause error) *AppError {
	return NewAppErrorWithCause(ErrorTypeDependency, CodeSwipeRecordingFailed,
		"Swipe recording failed", cause)
}

// NewDependencyError reports a failed persistence or notification call
func NewDependencyError(operation string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorTypeDependency, CodeDependencyFailure,
		fmt.Sprintf("Dependency call failed: %s", operation), cause).
		WithMetadata("operation", operation)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit int, window string) *AppError {
	return NewAppError(ErrorTypeRateLimit, CodeRateLimitExceeded, "Rate limit exceeded").
		WithMetadata("limit", limit).
		WithMetadata("window", window)
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorTypeInternal, CodeInternal, message, cause)
}

// IsErrorType checks if an error (or anything it wraps) is an AppError of the given type
func IsErrorType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// HasCode checks if an error (or anything it wraps) is an AppError with the given code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// AsAppError extracts the AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
