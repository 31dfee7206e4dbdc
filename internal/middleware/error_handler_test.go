package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(CorrelationID(), ErrorHandler())
	r.GET("/test", handler)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *apperrors.AppError {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error
}

func TestErrorHandler_MapsAppErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperrors.NewValidationError("direction", "direction is invalid"), http.StatusBadRequest, apperrors.CodeValidation},
		{"not found", apperrors.NewMatchNotFound("m1"), http.StatusNotFound, apperrors.CodeMatchNotFound},
		{"invalid state", apperrors.NewInvalidTransition("declined", "active"), http.StatusConflict, apperrors.CodeInvalidTransition},
		{"forbidden", apperrors.NewNotAParticipant("u1"), http.StatusForbidden, apperrors.CodeNotAParticipant},
		{"rate limit", apperrors.NewRateLimitError(30, "1m0s"), http.StatusTooManyRequests, apperrors.CodeRateLimitExceeded},
		{"dependency", apperrors.NewDependencyError("insert_match", stderrors.New("conn reset")), http.StatusBadGateway, apperrors.CodeDependencyFailure},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(func(c *gin.Context) { _ = c.Error(tt.err) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(CorrelationIDHeader, "corr-1")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			appErr := decodeError(t, w)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, "corr-1", appErr.CorrelationID)
		})
	}
}

func TestErrorHandler_HidesInternalDetails(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		_ = c.Error(apperrors.NewInternalError("db password rejected", stderrors.New("pq: auth failed")))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	appErr := decodeError(t, w)
	assert.Equal(t, "An unexpected error occurred", appErr.Message)
	assert.Empty(t, appErr.Details)
	assert.NotContains(t, w.Body.String(), "pq: auth failed")
}

func TestErrorHandler_RecoversPanics(t *testing.T) {
	r := newRouter(func(c *gin.Context) { panic("nil map") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.CodeInternal, decodeError(t, w).Code)
	assert.NotEmpty(t, w.Header().Get(CorrelationIDHeader))
}

func TestErrorHandler_LeavesWrittenResponses(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(stderrors.New("late"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestRequireUser(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), RequireUser())
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(UserIDHeader, "owner-a")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "owner-a", w.Body.String())
}
