package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/Ramsey-B/clover/pkg/context"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context())
	return e
}

func TestContext(t *testing.T) {
	e := newEcho()
	var requestID, userID string
	e.GET("/ping", func(c echo.Context) error {
		requestID = appctx.GetRequestID(c.Request().Context())
		userID = appctx.GetUserID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	t.Run("propagates request id and user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(echo.HeaderXRequestID, "req-1")
		req.Header.Set(HeaderUserID, "reviewer@example.com")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "req-1", requestID)
		assert.Equal(t, "reviewer@example.com", userID)
		assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("generates a request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.NotEmpty(t, requestID)
		assert.Equal(t, requestID, rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestError(t *testing.T) {
	e := newEcho()
	e.GET("/conflict", func(c echo.Context) error {
		return httperror.NewHTTPError(http.StatusConflict, "registration is already linked")
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("boom")
	})

	t.Run("renders http errors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/conflict", nil)
		req.Header.Set(echo.HeaderXRequestID, "req-2")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "registration is already linked", body.Message)
		assert.Equal(t, "req-2", body.RequestID)
	})

	t.Run("hides unexpected errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Internal Server Error", body.Message)
	})
}

func TestAuthentication(t *testing.T) {
	verify := func(_ context.Context, raw string) (*UserClaims, error) {
		if raw != "good" {
			return nil, errors.New("bad signature")
		}
		return &UserClaims{Sub: "user-1", Email: "reviewer@example.com"}, nil
	}

	e := newEcho()
	var actor string
	e.GET("/secure", func(c echo.Context) error {
		actor = appctx.GetUserID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	}, Authentication(testLogger(), verify))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing bearer", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Equal(t, "reviewer@example.com", actor)
	assert.Equal(t, "user-1", UserClaims{Sub: "user-1"}.Actor())
}

func TestLogger(t *testing.T) {
	e := newEcho()
	e.Use(Logger(testLogger()))
	e.GET("/boom", func(c echo.Context) error {
		return httperror.NewHTTPError(http.StatusConflict, "already approved")
	})

	t.Run("handles the error once and swallows it", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusConflict, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "already approved", body.Message)
	})

	t.Run("quiet routes", func(t *testing.T) {
		assert.True(t, isQuietRoute("/api/v1/health/ready"))
		assert.False(t, isQuietRoute("/api/v1/matches"))
	})
}
