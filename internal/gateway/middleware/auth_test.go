package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstonehub/notify/internal/gateway/middleware"
	"github.com/capstonehub/notify/internal/modules/auth/infrastructure/jwt"
)

const testSecret = "test-secret"

func token(t *testing.T, role string) (uuid.UUID, string) {
	t.Helper()
	userID := uuid.New()
	tok, err := jwt.GenerateToken(testSecret, time.Hour, userID, role)
	require.NoError(t, err)
	return userID, tok
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	m := middleware.NewAuthMiddleware(testSecret)
	userID, tok := token(t, "student")

	var gotUser uuid.UUID
	var gotRole string
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Context().Value(middleware.ContextKeyUserId).(uuid.UUID)
		gotRole = r.Context().Value(middleware.ContextKeyRole).(string)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, "student", gotRole)
}

func TestRequireAuth_QueryParamFallback(t *testing.T) {
	m := middleware.NewAuthMiddleware(testSecret)
	userID, tok := token(t, "student")

	var gotUser uuid.UUID
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Context().Value(middleware.ContextKeyUserId).(uuid.UUID)
	}))

	req := httptest.NewRequest(http.MethodGet, "/hubs/notifications?token="+tok, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, gotUser)
}

func TestRequireAuth_Rejections(t *testing.T) {
	m := middleware.NewAuthMiddleware(testSecret)
	handler := m.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	// No credentials at all.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed header scheme.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token signed with a different secret.
	badTok, err := jwt.GenerateToken("other", time.Hour, uuid.New(), "student")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+badTok)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Expired token.
	expired, err := jwt.GenerateToken(testSecret, -time.Minute, uuid.New(), "student")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	m := middleware.NewAuthMiddleware(testSecret)
	called := false
	handler := m.RequireRole("moderator", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	// A student is rejected with 403, not 401.
	_, studentTok := token(t, "student")
	req := httptest.NewRequest(http.MethodPost, "/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+studentTok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	// A moderator passes.
	_, modTok := token(t, "moderator")
	req = httptest.NewRequest(http.MethodPost, "/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+modTok)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	// Missing token still fails authentication first.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
