package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	maker := NewJWTMaker("secret")
	token, claims, err := maker.CreateToken(7, "trader", time.Hour)
	require.NoError(t, err)

	got, err := maker.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserId)
	assert.Equal(t, "trader", got.Subject)
	assert.Equal(t, claims.ID, got.ID)
}

func TestVerifyTokenRejects(t *testing.T) {
	maker := NewJWTMaker("secret")

	expired, _, err := maker.CreateToken(7, "trader", -time.Minute)
	require.NoError(t, err)
	_, err = maker.VerifyToken(expired)
	assert.Error(t, err)

	forged, _, err := NewJWTMaker("other").CreateToken(7, "trader", time.Hour)
	require.NoError(t, err)
	_, err = maker.VerifyToken(forged)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	maker := NewJWTMaker("secret")
	handler := AuthMiddleware(maker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, int64(3), claims.UserId)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := maker.CreateToken(3, "trader", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
