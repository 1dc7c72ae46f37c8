package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func signToken(t *testing.T, secret []byte, issuer string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "nanobot",
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return raw
}

func do(m *Middleware, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	m.RequireBearer(okHandler).ServeHTTP(w, req)
	return w
}

func TestRequireBearerAcceptsValidToken(t *testing.T) {
	secret := []byte("shared-secret")
	m := New(secret, "nanobridge", zap.NewNop())

	w := do(m, signToken(t, secret, "nanobridge"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireBearerRejectsBadTokens(t *testing.T) {
	secret := []byte("shared-secret")
	m := New(secret, "nanobridge", zap.NewNop())

	assert.Equal(t, http.StatusUnauthorized, do(m, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(m, "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do(m, signToken(t, []byte("wrong"), "nanobridge")).Code)
	assert.Equal(t, http.StatusUnauthorized, do(m, signToken(t, secret, "someone-else")).Code)
}

func TestRequireBearerDisabledWithoutSecret(t *testing.T) {
	m := New(nil, "", zap.NewNop())
	assert.False(t, m.Enabled())

	w := do(m, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
