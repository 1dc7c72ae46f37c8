// pkg/middleware/auth/middleware.go
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nanobridge/nanobridge/pkg/config"
)

// Middleware guards the registration surface with a shared-secret bearer
// token. With no secret configured the guard is disabled (local/dev), which
// is logged once at startup.
type Middleware struct {
	secret []byte
	issuer string
	leeway time.Duration
	log    *zap.Logger
}

func New(secret []byte, issuer string, log *zap.Logger) *Middleware {
	return &Middleware{
		secret: secret,
		issuer: issuer,
		leeway: 30 * time.Second,
		log:    log,
	}
}

// Enabled reports whether requests are actually verified.
func (m *Middleware) Enabled() bool { return len(m.secret) > 0 }

// RequireBearer rejects requests without a valid bearer token when a secret
// is configured.
func (m *Middleware) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		raw := bearerToken(r)
		if raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		sub, err := m.validateToken(raw)
		if err != nil {
			m.log.Warn("bearer token rejected",
				zap.String("remoteAddr", r.RemoteAddr),
				zap.Error(err),
			)
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		m.log.Debug("bearer token accepted", zap.String("subject", sub))
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) validateToken(raw string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.leeway),
	)

	var claims jwt.RegisteredClaims
	tok, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", errors.New("invalid token")
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return "", errors.New("bad issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// ProvideAuthMiddleware builds the guard from the instance config.
func ProvideAuthMiddleware(cfg config.Config, log *zap.Logger) *Middleware {
	m := New(cfg.AuthSecret(), cfg.AuthIssuer, log)
	if !m.Enabled() {
		log.Warn("register endpoint auth disabled; set auth_secret_env to enable")
	}
	return m
}
