package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Auth messages returned with 401 responses.
const (
	msgNotAuthenticated = "Not authenticated"
	msgInvalidToken     = "Invalid or expired token"
)

// staticTokenActor is the audit actor for requests using the shared token.
const staticTokenActor = "token"

const ctxKeyActor contextKey = "actor"

// ErrTokenSecret is returned by IssueToken without a usable secret.
var ErrTokenSecret = errors.New("api: jwt secret not configured")

// IssueToken mints an HS256 JWT for subject, valid for ttl.
//
// Parameters:
//   - secret: The shared signing secret (security.jwt.secret)
//   - subject: Recorded as the actor in audit entries
//   - ttl: Token lifetime
//
// Returns:
//   - string: The signed token
//   - error: ErrTokenSecret when secret is empty, or a signing failure
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrTokenSecret
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// parseToken validates an HS256 JWT and returns its subject.
func parseToken(secret, raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// bearerAuth guards a route group.
//
// A request passes when its bearer token equals staticToken (compared in
// constant time) or, when a JWT secret is configured, is a valid unexpired
// HS256 JWT. With neither configured every request is rejected.
func (s *Server) bearerAuth(staticToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				writeUnauthorized(w, msgNotAuthenticated)
				return
			}

			actor, ok := s.authenticate(staticToken, strings.TrimSpace(token))
			if !ok {
				writeUnauthorized(w, msgInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) authenticate(staticToken, token string) (actor string, ok bool) {
	if staticToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(staticToken)) == 1 {
		return staticTokenActor, true
	}
	if secret := s.secCfg.JWT.Secret; secret != "" {
		subject, err := parseToken(secret, token)
		if err == nil {
			return subject, true
		}
		s.logger.Debug("jwt rejected", "error", err)
	}
	return "", false
}

// actorFrom returns the authenticated actor stored by bearerAuth.
func actorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(ctxKeyActor).(string)
	return actor
}
