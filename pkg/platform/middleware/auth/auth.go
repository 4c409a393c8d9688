// Package auth authenticates registrars on the HTTP surface. Credentials
// arrive as bearer JWTs carrying the registrar ID and an optional superuser
// capability; verified claims land in the request context where the
// services read them.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/unstoppabledomains/nomulus/pkg/requestcontext"
)

// RegistrarClaims are the JWT claims the registry issues and accepts.
type RegistrarClaims struct {
	jwt.RegisteredClaims
	RegistrarID string `json:"registrar_id"`
	Superuser   bool   `json:"superuser,omitempty"`
}

// Validator verifies bearer tokens with a shared HMAC key.
type Validator struct {
	key []byte
}

// NewValidator builds a validator over the signing key.
func NewValidator(signingKey string) *Validator {
	return &Validator{key: []byte(signingKey)}
}

// ValidateToken parses and verifies a token string.
func (v *Validator) ValidateToken(tokenString string) (*RegistrarClaims, error) {
	claims := &RegistrarClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.RegistrarID == "" {
		return nil, fmt.Errorf("token carries no registrar")
	}
	return claims, nil
}

// IssueToken mints a signed token for a registrar. Used by the dev seed and
// tests; production deployments provision tokens out of band.
func (v *Validator) IssueToken(registrarID string, superuser bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := RegistrarClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		RegistrarID: registrarID,
		Superuser:   superuser,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// RequireRegistrar rejects requests without a valid bearer token and stores
// the registrar identity in the context.
func RequireRegistrar(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "request without bearer token",
					slog.String("path", r.URL.Path))
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "rejected bearer token",
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
				unauthorized(w, "Invalid or expired token")
				return
			}
			ctx = requestcontext.WithRegistrarID(ctx, claims.RegistrarID)
			ctx = requestcontext.WithSuperuser(ctx, claims.Superuser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
