package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smartdevs17/activity-feed/pkg/utils"
)

// headerKeyUserID carries the caller identity when tokens are not in use
const headerKeyUserID = "X-User-ID"

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	requestIDKey contextKey = "request_id"
)

// Claims are the JWT claims the feed reads the caller identity from
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
}

// Identity returns the user id claim, falling back to sub
func (c *Claims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// GenerateToken signs an HS256 token for userID. Tokens are normally issued
// by the gateway; this is used by tests and the CLI.
func GenerateToken(secret, issuer, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// identify resolves the caller from a bearer token when a secret is
// configured and from the trusted X-User-ID header otherwise.
func (s *HTTPServer) identify(r *http.Request) (string, error) {
	if s.config.JWTSecret == "" {
		userID := strings.TrimSpace(r.Header.Get(headerKeyUserID))
		if userID == "" {
			return "", utils.NewAppError(utils.ErrCodeUnauthorized, "X-User-ID header is required")
		}
		return userID, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", utils.NewAppError(utils.ErrCodeUnauthorized, "Authorization header is required")
	}
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return "", utils.NewAppError(utils.ErrCodeUnauthorized, "Bearer token is malformed")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.JWTIssuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		if err == nil {
			err = errors.New("token is not valid")
		}
		return "", utils.WrapAppError(utils.ErrCodeUnauthorized, "Token is invalid", err)
	}

	userID := claims.Identity()
	if userID == "" {
		return "", utils.NewAppError(utils.ErrCodeUnauthorized, "Token carries no user")
	}
	return userID, nil
}

// authMiddleware rejects requests without a caller identity
func (s *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.identify(r)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userIDFrom returns the caller set by authMiddleware
func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
