package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"ghl-extractor-backend/internal/respond"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const UserContextKey contextKey = "userID"

// UserID returns the Supabase user id stored by AuthMiddleware, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserContextKey).(string)
	return id
}

// WithUserID returns ctx carrying userID, as AuthMiddleware does.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserContextKey, userID)
}

// AuthMiddleware verifies the Supabase Bearer token (HS256 with the project JWT secret)
// and stores the subject as the user id.
func AuthMiddleware(jwtSecret string, log *zap.Logger) (func(http.Handler) http.Handler, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwtSecret cannot be empty")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respond.Error(w, http.StatusUnauthorized, "Authorization header required", "")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				respond.Error(w, http.StatusUnauthorized, "Invalid token format", "")
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				log.Debug("token validation failed", zap.Error(err))
				respond.Error(w, http.StatusUnauthorized, "Invalid token", "")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "Invalid token claims", "")
				return
			}

			if aud, _ := claims.GetAudience(); slices.Contains(aud, stateAudience) {
				respond.Error(w, http.StatusUnauthorized, "Invalid token audience", "")
				return
			}

			userID, err := claims.GetSubject()
			if err != nil || userID == "" {
				respond.Error(w, http.StatusUnauthorized, "Invalid token subject", "")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}, nil
}

// WebhookSecret rejects requests that do not carry secret in X-Webhook-Secret
// or the ?secret= query parameter. An empty secret disables the check.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get("X-Webhook-Secret")
			if got == "" {
				got = r.URL.Query().Get("secret")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				respond.Error(w, http.StatusUnauthorized, "Invalid webhook secret", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
