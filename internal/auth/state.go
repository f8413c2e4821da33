package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateAudience = "ghl-oauth-state"

// StateTTL bounds how long an install link stays valid.
const StateTTL = 10 * time.Minute

// SignState issues the OAuth state parameter: a short-lived HS256 token whose subject is
// the dashboard user starting the GHL install.
func SignState(secret, userID string, now time.Time) (string, error) {
	if secret == "" || userID == "" {
		return "", errors.New("secret and userID are required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseState validates a state token and returns the user id it was issued for.
func ParseState(secret, state string) (string, error) {
	token, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithAudience(stateAudience))
	if err != nil {
		return "", fmt.Errorf("invalid state: %w", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("invalid state: missing subject")
	}
	return claims.Subject, nil
}
