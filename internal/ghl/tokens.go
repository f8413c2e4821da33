package ghl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// RefreshWindow is how close to expiry a token is refreshed.
const RefreshWindow = 5 * time.Minute

var ErrNoRefreshToken = errors.New("ghl: location has no refresh token; reinstall the app")

// TokenStore persists refreshed tokens for a location.
type TokenStore interface {
	SaveTokens(ctx context.Context, locationID, accessToken, refreshToken string, expiresAt time.Time) error
	// LoadTokens returns the stored pair; a zero StoredToken means nothing is stored.
	LoadTokens(ctx context.Context, locationID string) (StoredToken, error)
}

// StoredToken is what the caller knows about a location's token.
type StoredToken struct {
	LocationID   string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenManager hands out valid access tokens, refreshing once when close to expiry.
type TokenManager struct {
	oauth      *oauth2.Config
	store      TokenStore
	httpClient *http.Client
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTokenManager creates a TokenManager. httpClient may be nil.
func NewTokenManager(cfg *oauth2.Config, store TokenStore, httpClient *http.Client) *TokenManager {
	return &TokenManager{oauth: cfg, store: store, httpClient: httpClient, now: time.Now, locks: map[string]*sync.Mutex{}}
}

// NeedsRefresh reports whether expiresAt falls inside the refresh window.
func NeedsRefresh(expiresAt, now time.Time) bool {
	return !expiresAt.After(now.Add(RefreshWindow))
}

// AccessToken returns a usable access token for the location. When the stored token
// expires within RefreshWindow it calls /oauth/token once and persists the new pair.
func (m *TokenManager) AccessToken(ctx context.Context, t StoredToken) (string, error) {
	return m.RefreshAhead(ctx, t, RefreshWindow)
}

// RefreshAhead is AccessToken with a caller-chosen window. Refreshes of one location are
// serialized and the stored row is re-read under the lock, because GHL rotates refresh
// tokens and a second refresh with the old one fails with invalid_grant.
func (m *TokenManager) RefreshAhead(ctx context.Context, t StoredToken, window time.Duration) (string, error) {
	if m.fresh(t, window) {
		return t.AccessToken, nil
	}

	lock := m.lockFor(t.LocationID)
	lock.Lock()
	defer lock.Unlock()

	if cur, err := m.store.LoadTokens(ctx, t.LocationID); err == nil && cur.RefreshToken != "" {
		if m.fresh(cur, window) {
			return cur.AccessToken, nil
		}
		t = cur
	}
	if t.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	if m.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}
	// An already-expired token forces the refresh_token grant.
	src := m.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: t.RefreshToken,
		Expiry:       m.now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("ghl: refresh token: %w", err)
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = t.RefreshToken
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = m.now().Add(24 * time.Hour)
	}
	if err := m.store.SaveTokens(ctx, t.LocationID, tok.AccessToken, refresh, expiry); err != nil {
		return "", fmt.Errorf("ghl: persist refreshed token: %w", err)
	}
	return tok.AccessToken, nil
}

func (m *TokenManager) fresh(t StoredToken, window time.Duration) bool {
	return t.AccessToken != "" && t.ExpiresAt.After(m.now().Add(window))
}

func (m *TokenManager) lockFor(locationID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[locationID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[locationID] = l
	}
	return l
}
