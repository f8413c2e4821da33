package ghl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// OAuthSettings configures the GHL marketplace app.
type OAuthSettings struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// NewOAuthConfig returns the oauth2 config for the GHL marketplace.
// GHL expects client credentials in the form body.
func NewOAuthConfig(s OAuthSettings) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		RedirectURL:  s.RedirectURI,
		Scopes:       s.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.AuthURL,
			TokenURL:  s.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Installation is the result of a successful code exchange.
type Installation struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
	LocationID   string
	CompanyID    string
	UserType     string
}

// Exchange trades an authorization code for a location token.
// httpClient may be nil; it is used for the token call.
func Exchange(ctx context.Context, cfg *oauth2.Config, httpClient *http.Client, code string) (*Installation, error) {
	if code == "" {
		return nil, errors.New("ghl: authorization code is required")
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	tok, err := cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("user_type", "Location"))
	if err != nil {
		return nil, fmt.Errorf("ghl: exchange code: %w", err)
	}

	inst := &Installation{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scope:        extraString(tok, "scope"),
		LocationID:   extraString(tok, "locationId"),
		CompanyID:    extraString(tok, "companyId"),
		UserType:     extraString(tok, "userType"),
	}
	if inst.LocationID == "" {
		return nil, errors.New("ghl: token response has no locationId; install the app on a sub-account")
	}
	return inst, nil
}

func extraString(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}
