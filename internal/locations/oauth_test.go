package locations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/ghl"

	"go.uber.org/zap"
)

const stateSecret = "state-secret"

type fakeInstaller struct {
	userID string
	inst   *ghl.Installation
	name   string
	err    error
}

func (f *fakeInstaller) SaveInstallation(ctx context.Context, userID string, inst *ghl.Installation, name string) error {
	f.userID, f.inst, f.name = userID, inst, name
	return f.err
}

type fakeFetcher struct{}

func (fakeFetcher) GetLocation(ctx context.Context, token, locationID string) (*ghl.Location, error) {
	return &ghl.Location{ID: locationID, Name: "Sunny Roofing"}, nil
}

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.Form.Get("user_type") != "Location" || r.Form.Get("code") != "the-code" {
			t.Errorf("form = %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "at",
			"refresh_token": "rt",
			"token_type":    "Bearer",
			"expires_in":    86399,
			"scope":         "contacts.readonly",
			"locationId":    "loc-1",
			"companyId":     "co-1",
			"userType":      "Location",
		})
	}))
}

func newOAuthHandler(serverURL string, installer Installer) *OAuthHandler {
	cfg := ghl.NewOAuthConfig(ghl.OAuthSettings{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "https://api.example.com/oauth/ghl/callback",
		AuthURL:      "https://marketplace.example.com/oauth/chooselocation",
		TokenURL:     serverURL + "/oauth/token",
		Scopes:       []string{"contacts.readonly", "contacts.write"},
	})
	return NewOAuthHandler(cfg, installer, fakeFetcher{}, nil, stateSecret, "https://app.example.com/settings?tab=ghl", zap.NewNop())
}

func TestAuthorize(t *testing.T) {
	h := newOAuthHandler("http://unused", &fakeInstaller{})

	req := httptest.NewRequest(http.MethodGet, "/oauth/ghl/authorize", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	h.Authorize(rec, req)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	u, err := url.Parse(body["url"])
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Query().Get("client_id") != "client-1" {
		t.Errorf("client_id = %q", u.Query().Get("client_id"))
	}
	userID, err := auth.ParseState(stateSecret, u.Query().Get("state"))
	if err != nil || userID != "user-1" {
		t.Errorf("state user = %q, err = %v", userID, err)
	}
}

func TestAuthorize_Redirect(t *testing.T) {
	h := newOAuthHandler("http://unused", &fakeInstaller{})

	req := httptest.NewRequest(http.MethodGet, "/oauth/ghl/authorize?redirect=true", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	h.Authorize(rec, req)

	if rec.Code != http.StatusFound || !strings.HasPrefix(rec.Header().Get("Location"), "https://marketplace.example.com/") {
		t.Errorf("status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func callback(t *testing.T, h *OAuthHandler, query string) url.Values {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/oauth/ghl/callback?"+query, nil)
	rec := httptest.NewRecorder()
	h.Callback(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if u.Host != "app.example.com" || u.Query().Get("tab") != "ghl" {
		t.Errorf("redirect = %s", u)
	}
	return u.Query()
}

func TestCallback(t *testing.T) {
	server := tokenServer(t)
	defer server.Close()
	installer := &fakeInstaller{}
	h := newOAuthHandler(server.URL, installer)

	state, err := auth.SignState(stateSecret, "user-1", time.Now())
	if err != nil {
		t.Fatalf("SignState: %v", err)
	}
	q := callback(t, h, "code=the-code&state="+url.QueryEscape(state))

	if q.Get("ghl") != "connected" || q.Get("locationId") != "loc-1" {
		t.Errorf("redirect query = %v", q)
	}
	if installer.userID != "user-1" || installer.name != "Sunny Roofing" {
		t.Errorf("installer got user %q, name %q", installer.userID, installer.name)
	}
	if installer.inst == nil || installer.inst.RefreshToken != "rt" || installer.inst.CompanyID != "co-1" {
		t.Errorf("installation = %+v", installer.inst)
	}
}

func TestCallback_Failures(t *testing.T) {
	server := tokenServer(t)
	defer server.Close()

	valid, _ := auth.SignState(stateSecret, "user-1", time.Now())
	expired, _ := auth.SignState(stateSecret, "user-1", time.Now().Add(-time.Hour))

	testCases := []struct {
		name      string
		query     string
		installer *fakeInstaller
		reason    string
	}{
		{"denied", "error=access_denied", &fakeInstaller{}, "access_denied"},
		{"bad state", "code=the-code&state=garbage", &fakeInstaller{}, "invalid_state"},
		{"expired state", "code=the-code&state=" + url.QueryEscape(expired), &fakeInstaller{}, "invalid_state"},
		{"other owner", "code=the-code&state=" + url.QueryEscape(valid), &fakeInstaller{err: ErrOwnedByOther}, "location_owned_by_other_account"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newOAuthHandler(server.URL, tc.installer)
			q := callback(t, h, tc.query)
			if q.Get("ghl") != "error" || q.Get("reason") != tc.reason {
				t.Errorf("redirect query = %v, want reason %q", q, tc.reason)
			}
		})
	}
}
