package locations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/respond"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrOwnedByOther is returned when a location is already installed by another account.
var ErrOwnedByOther = errors.New("location is connected to another account")

// Installer persists a completed install.
type Installer interface {
	SaveInstallation(ctx context.Context, userID string, inst *ghl.Installation, businessName string) error
}

// LocationFetcher reads the installed sub-account.
type LocationFetcher interface {
	GetLocation(ctx context.Context, token, locationID string) (*ghl.Location, error)
}

// OAuthHandler runs the GHL marketplace install flow.
type OAuthHandler struct {
	oauth        *oauth2.Config
	installer    Installer
	locations    LocationFetcher
	httpClient   *http.Client
	stateSecret  string
	dashboardURL string
	log          *zap.Logger
	now          func() time.Time
}

func NewOAuthHandler(cfg *oauth2.Config, installer Installer, locations LocationFetcher, httpClient *http.Client,
	stateSecret, dashboardURL string, log *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauth:        cfg,
		installer:    installer,
		locations:    locations,
		httpClient:   httpClient,
		stateSecret:  stateSecret,
		dashboardURL: dashboardURL,
		log:          log,
		now:          time.Now,
	}
}

// Authorize handles GET /oauth/ghl/authorize. It answers {"url": ...}, or redirects
// when called with ?redirect=true.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	state, err := auth.SignState(h.stateSecret, userID, h.now())
	if err != nil {
		h.log.Error("sign oauth state failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to start install", "")
		return
	}
	target := h.oauth.AuthCodeURL(state)
	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	respond.OK(w, map[string]string{"url": target})
}

// Callback handles GET /oauth/ghl/callback. The browser always ends up on the dashboard
// with ghl=connected or ghl=error in the query string.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.finish(w, r, "", e)
		return
	}

	userID, err := auth.ParseState(h.stateSecret, q.Get("state"))
	if err != nil {
		h.log.Warn("oauth callback with bad state", zap.Error(err))
		h.finish(w, r, "", "invalid_state")
		return
	}

	inst, err := ghl.Exchange(r.Context(), h.oauth, h.httpClient, q.Get("code"))
	if err != nil {
		h.log.Warn("oauth code exchange failed", zap.String("user_id", userID), zap.Error(err))
		h.finish(w, r, "", "exchange_failed")
		return
	}

	name := ""
	if h.locations != nil {
		loc, err := h.locations.GetLocation(r.Context(), inst.AccessToken, inst.LocationID)
		if err != nil {
			h.log.Warn("fetch installed location failed", zap.String("location_id", inst.LocationID), zap.Error(err))
		} else {
			name = loc.Name
		}
	}

	if err := h.installer.SaveInstallation(r.Context(), userID, inst, name); err != nil {
		if errors.Is(err, ErrOwnedByOther) {
			h.finish(w, r, inst.LocationID, "location_owned_by_other_account")
			return
		}
		h.log.Error("save installation failed", zap.String("location_id", inst.LocationID), zap.Error(err))
		h.finish(w, r, inst.LocationID, "save_failed")
		return
	}

	h.log.Info("location installed",
		zap.String("location_id", inst.LocationID),
		zap.String("user_id", userID),
		zap.String("user_type", inst.UserType))
	h.finish(w, r, inst.LocationID, "")
}

func (h *OAuthHandler) finish(w http.ResponseWriter, r *http.Request, locationID, failure string) {
	v := url.Values{}
	if failure != "" {
		v.Set("ghl", "error")
		v.Set("reason", failure)
	} else {
		v.Set("ghl", "connected")
	}
	if locationID != "" {
		v.Set("locationId", locationID)
	}
	http.Redirect(w, r, dashboardTarget(h.dashboardURL, v), http.StatusFound)
}

func dashboardTarget(base string, v url.Values) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "/?" + v.Encode()
	}
	q := u.Query()
	for k, vals := range v {
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// InstallStore is the Postgres Installer.
type InstallStore struct {
	db *pgxpool.Pool
}

func NewInstallStore(db *pgxpool.Pool) *InstallStore {
	return &InstallStore{db: db}
}

// SaveInstallation upserts ghl_configurations. Reinstalling refreshes the tokens and keeps
// the business profile; a location owned by another user is left untouched.
func (s *InstallStore) SaveInstallation(ctx context.Context, userID string, inst *ghl.Installation, businessName string) error {
	expiresAt := inst.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(24 * time.Hour)
	}
	query := `INSERT INTO public.ghl_configurations (
			user_id, location_id, company_id, access_token, refresh_token, token_expires_at, scopes, business_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (location_id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			scopes = EXCLUDED.scopes,
			business_name = COALESCE(ghl_configurations.business_name, EXCLUDED.business_name),
			is_active = true,
			updated_at = now()
		WHERE ghl_configurations.user_id = EXCLUDED.user_id
		RETURNING id`
	var id string
	err := s.db.QueryRow(ctx, query,
		userID, inst.LocationID, models.NullIfEmpty(inst.CompanyID), inst.AccessToken, inst.RefreshToken,
		expiresAt, models.NullIfEmpty(inst.Scope), models.NullIfEmpty(businessName),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOwnedByOther
	}
	if err != nil {
		return fmt.Errorf("upsert configuration: %w", err)
	}
	return nil
}
