package locations

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ghl-extractor-backend/internal/auth"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func TestRequireOwner(t *testing.T) {
	owns := func(ctx context.Context, userID, locationID string) (bool, error) {
		if locationID == "broken" {
			return false, errors.New("db down")
		}
		return userID == "user-1" && locationID == "loc-1", nil
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), req.Header.Get("X-User"))))
		})
	})
	r.Route("/locations/{locationId}", func(r chi.Router) {
		r.Use(RequireOwner(owns, zap.NewNop()))
		r.Get("/fields", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	})

	testCases := []struct {
		name   string
		user   string
		path   string
		status int
	}{
		{"owner", "user-1", "/locations/loc-1/fields", http.StatusOK},
		{"other user", "user-2", "/locations/loc-1/fields", http.StatusNotFound},
		{"unknown location", "user-1", "/locations/loc-9/fields", http.StatusNotFound},
		{"lookup error", "user-1", "/locations/broken/fields", http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.Header.Set("X-User", tc.user)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestDashboardTarget(t *testing.T) {
	got := dashboardTarget("https://app.example.com/settings?tab=ghl", map[string][]string{"ghl": {"connected"}})
	if got != "https://app.example.com/settings?ghl=connected&tab=ghl" {
		t.Errorf("dashboardTarget = %q", got)
	}
	if got := dashboardTarget("", map[string][]string{"ghl": {"error"}}); got != "/?ghl=error" {
		t.Errorf("empty base = %q", got)
	}
}
