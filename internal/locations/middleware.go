package locations

import (
	"net/http"

	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/extraction"
	"ghl-extractor-backend/internal/respond"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RequireOwner guards /locations/{locationId}/... routes: the caller must have installed
// the location, otherwise the request ends with 404.
func RequireOwner(owns extraction.OwnershipFunc, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locationID := chi.URLParam(r, "locationId")
			ok, err := owns(r.Context(), auth.UserID(r.Context()), locationID)
			if err != nil {
				log.Error("ownership check failed", zap.String("location_id", locationID), zap.Error(err))
				respond.Error(w, http.StatusInternalServerError, "Failed to verify location", "")
				return
			}
			if !ok {
				respond.Error(w, http.StatusNotFound, "Location not found", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
