// Package locations serves the installed GHL locations of a dashboard user.
package locations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/extraction"
	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/respond"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CustomFieldLister reads custom field definitions from GHL.
type CustomFieldLister interface {
	ListCustomFields(ctx context.Context, token, locationID string) ([]ghl.CustomField, error)
}

type Handler struct {
	db     *pgxpool.Pool
	crm    CustomFieldLister
	tokens extraction.Tokens
	log    *zap.Logger
}

func NewHandler(db *pgxpool.Pool, crm CustomFieldLister, tokens extraction.Tokens, log *zap.Logger) *Handler {
	return &Handler{db: db, crm: crm, tokens: tokens, log: log}
}

// UpdateLocationRequest is the PATCH body; nil members are left untouched.
type UpdateLocationRequest struct {
	BusinessName        *string `json:"businessName"`
	BusinessDescription *string `json:"businessDescription"`
	BusinessContext     *string `json:"businessContext"`
	TargetAudience      *string `json:"targetAudience"`
	ServicesOffered     *string `json:"servicesOffered"`
	AutoExtract         *bool   `json:"autoExtract"`
	IsActive            *bool   `json:"isActive"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	query := `SELECT ` + extraction.ConfigurationColumns() + ` FROM public.ghl_configurations
		WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := h.db.Query(r.Context(), query, userID)
	if err != nil {
		h.log.Error("list locations failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to list locations", "")
		return
	}
	defer rows.Close()

	locations := []*models.Configuration{}
	for rows.Next() {
		c, err := extraction.ScanConfiguration(rows)
		if err != nil {
			h.log.Error("scan location failed", zap.Error(err))
			continue
		}
		locations = append(locations, c)
	}
	respond.OK(w, locations)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	respond.OK(w, c)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	locationID := chi.URLParam(r, "locationId")

	var req UpdateLocationRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}

	setParts := []string{}
	args := []interface{}{}
	add := func(column string, v interface{}) {
		args = append(args, v)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if req.BusinessName != nil {
		add("business_name", models.NullIfEmpty(strings.TrimSpace(*req.BusinessName)))
	}
	if req.BusinessDescription != nil {
		add("business_description", models.NullIfEmpty(strings.TrimSpace(*req.BusinessDescription)))
	}
	if req.BusinessContext != nil {
		add("business_context", models.NullIfEmpty(strings.TrimSpace(*req.BusinessContext)))
	}
	if req.TargetAudience != nil {
		add("target_audience", models.NullIfEmpty(strings.TrimSpace(*req.TargetAudience)))
	}
	if req.ServicesOffered != nil {
		add("services_offered", models.NullIfEmpty(strings.TrimSpace(*req.ServicesOffered)))
	}
	if req.AutoExtract != nil {
		add("auto_extract", *req.AutoExtract)
	}
	if req.IsActive != nil {
		add("is_active", *req.IsActive)
	}
	if len(setParts) == 0 {
		respond.Error(w, http.StatusBadRequest, "No fields to update", "")
		return
	}

	args = append(args, userID, locationID)
	query := fmt.Sprintf(
		"UPDATE public.ghl_configurations SET %s, updated_at = now() WHERE user_id = $%d AND location_id = $%d RETURNING %s",
		strings.Join(setParts, ", "), len(args)-1, len(args), extraction.ConfigurationColumns(),
	)
	c, err := extraction.ScanConfiguration(h.db.QueryRow(r.Context(), query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		respond.Error(w, http.StatusNotFound, "Location not found", "")
		return
	}
	if err != nil {
		h.log.Error("update location failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to update location", "")
		return
	}
	respond.OK(w, c)
}

// Delete disconnects a location. Fields, rules and stop triggers cascade.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	locationID := chi.URLParam(r, "locationId")

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM public.ghl_configurations WHERE user_id = $1 AND location_id = $2`, userID, locationID)
	if err != nil {
		h.log.Error("delete location failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to delete location", "")
		return
	}
	if tag.RowsAffected() == 0 {
		respond.Error(w, http.StatusNotFound, "Location not found", "")
		return
	}
	h.log.Info("location disconnected", zap.String("location_id", locationID), zap.String("user_id", userID))
	respond.OK(w, map[string]bool{"success": true})
}

// CustomFields lists the location's GHL contact custom fields, for mapping extraction fields.
func (h *Handler) CustomFields(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	token, err := h.tokens.AccessToken(r.Context(), ghl.StoredToken{
		LocationID:   c.LocationID,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.TokenExpiresAt,
	})
	if err != nil {
		respond.Error(w, http.StatusBadGateway, "GHL request failed", err.Error())
		return
	}
	fields, err := h.crm.ListCustomFields(r.Context(), token, c.LocationID)
	if err != nil {
		h.log.Warn("list custom fields failed", zap.String("location_id", c.LocationID), zap.Error(err))
		respond.Error(w, http.StatusBadGateway, "GHL request failed", err.Error())
		return
	}
	respond.OK(w, map[string]interface{}{
		"customFields":   fields,
		"standardFields": standardFieldKeys(),
	})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Configuration, bool) {
	userID := auth.UserID(r.Context())
	locationID := chi.URLParam(r, "locationId")

	query := `SELECT ` + extraction.ConfigurationColumns() + ` FROM public.ghl_configurations
		WHERE user_id = $1 AND location_id = $2`
	c, err := extraction.ScanConfiguration(h.db.QueryRow(r.Context(), query, userID, locationID))
	if errors.Is(err, pgx.ErrNoRows) {
		respond.Error(w, http.StatusNotFound, "Location not found", "")
		return nil, false
	}
	if err != nil {
		h.log.Error("get location failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to get location", "")
		return nil, false
	}
	return c, true
}

func standardFieldKeys() []string {
	keys := make([]string, 0, len(ghl.StandardFields))
	for k := range ghl.StandardFields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
