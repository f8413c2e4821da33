package licensing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/respond"

	"go.uber.org/zap"
)

type Store interface {
	ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error)
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	SetSubscription(ctx context.Context, userID, slug string) (*Subscription, error)
	ListLicensed(ctx context.Context, userID string) ([]LicensedLocation, error)
	License(ctx context.Context, userID, locationID string, maxLocations int) error
	Unlicense(ctx context.Context, userID, locationID string) (bool, error)
	Usage(ctx context.Context, userID string, periodStart time.Time) ([]LocationUsage, error)
}

type Handler struct {
	store     Store
	freeLimit int
	log       *zap.Logger
	now       func() time.Time
}

func NewHandler(store Store, freeExtractionLimit int, log *zap.Logger) *Handler {
	return &Handler{store: store, freeLimit: freeExtractionLimit, log: log, now: time.Now}
}

type SubscriptionResponse struct {
	Subscription  *Subscription `json:"subscription"`
	Limits        Limits        `json:"limits"`
	LicensedCount int           `json:"licensedCount"`
}

type LicensedResponse struct {
	Locations []LicensedLocation `json:"locations"`
	Limits    Limits             `json:"limits"`
	Used      int                `json:"used"`
	Remaining int                `json:"remaining"`
}

type UsageResponse struct {
	PeriodStart      string          `json:"periodStart"`
	Limits           Limits          `json:"limits"`
	Locations        []LocationUsage `json:"locations"`
	TotalExtractions int             `json:"totalExtractions"`
	TotalCost        float64         `json:"totalCost"`
}

// Plans handles GET /subscription-plans.
func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.store.ListPlans(r.Context())
	if err != nil {
		h.log.Error("list plans failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to list plans", "")
		return
	}
	respond.OK(w, plans)
}

// GetSubscription handles GET /subscription.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	sub, err := h.store.GetSubscription(r.Context(), userID)
	if err != nil {
		h.log.Error("get subscription failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to load subscription", "")
		return
	}
	licensed, err := h.store.ListLicensed(r.Context(), userID)
	if err != nil {
		h.log.Error("list licensed failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to load subscription", "")
		return
	}
	respond.OK(w, SubscriptionResponse{
		Subscription:  sub,
		Limits:        LimitsFor(sub, h.freeLimit),
		LicensedCount: activeCount(licensed),
	})
}

// SetSubscription handles PUT /subscription {"planSlug": "..."}.
func (h *Handler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	var req struct {
		PlanSlug string `json:"planSlug"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	slug := strings.TrimSpace(req.PlanSlug)
	if slug == "" {
		respond.Error(w, http.StatusBadRequest, "planSlug is required", "")
		return
	}

	sub, err := h.store.SetSubscription(r.Context(), userID, slug)
	switch {
	case errors.Is(err, ErrPlanNotFound):
		respond.Error(w, http.StatusNotFound, "Plan not found", "")
		return
	case errors.Is(err, ErrTooManyLocations):
		respond.Error(w, http.StatusConflict, "Too many licensed locations for this plan", err.Error())
		return
	case err != nil:
		h.log.Error("set subscription failed", zap.String("user_id", userID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to update subscription", "")
		return
	}
	h.log.Info("subscription changed", zap.String("user_id", userID), zap.String("plan", slug))
	respond.OK(w, SubscriptionResponse{Subscription: sub, Limits: LimitsFor(sub, h.freeLimit)})
}

// ListLicensed handles GET /manage-licensed-locations.
func (h *Handler) ListLicensed(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	limits, ok := h.limits(w, r, userID)
	if !ok {
		return
	}
	licensed, err := h.store.ListLicensed(r.Context(), userID)
	if err != nil {
		h.log.Error("list licensed failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to list licensed locations", "")
		return
	}
	used := activeCount(licensed)
	respond.OK(w, LicensedResponse{
		Locations: licensed,
		Limits:    limits,
		Used:      used,
		Remaining: max(limits.MaxLocations-used, 0),
	})
}

// License handles POST /manage-licensed-locations {"locationId": "..."}.
func (h *Handler) License(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	var req struct {
		LocationID string `json:"locationId"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if req.LocationID == "" {
		respond.Error(w, http.StatusBadRequest, "locationId is required", "")
		return
	}
	limits, ok := h.limits(w, r, userID)
	if !ok {
		return
	}

	err := h.store.License(r.Context(), userID, req.LocationID, limits.MaxLocations)
	switch {
	case errors.Is(err, ErrLocationNotFound):
		respond.Error(w, http.StatusNotFound, "Location not found", "")
		return
	case errors.Is(err, ErrLimitReached):
		respond.Error(w, http.StatusForbidden, "Licensed location limit reached", err.Error())
		return
	case errors.Is(err, ErrAlreadyLicensed):
		respond.Error(w, http.StatusConflict, "Location is already licensed", "")
		return
	case err != nil:
		h.log.Error("license location failed", zap.String("location_id", req.LocationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to license location", "")
		return
	}
	h.log.Info("location licensed", zap.String("user_id", userID), zap.String("location_id", req.LocationID))
	respond.JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "locationId": req.LocationID})
}

// Unlicense handles DELETE /manage-licensed-locations?locationId=...
func (h *Handler) Unlicense(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	locationID := r.URL.Query().Get("locationId")
	if locationID == "" {
		respond.Error(w, http.StatusBadRequest, "locationId is required", "")
		return
	}
	removed, err := h.store.Unlicense(r.Context(), userID, locationID)
	if err != nil {
		h.log.Error("unlicense location failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to remove license", "")
		return
	}
	if !removed {
		respond.Error(w, http.StatusNotFound, "Location is not licensed", "")
		return
	}
	respond.OK(w, map[string]bool{"success": true})
}

// Usage handles GET /usage?month=YYYY-MM.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	period, err := ParsePeriod(r.URL.Query().Get("month"), h.now())
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid month", err.Error())
		return
	}
	limits, ok := h.limits(w, r, userID)
	if !ok {
		return
	}
	rows, err := h.store.Usage(r.Context(), userID, period)
	if err != nil {
		h.log.Error("load usage failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to load usage", "")
		return
	}

	res := UsageResponse{PeriodStart: period.Format("2006-01-02"), Limits: limits, Locations: rows}
	for _, u := range rows {
		res.TotalExtractions += u.ExtractionsCount
		res.TotalCost += u.CostEstimate
	}
	respond.OK(w, res)
}

func (h *Handler) limits(w http.ResponseWriter, r *http.Request, userID string) (Limits, bool) {
	sub, err := h.store.GetSubscription(r.Context(), userID)
	if err != nil {
		h.log.Error("get subscription failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to load subscription", "")
		return Limits{}, false
	}
	return LimitsFor(sub, h.freeLimit), true
}

func activeCount(ls []LicensedLocation) int {
	n := 0
	for _, l := range ls {
		if l.IsActive {
			n++
		}
	}
	return n
}
