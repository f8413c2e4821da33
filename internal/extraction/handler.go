package extraction

import (
	"context"
	"errors"
	"net/http"

	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/respond"

	"go.uber.org/zap"
)

// OwnershipFunc reports whether a dashboard user owns a location.
type OwnershipFunc func(ctx context.Context, userID, locationID string) (bool, error)

// Handler exposes the extraction endpoints to the dashboard.
type Handler struct {
	svc  *Service
	owns OwnershipFunc
	log  *zap.Logger
}

func NewHandler(svc *Service, owns OwnershipFunc, log *zap.Logger) *Handler {
	return &Handler{svc: svc, owns: owns, log: log}
}

// authorize writes the error response itself and returns false when the caller may not
// act on locationID.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, locationID string) (string, bool) {
	userID := auth.UserID(r.Context())
	if locationID == "" {
		respond.Error(w, http.StatusBadRequest, "locationId is required", "")
		return "", false
	}
	ok, err := h.owns(r.Context(), userID, locationID)
	if err != nil {
		h.log.Error("ownership check failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to verify location", "")
		return "", false
	}
	if !ok {
		respond.Error(w, http.StatusNotFound, "Location not found", "")
		return "", false
	}
	return userID, true
}

// BuildPayload handles POST /ai-extraction-payload.
func (h *Handler) BuildPayload(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if _, ok := h.authorize(w, r, req.LocationID); !ok {
		return
	}
	payload, err := h.svc.BuildPayload(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.OK(w, payload)
}

// GeneratePrompt handles POST /ai-prompt-generator.
func (h *Handler) GeneratePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LocationID string `json:"locationId"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if _, ok := h.authorize(w, r, req.LocationID); !ok {
		return
	}
	prompt, err := h.svc.GeneratePrompt(r.Context(), req.LocationID)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.OK(w, prompt)
}

// Extract handles POST /openai-extraction.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	userID, ok := h.authorize(w, r, req.LocationID)
	if !ok {
		return
	}
	req.UserID = userID
	res, err := h.svc.Extract(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.OK(w, res)
}

// TestExtraction handles POST /test-openai-extraction.
func (h *Handler) TestExtraction(w http.ResponseWriter, r *http.Request) {
	var req TestRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	userID, ok := h.authorize(w, r, req.LocationID)
	if !ok {
		return
	}
	req.UserID = userID
	res, err := h.svc.TestExtraction(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.OK(w, res)
}

// UpdateContact handles POST /update-ghl-contact.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if _, ok := h.authorize(w, r, req.LocationID); !ok {
		return
	}
	res, err := h.svc.UpdateContact(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.OK(w, res)
}

// GetContact handles GET /get-ghl-contact?locationId=&contactId=.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	locationID, contactID := q.Get("locationId"), q.Get("contactId")
	if _, ok := h.authorize(w, r, locationID); !ok {
		return
	}
	contact, err := h.svc.GetContact(r.Context(), locationID, contactID)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.OK(w, map[string]interface{}{"contact": contact})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("extraction request failed", zap.Error(err))
	}
	respond.Error(w, status, msg, err.Error())
}

// StatusFor maps pipeline errors to an HTTP status and a short message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, ErrNoFields):
		return http.StatusBadRequest, "No extraction fields configured"
	case errors.Is(err, ErrNoMessages):
		return http.StatusBadRequest, "Conversation has no messages"
	case errors.Is(err, ErrLocationNotFound):
		return http.StatusNotFound, "Location not found"
	case errors.Is(err, ghl.ErrNotFound):
		return http.StatusNotFound, "Contact not found"
	case errors.Is(err, ErrNotLicensed):
		return http.StatusForbidden, "Location is not licensed"
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests, "Monthly extraction limit reached"
	case errors.Is(err, ErrGHL):
		return http.StatusBadGateway, "GHL request failed"
	case errors.Is(err, ErrOpenAI):
		return http.StatusBadGateway, "OpenAI request failed"
	}
	return http.StatusInternalServerError, "Extraction failed"
}
