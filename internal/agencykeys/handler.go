// Package agencykeys lets an agency bring its own OpenAI key. Keys are sealed before
// they are stored and never returned.
package agencykeys

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/openai"
	"ghl-extractor-backend/internal/respond"
	"ghl-extractor-backend/internal/vault"

	"go.uber.org/zap"
)

type Store interface {
	GetKey(ctx context.Context, userID string) (*KeyInfo, error)
	SaveKey(ctx context.Context, userID, sealed, hint string) error
	DeleteKey(ctx context.Context, userID string) (bool, error)
}

type Sealer interface {
	Seal(plain string) (string, error)
}

type Verifier interface {
	VerifyKey(ctx context.Context, key string) error
}

type SaveKeyRequest struct {
	APIKey string `json:"apiKey"`
}

type Handler struct {
	store    Store
	sealer   Sealer
	verifier Verifier
	log      *zap.Logger
}

// NewHandler creates the handler. A nil sealer disables saving keys; a nil verifier
// skips the OpenAI check.
func NewHandler(store Store, sealer Sealer, verifier Verifier, log *zap.Logger) *Handler {
	return &Handler{store: store, sealer: sealer, verifier: verifier, log: log}
}

// Get handles GET /manage-agency-keys.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.store.GetKey(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.log.Error("get agency key failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to load key", "")
		return
	}
	respond.OK(w, info)
}

// Save handles POST /manage-agency-keys.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if h.sealer == nil {
		respond.Error(w, http.StatusServiceUnavailable, "Agency keys are disabled", "ENCRYPTION_KEY is not configured")
		return
	}

	var req SaveKeyRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if !strings.HasPrefix(key, "sk-") || len(key) < 20 {
		respond.Error(w, http.StatusBadRequest, "Invalid API key", "OpenAI keys start with sk-")
		return
	}

	if h.verifier != nil {
		if err := h.verifier.VerifyKey(r.Context(), key); err != nil {
			if errors.Is(err, openai.ErrInvalidKey) {
				respond.Error(w, http.StatusBadRequest, "Invalid API key", "OpenAI rejected the key")
				return
			}
			h.log.Warn("verify agency key failed", zap.String("user_id", userID), zap.Error(err))
			respond.Error(w, http.StatusBadGateway, "OpenAI request failed", err.Error())
			return
		}
	}

	sealed, err := h.sealer.Seal(key)
	if err != nil {
		h.log.Error("seal agency key failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to save key", "")
		return
	}
	hint := vault.Hint(key)
	if err := h.store.SaveKey(r.Context(), userID, sealed, hint); err != nil {
		h.log.Error("save agency key failed", zap.String("user_id", userID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to save key", "")
		return
	}

	h.log.Info("agency key saved", zap.String("user_id", userID))
	respond.OK(w, KeyInfo{HasKey: true, KeyHint: hint, IsActive: true})
}

// Delete handles DELETE /manage-agency-keys.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	deleted, err := h.store.DeleteKey(r.Context(), userID)
	if err != nil {
		h.log.Error("delete agency key failed", zap.String("user_id", userID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to delete key", "")
		return
	}
	if !deleted {
		respond.Error(w, http.StatusNotFound, "No key stored", "")
		return
	}
	respond.OK(w, map[string]bool{"success": true})
}
