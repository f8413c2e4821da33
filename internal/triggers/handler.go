// Package triggers manages the stop phrases that end AI extraction for a conversation.
package triggers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/respond"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const columns = `id, location_id, trigger_phrase, match_type, is_active, created_at`

type CreateTriggerRequest struct {
	TriggerPhrase string `json:"triggerPhrase"`
	MatchType     string `json:"matchType"`
	IsActive      *bool  `json:"isActive"`
}

type UpdateTriggerRequest struct {
	TriggerPhrase *string `json:"triggerPhrase"`
	MatchType     *string `json:"matchType"`
	IsActive      *bool   `json:"isActive"`
}

func validMatchType(m string) bool {
	return m == models.MatchContains || m == models.MatchExact
}

func (req *CreateTriggerRequest) Validate() error {
	req.TriggerPhrase = strings.TrimSpace(req.TriggerPhrase)
	if req.MatchType == "" {
		req.MatchType = models.MatchContains
	}
	if req.TriggerPhrase == "" {
		return errors.New("triggerPhrase is required")
	}
	if !validMatchType(req.MatchType) {
		return fmt.Errorf("matchType must be contains or exact, got %q", req.MatchType)
	}
	return nil
}

type Handler struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewHandler(db *pgxpool.Pool, log *zap.Logger) *Handler {
	return &Handler{db: db, log: log}
}

func scan(row pgx.Row) (models.StopTrigger, error) {
	var t models.StopTrigger
	err := row.Scan(&t.ID, &t.LocationID, &t.TriggerPhrase, &t.MatchType, &t.IsActive, &t.CreatedAt)
	return t, err
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")

	rows, err := h.db.Query(r.Context(),
		`SELECT `+columns+` FROM public.stop_triggers WHERE location_id = $1 ORDER BY created_at`, locationID)
	if err != nil {
		h.log.Error("list stop triggers failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to list stop triggers", "")
		return
	}
	defer rows.Close()

	triggers := []models.StopTrigger{}
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			h.log.Error("scan stop trigger failed", zap.Error(err))
			continue
		}
		triggers = append(triggers, t)
	}
	respond.OK(w, triggers)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")

	var req CreateTriggerRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid stop trigger", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	t, err := scan(h.db.QueryRow(r.Context(), `INSERT INTO public.stop_triggers
			(location_id, trigger_phrase, match_type, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+columns,
		locationID, req.TriggerPhrase, req.MatchType, active))
	if err != nil {
		h.log.Error("create stop trigger failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to create stop trigger", "")
		return
	}
	respond.JSON(w, http.StatusCreated, t)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")
	triggerID := chi.URLParam(r, "triggerId")

	var req UpdateTriggerRequest
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
	if req.TriggerPhrase != nil {
		phrase := strings.TrimSpace(*req.TriggerPhrase)
		if phrase == "" {
			respond.Error(w, http.StatusBadRequest, "Invalid stop trigger", "triggerPhrase cannot be empty")
			return
		}
		add("trigger_phrase", phrase)
	}
	if req.MatchType != nil {
		if !validMatchType(*req.MatchType) {
			respond.Error(w, http.StatusBadRequest, "Invalid stop trigger", "matchType must be contains or exact")
			return
		}
		add("match_type", *req.MatchType)
	}
	if req.IsActive != nil {
		add("is_active", *req.IsActive)
	}
	if len(setParts) == 0 {
		respond.Error(w, http.StatusBadRequest, "No fields to update", "")
		return
	}

	args = append(args, locationID, triggerID)
	query := fmt.Sprintf(
		"UPDATE public.stop_triggers SET %s WHERE location_id = $%d AND id = $%d RETURNING %s",
		strings.Join(setParts, ", "), len(args)-1, len(args), columns,
	)
	t, err := scan(h.db.QueryRow(r.Context(), query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		respond.Error(w, http.StatusNotFound, "Stop trigger not found", "")
		return
	}
	if err != nil {
		h.log.Error("update stop trigger failed", zap.String("trigger_id", triggerID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to update stop trigger", "")
		return
	}
	respond.OK(w, t)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")
	triggerID := chi.URLParam(r, "triggerId")

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM public.stop_triggers WHERE location_id = $1 AND id = $2`, locationID, triggerID)
	if err != nil {
		h.log.Error("delete stop trigger failed", zap.String("trigger_id", triggerID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to delete stop trigger", "")
		return
	}
	if tag.RowsAffected() == 0 {
		respond.Error(w, http.StatusNotFound, "Stop trigger not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
