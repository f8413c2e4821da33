// Package logs serves the extraction history of a location.
package logs

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/extraction"
	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/respond"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Filter selects a page of ai_usage_logs rows.
type Filter struct {
	LocationID string
	Operation  string
	Success    *bool
	Limit      int
	Offset     int
}

// ParseFilter reads locationId, operation, success, limit and offset from the query.
func ParseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{LocationID: q.Get("locationId"), Operation: q.Get("operation"), Limit: DefaultLimit}
	if f.LocationID == "" {
		return f, fmt.Errorf("locationId is required")
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, fmt.Errorf("limit must be a positive integer")
		}
		f.Limit = min(n, MaxLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("success must be true or false")
		}
		f.Success = &b
	}
	return f, nil
}

type Page struct {
	Logs   []models.UsageLog `json:"logs"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type Store interface {
	List(ctx context.Context, f Filter) (Page, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context, f Filter) (Page, error) {
	page := Page{Logs: []models.UsageLog{}, Limit: f.Limit, Offset: f.Offset}
	where := `WHERE location_id = $1
		AND ($2 = '' OR operation = $2)
		AND ($3::boolean IS NULL OR success = $3)`

	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM public.ai_usage_logs `+where,
		f.LocationID, f.Operation, f.Success).Scan(&page.Total)
	if err != nil {
		return page, fmt.Errorf("count logs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, location_id, user_id, conversation_id, contact_id, operation, model,
			prompt_tokens, completion_tokens, total_tokens, cost_estimate, success, error_message,
			extracted_data, updated_fields, duration_ms, created_at
		FROM public.ai_usage_logs `+where+`
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`, f.LocationID, f.Operation, f.Success, f.Limit, f.Offset)
	if err != nil {
		return page, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l models.UsageLog
		var extracted, updated []byte
		if err := rows.Scan(&l.ID, &l.LocationID, &l.UserID, &l.ConversationID, &l.ContactID, &l.Operation, &l.Model,
			&l.PromptTokens, &l.CompletionTokens, &l.TotalTokens, &l.CostEstimate, &l.Success, &l.ErrorMessage,
			&extracted, &updated, &l.DurationMS, &l.CreatedAt); err != nil {
			return page, err
		}
		l.ExtractedData, l.UpdatedFields = extracted, updated
		page.Logs = append(page.Logs, l)
	}
	return page, rows.Err()
}

type Handler struct {
	store Store
	owns  extraction.OwnershipFunc
	log   *zap.Logger
}

func NewHandler(store Store, owns extraction.OwnershipFunc, log *zap.Logger) *Handler {
	return &Handler{store: store, owns: owns, log: log}
}

// List handles GET /view-extraction-logs.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}
	ok, err := h.owns(r.Context(), auth.UserID(r.Context()), f.LocationID)
	if err != nil {
		h.log.Error("ownership check failed", zap.String("location_id", f.LocationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to verify location", "")
		return
	}
	if !ok {
		respond.Error(w, http.StatusNotFound, "Location not found", "")
		return
	}

	page, err := h.store.List(r.Context(), f)
	if err != nil {
		h.log.Error("list logs failed", zap.String("location_id", f.LocationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to load logs", "")
		return
	}
	respond.OK(w, page)
}
