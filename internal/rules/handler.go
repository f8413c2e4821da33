// Package rules manages the contextual rules appended to a location's prompt.
package rules

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

const columns = `id, location_id, rule_name, rule_description, priority, is_active, created_at, updated_at`

type CreateRuleRequest struct {
	RuleName        string `json:"ruleName"`
	RuleDescription string `json:"ruleDescription"`
	Priority        int    `json:"priority"`
	IsActive        *bool  `json:"isActive"`
}

type UpdateRuleRequest struct {
	RuleName        *string `json:"ruleName"`
	RuleDescription *string `json:"ruleDescription"`
	Priority        *int    `json:"priority"`
	IsActive        *bool   `json:"isActive"`
}

func (req *CreateRuleRequest) Validate() error {
	req.RuleName = strings.TrimSpace(req.RuleName)
	req.RuleDescription = strings.TrimSpace(req.RuleDescription)
	if req.RuleName == "" || req.RuleDescription == "" {
		return errors.New("ruleName and ruleDescription are required")
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

func scan(row pgx.Row) (models.ContextualRule, error) {
	var c models.ContextualRule
	err := row.Scan(&c.ID, &c.LocationID, &c.RuleName, &c.RuleDescription, &c.Priority, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")

	rows, err := h.db.Query(r.Context(),
		`SELECT `+columns+` FROM public.contextual_rules WHERE location_id = $1 ORDER BY priority DESC, created_at`,
		locationID)
	if err != nil {
		h.log.Error("list rules failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to list rules", "")
		return
	}
	defer rows.Close()

	rules := []models.ContextualRule{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			h.log.Error("scan rule failed", zap.Error(err))
			continue
		}
		rules = append(rules, c)
	}
	respond.OK(w, rules)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")

	var req CreateRuleRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid rule", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	c, err := scan(h.db.QueryRow(r.Context(), `INSERT INTO public.contextual_rules
			(location_id, rule_name, rule_description, priority, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+columns,
		locationID, req.RuleName, req.RuleDescription, req.Priority, active))
	if err != nil {
		h.log.Error("create rule failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to create rule", "")
		return
	}
	respond.JSON(w, http.StatusCreated, c)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")
	ruleID := chi.URLParam(r, "ruleId")

	var req UpdateRuleRequest
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
	if req.RuleName != nil {
		name := strings.TrimSpace(*req.RuleName)
		if name == "" {
			respond.Error(w, http.StatusBadRequest, "Invalid rule", "ruleName cannot be empty")
			return
		}
		add("rule_name", name)
	}
	if req.RuleDescription != nil {
		desc := strings.TrimSpace(*req.RuleDescription)
		if desc == "" {
			respond.Error(w, http.StatusBadRequest, "Invalid rule", "ruleDescription cannot be empty")
			return
		}
		add("rule_description", desc)
	}
	if req.Priority != nil {
		add("priority", *req.Priority)
	}
	if req.IsActive != nil {
		add("is_active", *req.IsActive)
	}
	if len(setParts) == 0 {
		respond.Error(w, http.StatusBadRequest, "No fields to update", "")
		return
	}

	args = append(args, locationID, ruleID)
	query := fmt.Sprintf(
		"UPDATE public.contextual_rules SET %s, updated_at = now() WHERE location_id = $%d AND id = $%d RETURNING %s",
		strings.Join(setParts, ", "), len(args)-1, len(args), columns,
	)
	c, err := scan(h.db.QueryRow(r.Context(), query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		respond.Error(w, http.StatusNotFound, "Rule not found", "")
		return
	}
	if err != nil {
		h.log.Error("update rule failed", zap.String("rule_id", ruleID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to update rule", "")
		return
	}
	respond.OK(w, c)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")
	ruleID := chi.URLParam(r, "ruleId")

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM public.contextual_rules WHERE location_id = $1 AND id = $2`, locationID, ruleID)
	if err != nil {
		h.log.Error("delete rule failed", zap.String("rule_id", ruleID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to delete rule", "")
		return
	}
	if tag.RowsAffected() == 0 {
		respond.Error(w, http.StatusNotFound, "Rule not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
