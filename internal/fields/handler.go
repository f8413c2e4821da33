// Package fields manages the data extraction fields of a location.
package fields

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ghl-extractor-backend/internal/database"
	"ghl-extractor-backend/internal/extraction"
	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/respond"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CreateFieldRequest struct {
	FieldName       string                 `json:"fieldName"`
	Description     *string                `json:"description"`
	TargetGHLKey    string                 `json:"targetGhlKey"`
	FieldType       models.FieldType       `json:"fieldType"`
	PicklistOptions []string               `json:"picklistOptions"`
	IsCustomField   bool                   `json:"isCustomField"`
	IsRequired      bool                   `json:"isRequired"`
	OverwritePolicy models.OverwritePolicy `json:"overwritePolicy"`
	SortOrder       int                    `json:"sortOrder"`
	IsActive        *bool                  `json:"isActive"`
}

type UpdateFieldRequest struct {
	FieldName       *string                 `json:"fieldName"`
	Description     *string                 `json:"description"`
	TargetGHLKey    *string                 `json:"targetGhlKey"`
	FieldType       *models.FieldType       `json:"fieldType"`
	PicklistOptions *[]string               `json:"picklistOptions"`
	IsCustomField   *bool                   `json:"isCustomField"`
	IsRequired      *bool                   `json:"isRequired"`
	OverwritePolicy *models.OverwritePolicy `json:"overwritePolicy"`
	SortOrder       *int                    `json:"sortOrder"`
	IsActive        *bool                   `json:"isActive"`
}

// Validate fills defaults and checks the request.
func (req *CreateFieldRequest) Validate() error {
	req.FieldName = strings.TrimSpace(req.FieldName)
	req.TargetGHLKey = strings.TrimSpace(req.TargetGHLKey)
	if req.FieldType == "" {
		req.FieldType = models.FieldText
	}
	if req.OverwritePolicy == "" {
		req.OverwritePolicy = models.PolicyOnlyEmpty
	}
	if req.PicklistOptions == nil {
		req.PicklistOptions = []string{}
	}
	return check(req.FieldName, req.TargetGHLKey, req.FieldType, req.OverwritePolicy, req.IsCustomField, req.PicklistOptions)
}

func check(name, key string, ft models.FieldType, policy models.OverwritePolicy, custom bool, options []string) error {
	switch {
	case name == "":
		return errors.New("fieldName is required")
	case key == "":
		return errors.New("targetGhlKey is required")
	case !ft.Valid():
		return fmt.Errorf("unknown fieldType %q", ft)
	case !policy.Valid():
		return fmt.Errorf("overwritePolicy must be always, never or only_empty, got %q", policy)
	case !custom && !ghl.StandardFields[key]:
		return fmt.Errorf("%q is not a standard GHL contact field; set isCustomField for custom field ids", key)
	case ft == models.FieldSelect && len(options) == 0:
		return errors.New("picklistOptions are required for select fields")
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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")

	query := `SELECT ` + extraction.FieldColumns() + ` FROM public.data_extraction_fields
		WHERE location_id = $1 ORDER BY sort_order, created_at`
	rows, err := h.db.Query(r.Context(), query, locationID)
	if err != nil {
		h.log.Error("list fields failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to list fields", "")
		return
	}
	defer rows.Close()

	fields := []models.ExtractionField{}
	for rows.Next() {
		f, err := extraction.ScanField(rows)
		if err != nil {
			h.log.Error("scan field failed", zap.Error(err))
			continue
		}
		fields = append(fields, f)
	}
	respond.OK(w, fields)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")

	var req CreateFieldRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid field", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	query := `INSERT INTO public.data_extraction_fields (
			location_id, field_name, description, target_ghl_key, field_type, picklist_options,
			is_custom_field, is_required, overwrite_policy, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + extraction.FieldColumns()
	f, err := extraction.ScanField(h.db.QueryRow(r.Context(), query,
		locationID, req.FieldName, req.Description, req.TargetGHLKey, req.FieldType, req.PicklistOptions,
		req.IsCustomField, req.IsRequired, req.OverwritePolicy, req.SortOrder, active,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			respond.Error(w, http.StatusConflict, "A field with this name already exists.", "")
			return
		}
		h.log.Error("create field failed", zap.String("location_id", locationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to create field", "")
		return
	}
	respond.JSON(w, http.StatusCreated, f)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")
	fieldID := chi.URLParam(r, "fieldId")

	var req UpdateFieldRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}

	// Validate the merged result, not just the patch.
	current, err := extraction.ScanField(h.db.QueryRow(r.Context(),
		`SELECT `+extraction.FieldColumns()+` FROM public.data_extraction_fields WHERE location_id = $1 AND id = $2`,
		locationID, fieldID))
	if errors.Is(err, pgx.ErrNoRows) {
		respond.Error(w, http.StatusNotFound, "Field not found", "")
		return
	}
	if err != nil {
		h.log.Error("load field failed", zap.String("field_id", fieldID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to update field", "")
		return
	}
	merged := req.apply(current)
	if err := check(merged.FieldName, merged.TargetGHLKey, merged.FieldType, merged.OverwritePolicy, merged.IsCustomField, merged.PicklistOptions); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid field", err.Error())
		return
	}

	query := `UPDATE public.data_extraction_fields SET
			field_name = $3, description = $4, target_ghl_key = $5, field_type = $6, picklist_options = $7,
			is_custom_field = $8, is_required = $9, overwrite_policy = $10, sort_order = $11, is_active = $12,
			updated_at = now()
		WHERE location_id = $1 AND id = $2
		RETURNING ` + extraction.FieldColumns()
	f, err := extraction.ScanField(h.db.QueryRow(r.Context(), query,
		locationID, fieldID, merged.FieldName, merged.Description, merged.TargetGHLKey, merged.FieldType,
		merged.PicklistOptions, merged.IsCustomField, merged.IsRequired, merged.OverwritePolicy,
		merged.SortOrder, merged.IsActive,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			respond.Error(w, http.StatusConflict, "A field with this name already exists.", "")
			return
		}
		h.log.Error("update field failed", zap.String("field_id", fieldID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to update field", "")
		return
	}
	respond.OK(w, f)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "locationId")
	fieldID := chi.URLParam(r, "fieldId")

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM public.data_extraction_fields WHERE location_id = $1 AND id = $2`, locationID, fieldID)
	if err != nil {
		h.log.Error("delete field failed", zap.String("field_id", fieldID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to delete field", "")
		return
	}
	if tag.RowsAffected() == 0 {
		respond.Error(w, http.StatusNotFound, "Field not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req *UpdateFieldRequest) apply(f models.ExtractionField) models.ExtractionField {
	if req.FieldName != nil {
		f.FieldName = strings.TrimSpace(*req.FieldName)
	}
	if req.Description != nil {
		f.Description = models.NullIfEmpty(strings.TrimSpace(*req.Description))
	}
	if req.TargetGHLKey != nil {
		f.TargetGHLKey = strings.TrimSpace(*req.TargetGHLKey)
	}
	if req.FieldType != nil {
		f.FieldType = *req.FieldType
	}
	if req.PicklistOptions != nil {
		f.PicklistOptions = *req.PicklistOptions
		if f.PicklistOptions == nil {
			f.PicklistOptions = []string{}
		}
	}
	if req.IsCustomField != nil {
		f.IsCustomField = *req.IsCustomField
	}
	if req.IsRequired != nil {
		f.IsRequired = *req.IsRequired
	}
	if req.OverwritePolicy != nil {
		f.OverwritePolicy = *req.OverwritePolicy
	}
	if req.SortOrder != nil {
		f.SortOrder = *req.SortOrder
	}
	if req.IsActive != nil {
		f.IsActive = *req.IsActive
	}
	return f
}
