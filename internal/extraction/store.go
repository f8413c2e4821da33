package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres implementation of Store.
type Repository struct {
	pool      *pgxpool.Pool
	freeLimit int
}

// NewRepository creates a Repository. freeLimit is the monthly extraction cap for
// owners without an active subscription.
func NewRepository(pool *pgxpool.Pool, freeLimit int) *Repository {
	return &Repository{pool: pool, freeLimit: freeLimit}
}

const configurationColumns = `id, user_id, location_id, company_id, access_token, refresh_token,
	token_expires_at, scopes, business_name, business_description, business_context,
	target_audience, services_offered, auto_extract, is_active, created_at, updated_at`

// ScanConfiguration reads a row selected with configurationColumns.
func ScanConfiguration(row pgx.Row) (*models.Configuration, error) {
	var c models.Configuration
	err := row.Scan(
		&c.ID, &c.UserID, &c.LocationID, &c.CompanyID, &c.AccessToken, &c.RefreshToken,
		&c.TokenExpiresAt, &c.Scopes, &c.BusinessName, &c.BusinessDescription, &c.BusinessContext,
		&c.TargetAudience, &c.ServicesOffered, &c.AutoExtract, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ConfigurationColumns is the select list understood by ScanConfiguration.
func ConfigurationColumns() string { return configurationColumns }

func (r *Repository) GetConfiguration(ctx context.Context, locationID string) (*models.Configuration, error) {
	query := `SELECT ` + configurationColumns + ` FROM public.ghl_configurations
		WHERE location_id = $1 AND is_active = true`
	c, err := ScanConfiguration(r.pool.QueryRow(ctx, query, locationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get configuration: %w", err)
	}
	return c, nil
}

func (r *Repository) SaveTokens(ctx context.Context, locationID, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `UPDATE public.ghl_configurations
		SET access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = now()
		WHERE location_id = $1`
	_, err := r.pool.Exec(ctx, query, locationID, accessToken, refreshToken, expiresAt)
	return err
}

func (r *Repository) LoadTokens(ctx context.Context, locationID string) (ghl.StoredToken, error) {
	t := ghl.StoredToken{LocationID: locationID}
	err := r.pool.QueryRow(ctx, `SELECT access_token, refresh_token, token_expires_at
		FROM public.ghl_configurations WHERE location_id = $1`, locationID).
		Scan(&t.AccessToken, &t.RefreshToken, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ghl.StoredToken{}, nil
	}
	return t, err
}

const fieldColumns = `id, location_id, field_name, description, target_ghl_key, field_type,
	picklist_options, is_custom_field, is_required, overwrite_policy, sort_order, is_active,
	created_at, updated_at`

// FieldColumns is the select list understood by ScanField.
func FieldColumns() string { return fieldColumns }

// ScanField reads a row selected with FieldColumns.
func ScanField(row pgx.Row) (models.ExtractionField, error) {
	var f models.ExtractionField
	err := row.Scan(
		&f.ID, &f.LocationID, &f.FieldName, &f.Description, &f.TargetGHLKey, &f.FieldType,
		&f.PicklistOptions, &f.IsCustomField, &f.IsRequired, &f.OverwritePolicy, &f.SortOrder, &f.IsActive,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if f.PicklistOptions == nil {
		f.PicklistOptions = []string{}
	}
	return f, err
}

func (r *Repository) ListActiveFields(ctx context.Context, locationID string) ([]models.ExtractionField, error) {
	query := `SELECT ` + fieldColumns + ` FROM public.data_extraction_fields
		WHERE location_id = $1 AND is_active = true
		ORDER BY sort_order, created_at`
	rows, err := r.pool.Query(ctx, query, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := []models.ExtractionField{}
	for rows.Next() {
		f, err := ScanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (r *Repository) ListActiveRules(ctx context.Context, locationID string) ([]models.ContextualRule, error) {
	query := `SELECT id, location_id, rule_name, rule_description, priority, is_active, created_at, updated_at
		FROM public.contextual_rules
		WHERE location_id = $1 AND is_active = true
		ORDER BY priority DESC, created_at`
	rows, err := r.pool.Query(ctx, query, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []models.ContextualRule{}
	for rows.Next() {
		var c models.ContextualRule
		if err := rows.Scan(&c.ID, &c.LocationID, &c.RuleName, &c.RuleDescription, &c.Priority, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, c)
	}
	return rules, rows.Err()
}

func (r *Repository) ListActiveStopTriggers(ctx context.Context, locationID string) ([]models.StopTrigger, error) {
	query := `SELECT id, location_id, trigger_phrase, match_type, is_active, created_at
		FROM public.stop_triggers
		WHERE location_id = $1 AND is_active = true
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	triggers := []models.StopTrigger{}
	for rows.Next() {
		var t models.StopTrigger
		if err := rows.Scan(&t.ID, &t.LocationID, &t.TriggerPhrase, &t.MatchType, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// ListConversationMessages returns the latest limit messages, oldest first.
func (r *Repository) ListConversationMessages(ctx context.Context, locationID, conversationID string, limit int) ([]models.ConversationMessage, error) {
	query := `SELECT id, location_id, conversation_id, contact_id, message_id, event_type, direction,
			message_type, message_body, processed, stopped, received_at
		FROM (
			SELECT * FROM public.ghl_conversations
			WHERE location_id = $1 AND conversation_id = $2
			ORDER BY received_at DESC
			LIMIT $3
		) latest
		ORDER BY received_at`
	rows, err := r.pool.Query(ctx, query, locationID, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.ConversationMessage{}
	for rows.Next() {
		var m models.ConversationMessage
		if err := rows.Scan(&m.ID, &m.LocationID, &m.ConversationID, &m.ContactID, &m.MessageID, &m.EventType, &m.Direction,
			&m.MessageType, &m.Body, &m.Processed, &m.Stopped, &m.ReceivedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkConversation flags every stored message of the conversation as processed, and
// as stopped when a stop trigger fired. A stopped conversation stays stopped.
func (r *Repository) MarkConversation(ctx context.Context, locationID, conversationID string, stopped bool) error {
	query := `UPDATE public.ghl_conversations
		SET processed = true, stopped = stopped OR $3
		WHERE location_id = $1 AND conversation_id = $2`
	_, err := r.pool.Exec(ctx, query, locationID, conversationID, stopped)
	return err
}

// CheckQuota reports whether the location is licensed to its owner and how much of
// the owner's plan limit it has used in the period.
func (r *Repository) CheckQuota(ctx context.Context, ownerID, locationID string, periodStart time.Time) (Quota, error) {
	var q Quota

	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM public.licensed_locations
			WHERE user_id = $1 AND location_id = $2 AND is_active = true
		)`, ownerID, locationID).Scan(&q.Licensed)
	if err != nil {
		return q, fmt.Errorf("licensed lookup: %w", err)
	}

	var limit *int
	err = r.pool.QueryRow(ctx, `SELECT p.monthly_extraction_limit
		FROM public.agency_subscriptions s
		JOIN public.subscription_plans p ON p.id = s.plan_id
		WHERE s.user_id = $1 AND s.status IN ('active', 'trialing')`, ownerID).Scan(&limit)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		q.Limit = r.freeLimit
	case err != nil:
		return q, fmt.Errorf("plan lookup: %w", err)
	case limit != nil:
		q.Limit = *limit
	}

	err = r.pool.QueryRow(ctx, `SELECT COALESCE(
			(SELECT extractions_count FROM public.usage_tracking WHERE location_id = $1 AND period_start = $2), 0)`,
		locationID, periodStart).Scan(&q.Used)
	if err != nil {
		return q, fmt.Errorf("usage lookup: %w", err)
	}
	return q, nil
}

// AgencyKey returns the sealed OpenAI key of an agency, or "" when none is active.
func (r *Repository) AgencyKey(ctx context.Context, userID string) (string, error) {
	var sealed string
	err := r.pool.QueryRow(ctx, `SELECT encrypted_key FROM public.agency_openai_keys
		WHERE user_id = $1 AND is_active = true`, userID).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return sealed, err
}

func (r *Repository) InsertUsageLog(ctx context.Context, l *models.UsageLog) error {
	query := `INSERT INTO public.ai_usage_logs (
			id, location_id, user_id, conversation_id, contact_id, operation, model,
			prompt_tokens, completion_tokens, total_tokens, cost_estimate, success,
			error_message, extracted_data, updated_fields, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.pool.Exec(ctx, query,
		l.ID, l.LocationID, l.UserID, l.ConversationID, l.ContactID, l.Operation, l.Model,
		l.PromptTokens, l.CompletionTokens, l.TotalTokens, l.CostEstimate, l.Success,
		l.ErrorMessage, jsonOrNil(l.ExtractedData), jsonOrNil(l.UpdatedFields), l.DurationMS,
	)
	return err
}

// ReserveUsage counts one extraction for the period in a single conditional upsert, so
// concurrent extractions cannot push the counter past limit. limit <= 0 is unlimited.
func (r *Repository) ReserveUsage(ctx context.Context, locationID string, periodStart time.Time, limit int) (bool, error) {
	query := `INSERT INTO public.usage_tracking (location_id, period_start, extractions_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (location_id, period_start) DO UPDATE SET
			extractions_count = usage_tracking.extractions_count + 1,
			updated_at = now()
		WHERE $3::int <= 0 OR usage_tracking.extractions_count < $3::int
		RETURNING extractions_count`
	var count int
	err := r.pool.QueryRow(ctx, query, locationID, periodStart, limit).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseUsage gives back a reservation whose extraction failed.
func (r *Repository) ReleaseUsage(ctx context.Context, locationID string, periodStart time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE public.usage_tracking
		SET extractions_count = GREATEST(extractions_count - 1, 0), updated_at = now()
		WHERE location_id = $1 AND period_start = $2`, locationID, periodStart)
	return err
}

// AddUsageCost adds the tokens and cost of a finished extraction to the period.
func (r *Repository) AddUsageCost(ctx context.Context, locationID string, periodStart time.Time, tokens int, cost float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE public.usage_tracking
		SET tokens_used = tokens_used + $3, cost_estimate = cost_estimate + $4, updated_at = now()
		WHERE location_id = $1 AND period_start = $2`, locationID, periodStart, tokens, cost)
	return err
}

func jsonOrNil(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
