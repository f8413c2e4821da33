package licensing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghl-extractor-backend/internal/database"
	"ghl-extractor-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles plans, subscriptions, licensed_locations and usage_tracking.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const planColumns = `id, name, slug, monthly_price_cents, max_locations, monthly_extraction_limit, is_active`

func scanPlan(row pgx.Row, p *models.SubscriptionPlan) error {
	return row.Scan(&p.ID, &p.Name, &p.Slug, &p.MonthlyPriceCents, &p.MaxLocations, &p.MonthlyExtractionLimit, &p.IsActive)
}

func (r *Repository) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM public.subscription_plans
		WHERE is_active = true ORDER BY monthly_price_cents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := []models.SubscriptionPlan{}
	for rows.Next() {
		var p models.SubscriptionPlan
		if err := scanPlan(rows, &p); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetSubscription returns nil when the agency never subscribed.
func (r *Repository) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	s := &Subscription{UserID: userID}
	err := r.pool.QueryRow(ctx, `SELECT s.status, s.current_period_end,
			p.id, p.name, p.slug, p.monthly_price_cents, p.max_locations, p.monthly_extraction_limit, p.is_active
		FROM public.agency_subscriptions s
		JOIN public.subscription_plans p ON p.id = s.plan_id
		WHERE s.user_id = $1`, userID).Scan(
		&s.Status, &s.CurrentPeriodEnd,
		&s.Plan.ID, &s.Plan.Name, &s.Plan.Slug, &s.Plan.MonthlyPriceCents, &s.Plan.MaxLocations,
		&s.Plan.MonthlyExtractionLimit, &s.Plan.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SetSubscription moves the agency to the plan with the given slug. A plan with room
// for fewer locations than are currently licensed is refused.
func (r *Repository) SetSubscription(ctx context.Context, userID, slug string) (*Subscription, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var plan models.SubscriptionPlan
	err = scanPlan(tx.QueryRow(ctx, `SELECT `+planColumns+` FROM public.subscription_plans
		WHERE slug = $1 AND is_active = true`, slug), &plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return nil, err
	}
	var licensed int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM public.licensed_locations
		WHERE user_id = $1 AND is_active = true`, userID).Scan(&licensed); err != nil {
		return nil, err
	}
	if licensed > plan.MaxLocations {
		return nil, fmt.Errorf("%w (%d licensed, plan allows %d)", ErrTooManyLocations, licensed, plan.MaxLocations)
	}

	sub := &Subscription{UserID: userID, Plan: plan}
	err = tx.QueryRow(ctx, `INSERT INTO public.agency_subscriptions (user_id, plan_id, status, current_period_end)
		VALUES ($1, $2, 'active', now() + interval '1 month')
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = 'active',
			current_period_end = EXCLUDED.current_period_end,
			updated_at = now()
		RETURNING status, current_period_end`, userID, plan.ID).Scan(&sub.Status, &sub.CurrentPeriodEnd)
	if err != nil {
		return nil, err
	}
	return sub, tx.Commit(ctx)
}

func (r *Repository) ListLicensed(ctx context.Context, userID string) ([]LicensedLocation, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.location_id, c.business_name, l.is_active, l.licensed_at
		FROM public.licensed_locations l
		LEFT JOIN public.ghl_configurations c ON c.location_id = l.location_id
		WHERE l.user_id = $1
		ORDER BY l.licensed_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LicensedLocation{}
	for rows.Next() {
		var l LicensedLocation
		if err := rows.Scan(&l.LocationID, &l.BusinessName, &l.IsActive, &l.LicensedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// License adds a location to the agency's licensed set, keeping it within maxLocations.
func (r *Repository) License(ctx context.Context, userID, locationID string, maxLocations int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	owns, err := database.OwnsLocation(ctx, tx, userID, locationID)
	if err != nil {
		return err
	}
	if !owns {
		return ErrLocationNotFound
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return err
	}
	var licensed int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM public.licensed_locations
		WHERE user_id = $1 AND is_active = true`, userID).Scan(&licensed); err != nil {
		return err
	}
	if licensed >= maxLocations {
		return fmt.Errorf("%w (%d of %d)", ErrLimitReached, licensed, maxLocations)
	}

	_, err = tx.Exec(ctx, `INSERT INTO public.licensed_locations (user_id, location_id) VALUES ($1, $2)`, userID, locationID)
	if database.IsUniqueViolation(err) {
		return ErrAlreadyLicensed
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Unlicense(ctx context.Context, userID, locationID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM public.licensed_locations WHERE user_id = $1 AND location_id = $2`,
		userID, locationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Usage lists the period's counters for every location the agency installed.
func (r *Repository) Usage(ctx context.Context, userID string, periodStart time.Time) ([]LocationUsage, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.location_id, c.business_name,
			COALESCE(u.extractions_count, 0), COALESCE(u.tokens_used, 0), COALESCE(u.cost_estimate, 0)
		FROM public.ghl_configurations c
		LEFT JOIN public.usage_tracking u ON u.location_id = c.location_id AND u.period_start = $2
		WHERE c.user_id = $1
		ORDER BY c.created_at`, userID, periodStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LocationUsage{}
	for rows.Next() {
		var u LocationUsage
		if err := rows.Scan(&u.LocationID, &u.BusinessName, &u.ExtractionsCount, &u.TokensUsed, &u.CostEstimate); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
