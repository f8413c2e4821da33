// Package refresh keeps GHL location tokens fresh for locations that receive no traffic.
package refresh

import (
	"context"
	"errors"
	"time"

	"ghl-extractor-backend/internal/ghl"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// batchSize caps how many locations one pass refreshes.
const batchSize = 100

// Window is how far ahead of expiry the scheduler refreshes. It is wider than
// ghl.RefreshWindow so idle tokens are renewed before request handlers would touch them.
const Window = 2 * ghl.RefreshWindow

type Store interface {
	ExpiringTokens(ctx context.Context, before time.Time, limit int) ([]ghl.StoredToken, error)
	DeactivateLocation(ctx context.Context, locationID string) error
}

type Refresher interface {
	RefreshAhead(ctx context.Context, t ghl.StoredToken, window time.Duration) (string, error)
}

// Scheduler refreshes tokens that expire within Window on every tick.
type Scheduler struct {
	store    Store
	tokens   Refresher
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewScheduler(store Store, tokens Refresher, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{store: store, tokens: tokens, interval: interval, log: log, now: time.Now}
}

// Run ticks until ctx is done. A non-positive interval disables the scheduler.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("token refresh scheduler disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes one batch. Locations whose refresh token is gone are deactivated,
// since every GHL call for them would fail until the app is reinstalled.
func (s *Scheduler) RunOnce(ctx context.Context) (refreshed, failed int) {
	due, err := s.store.ExpiringTokens(ctx, s.now().Add(Window), batchSize)
	if err != nil {
		s.log.Error("list expiring tokens failed", zap.Error(err))
		return 0, 0
	}

	for _, t := range due {
		if _, err := s.tokens.RefreshAhead(ctx, t, Window); err != nil {
			failed++
			s.log.Warn("token refresh failed", zap.String("location_id", t.LocationID), zap.Error(err))
			if errors.Is(err, ghl.ErrNoRefreshToken) {
				if err := s.store.DeactivateLocation(ctx, t.LocationID); err != nil {
					s.log.Error("deactivate location failed", zap.String("location_id", t.LocationID), zap.Error(err))
				}
			}
			continue
		}
		refreshed++
	}

	if len(due) > 0 {
		s.log.Info("token refresh pass complete", zap.Int("refreshed", refreshed), zap.Int("failed", failed))
	}
	return refreshed, failed
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ExpiringTokens(ctx context.Context, before time.Time, limit int) ([]ghl.StoredToken, error) {
	rows, err := r.pool.Query(ctx, `SELECT location_id, access_token, refresh_token, token_expires_at
		FROM public.ghl_configurations
		WHERE is_active = true AND token_expires_at < $1
		ORDER BY token_expires_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []ghl.StoredToken{}
	for rows.Next() {
		var t ghl.StoredToken
		if err := rows.Scan(&t.LocationID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *Repository) DeactivateLocation(ctx context.Context, locationID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE public.ghl_configurations SET is_active = false, updated_at = now()
		WHERE location_id = $1`, locationID)
	return err
}
