package agencykeys

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KeyInfo is what the dashboard may see of a stored key.
type KeyInfo struct {
	HasKey    bool       `json:"hasKey"`
	KeyHint   string     `json:"keyHint,omitempty"`
	IsActive  bool       `json:"isActive"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Repository handles agency_openai_keys.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetKey(ctx context.Context, userID string) (*KeyInfo, error) {
	info := &KeyInfo{}
	var updated time.Time
	err := r.pool.QueryRow(ctx, `SELECT key_hint, is_active, updated_at FROM public.agency_openai_keys
		WHERE user_id = $1`, userID).Scan(&info.KeyHint, &info.IsActive, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return info, nil
	}
	if err != nil {
		return nil, err
	}
	info.HasKey = true
	info.UpdatedAt = &updated
	return info, nil
}

func (r *Repository) SaveKey(ctx context.Context, userID, sealed, hint string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO public.agency_openai_keys (user_id, encrypted_key, key_hint)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			encrypted_key = EXCLUDED.encrypted_key,
			key_hint = EXCLUDED.key_hint,
			is_active = true,
			updated_at = now()`, userID, sealed, hint)
	return err
}

func (r *Repository) DeleteKey(ctx context.Context, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM public.agency_openai_keys WHERE user_id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
