package webhook

import (
	"context"
	"errors"
	"fmt"

	"ghl-extractor-backend/internal/extraction"
	"ghl-extractor-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores webhook rows. Stop triggers and conversation flags come from the
// extraction repository.
type Repository struct {
	*extraction.Repository
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool, ext *extraction.Repository) *Repository {
	return &Repository{Repository: ext, pool: pool}
}

// InsertMessage stores a row and returns its id. A repeated message_id is not an error:
// inserted is false and nothing is written.
func (r *Repository) InsertMessage(ctx context.Context, m models.ConversationMessage) (id string, inserted bool, err error) {
	raw := m.RawPayload
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	query := `INSERT INTO public.ghl_conversations (
			location_id, conversation_id, contact_id, message_id, event_type, direction,
			message_type, message_body, raw_payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING id`
	err = r.pool.QueryRow(ctx, query,
		m.LocationID, m.ConversationID, m.ContactID, m.MessageID, m.EventType, m.Direction,
		m.MessageType, m.Body, string(raw), m.ReceivedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("insert conversation message: %w", err)
	}
	return id, true, nil
}

// LocationSettings returns the owner and auto_extract flag of an active location.
// found is false for locations that never installed the app.
func (r *Repository) LocationSettings(ctx context.Context, locationID string) (ownerID string, autoExtract, found bool, err error) {
	err = r.pool.QueryRow(ctx, `SELECT user_id, auto_extract FROM public.ghl_configurations
		WHERE location_id = $1 AND is_active = true`, locationID).Scan(&ownerID, &autoExtract)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, false, nil
	}
	if err != nil {
		return "", false, false, err
	}
	return ownerID, autoExtract, true, nil
}
