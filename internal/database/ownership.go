package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OwnsLocation reports whether userID installed locationID. Every dashboard
// query on location-scoped tables goes through this check.
func OwnsLocation(ctx context.Context, db Querier, userID, locationID string) (bool, error) {
	if userID == "" || locationID == "" {
		return false, nil
	}
	var owns bool
	err := db.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM public.ghl_configurations WHERE user_id = $1 AND location_id = $2
		)`, userID, locationID).Scan(&owns)
	return owns, err
}

// IsUniqueViolation reports a Postgres 23505 error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports a Postgres 23503 error.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
