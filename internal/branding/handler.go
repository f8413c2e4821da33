// Package branding stores the white-label settings an agency shows its clients.
package branding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"ghl-extractor-backend/internal/auth"
	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/respond"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type Branding struct {
	CompanyName    *string    `json:"companyName"`
	LogoURL        *string    `json:"logoUrl"`
	PrimaryColor   *string    `json:"primaryColor"`
	SecondaryColor *string    `json:"secondaryColor"`
	CustomDomain   *string    `json:"customDomain"`
	SupportEmail   *string    `json:"supportEmail"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// Validate trims every field, turns blanks into nil and checks colors and email.
func (b *Branding) Validate() error {
	for _, p := range []**string{&b.CompanyName, &b.LogoURL, &b.PrimaryColor, &b.SecondaryColor, &b.CustomDomain, &b.SupportEmail} {
		if *p == nil {
			continue
		}
		*p = models.NullIfEmpty(strings.TrimSpace(**p))
	}
	for name, c := range map[string]*string{"primaryColor": b.PrimaryColor, "secondaryColor": b.SecondaryColor} {
		if c != nil && !hexColor.MatchString(*c) {
			return fmt.Errorf("%s must be a hex color like #1a2b3c", name)
		}
	}
	if b.SupportEmail != nil {
		if _, err := mail.ParseAddress(*b.SupportEmail); err != nil {
			return errors.New("supportEmail is not a valid email address")
		}
	}
	if b.CustomDomain != nil {
		d := strings.ToLower(*b.CustomDomain)
		if strings.Contains(d, "://") || strings.ContainsAny(d, " /") {
			return errors.New("customDomain must be a bare host name")
		}
		b.CustomDomain = &d
	}
	return nil
}

type Store interface {
	Get(ctx context.Context, userID string) (*Branding, error)
	Save(ctx context.Context, userID string, b *Branding) (*Branding, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `company_name, logo_url, primary_color, secondary_color, custom_domain, support_email, updated_at`

func scan(row pgx.Row) (*Branding, error) {
	var b Branding
	err := row.Scan(&b.CompanyName, &b.LogoURL, &b.PrimaryColor, &b.SecondaryColor, &b.CustomDomain, &b.SupportEmail, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Get returns an empty Branding when the agency never saved one.
func (r *Repository) Get(ctx context.Context, userID string) (*Branding, error) {
	b, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM public.agency_branding WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return &Branding{}, nil
	}
	return b, err
}

func (r *Repository) Save(ctx context.Context, userID string, b *Branding) (*Branding, error) {
	query := `INSERT INTO public.agency_branding (user_id, company_name, logo_url, primary_color, secondary_color, custom_domain, support_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			logo_url = EXCLUDED.logo_url,
			primary_color = EXCLUDED.primary_color,
			secondary_color = EXCLUDED.secondary_color,
			custom_domain = EXCLUDED.custom_domain,
			support_email = EXCLUDED.support_email,
			updated_at = now()
		RETURNING ` + columns
	return scan(r.pool.QueryRow(ctx, query, userID,
		b.CompanyName, b.LogoURL, b.PrimaryColor, b.SecondaryColor, b.CustomDomain, b.SupportEmail))
}

type Handler struct {
	store Store
	log   *zap.Logger
}

func NewHandler(store Store, log *zap.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// Get handles GET /branding.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.log.Error("get branding failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to load branding", "")
		return
	}
	respond.OK(w, b)
}

// Save handles PUT /branding. The body replaces the stored settings.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var b Branding
	if err := respond.Decode(r, &b); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := b.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid branding", err.Error())
		return
	}
	saved, err := h.store.Save(r.Context(), auth.UserID(r.Context()), &b)
	if err != nil {
		h.log.Error("save branding failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to save branding", "")
		return
	}
	respond.OK(w, saved)
}
