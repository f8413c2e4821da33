// Package licensing covers subscription plans, licensed locations and monthly usage.
package licensing

import (
	"errors"
	"time"

	"ghl-extractor-backend/internal/models"
)

var (
	ErrPlanNotFound     = errors.New("subscription plan not found")
	ErrLimitReached     = errors.New("licensed location limit reached")
	ErrAlreadyLicensed  = errors.New("location is already licensed")
	ErrLocationNotFound = errors.New("location not found")
	ErrTooManyLocations = errors.New("plan allows fewer locations than are licensed")
)

// FreeMaxLocations is how many locations an agency without a subscription may license.
const FreeMaxLocations = 1

// Subscription statuses that grant plan limits.
var activeStatuses = map[string]bool{"active": true, "trialing": true}

// Subscription is an agency's plan.
type Subscription struct {
	UserID           string                  `json:"userId"`
	Status           string                  `json:"status"`
	CurrentPeriodEnd *time.Time              `json:"currentPeriodEnd,omitempty"`
	Plan             models.SubscriptionPlan `json:"plan"`
}

// Active reports whether the subscription grants its plan limits.
func (s *Subscription) Active() bool {
	return s != nil && activeStatuses[s.Status]
}

// Limits are the effective caps of an agency.
type Limits struct {
	Plan                   string `json:"plan"`
	MaxLocations           int    `json:"maxLocations"`
	MonthlyExtractionLimit int    `json:"monthlyExtractionLimit"`
	Unlimited              bool   `json:"unlimitedExtractions"`
}

// LimitsFor resolves the caps of a subscription; inactive or missing subscriptions get
// the free tier.
func LimitsFor(sub *Subscription, freeExtractionLimit int) Limits {
	if !sub.Active() {
		return Limits{
			Plan:                   "free",
			MaxLocations:           FreeMaxLocations,
			MonthlyExtractionLimit: freeExtractionLimit,
			Unlimited:              freeExtractionLimit <= 0,
		}
	}
	return Limits{
		Plan:                   sub.Plan.Slug,
		MaxLocations:           sub.Plan.MaxLocations,
		MonthlyExtractionLimit: sub.Plan.MonthlyExtractionLimit,
		Unlimited:              sub.Plan.Unlimited(),
	}
}

// LicensedLocation is a row of licensed_locations joined with its configuration.
type LicensedLocation struct {
	LocationID   string    `json:"locationId"`
	BusinessName *string   `json:"businessName,omitempty"`
	IsActive     bool      `json:"isActive"`
	LicensedAt   time.Time `json:"licensedAt"`
}

// LocationUsage is one location's usage_tracking row for a period.
type LocationUsage struct {
	LocationID       string  `json:"locationId"`
	BusinessName     *string `json:"businessName,omitempty"`
	ExtractionsCount int     `json:"extractionsCount"`
	TokensUsed       int64   `json:"tokensUsed"`
	CostEstimate     float64 `json:"costEstimate"`
}

// ParsePeriod parses "YYYY-MM" into the first day of that month (UTC). Empty means the
// month containing now.
func ParsePeriod(s string, now time.Time) (time.Time, error) {
	if s == "" {
		now = now.UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, errors.New("month must be YYYY-MM")
	}
	return t, nil
}
