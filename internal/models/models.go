// Package models holds the Postgres row types shared across handlers.
package models

import (
	"encoding/json"
	"time"
)

// OverwritePolicy controls whether an extracted value may replace a contact value.
type OverwritePolicy string

const (
	PolicyAlways    OverwritePolicy = "always"
	PolicyNever     OverwritePolicy = "never"
	PolicyOnlyEmpty OverwritePolicy = "only_empty"
)

// Valid reports whether p is one of the known policies.
func (p OverwritePolicy) Valid() bool {
	switch p {
	case PolicyAlways, PolicyNever, PolicyOnlyEmpty:
		return true
	}
	return false
}

// FieldType is the value type an extraction field is normalized to.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldDate    FieldType = "date"
	FieldEmail   FieldType = "email"
	FieldPhone   FieldType = "phone"
	FieldBoolean FieldType = "boolean"
	FieldSelect  FieldType = "select"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldDate, FieldEmail, FieldPhone, FieldBoolean, FieldSelect:
		return true
	}
	return false
}

// Configuration is a row of ghl_configurations: one installed GHL location.
type Configuration struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	LocationID          string    `json:"locationId"`
	CompanyID           *string   `json:"companyId,omitempty"`
	AccessToken         string    `json:"-"`
	RefreshToken        string    `json:"-"`
	TokenExpiresAt      time.Time `json:"tokenExpiresAt"`
	Scopes              *string   `json:"scopes,omitempty"`
	BusinessName        *string   `json:"businessName,omitempty"`
	BusinessDescription *string   `json:"businessDescription,omitempty"`
	BusinessContext     *string   `json:"businessContext,omitempty"`
	TargetAudience      *string   `json:"targetAudience,omitempty"`
	ServicesOffered     *string   `json:"servicesOffered,omitempty"`
	AutoExtract         bool      `json:"autoExtract"`
	IsActive            bool      `json:"isActive"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// BusinessProfile is the part of a configuration fed into the prompt.
type BusinessProfile struct {
	Name        string
	Description string
	Context     string
	Audience    string
	Services    string
}

// Profile flattens the nullable business columns.
func (c *Configuration) Profile() BusinessProfile {
	return BusinessProfile{
		Name:        deref(c.BusinessName),
		Description: deref(c.BusinessDescription),
		Context:     deref(c.BusinessContext),
		Audience:    deref(c.TargetAudience),
		Services:    deref(c.ServicesOffered),
	}
}

// ExtractionField is a row of data_extraction_fields.
type ExtractionField struct {
	ID              string          `json:"id"`
	LocationID      string          `json:"locationId"`
	FieldName       string          `json:"fieldName"`
	Description     *string         `json:"description,omitempty"`
	TargetGHLKey    string          `json:"targetGhlKey"`
	FieldType       FieldType       `json:"fieldType"`
	PicklistOptions []string        `json:"picklistOptions"`
	IsCustomField   bool            `json:"isCustomField"`
	IsRequired      bool            `json:"isRequired"`
	OverwritePolicy OverwritePolicy `json:"overwritePolicy"`
	SortOrder       int             `json:"sortOrder"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ContextualRule is a row of contextual_rules.
type ContextualRule struct {
	ID              string    `json:"id"`
	LocationID      string    `json:"locationId"`
	RuleName        string    `json:"ruleName"`
	RuleDescription string    `json:"ruleDescription"`
	Priority        int       `json:"priority"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Stop trigger match types.
const (
	MatchContains = "contains"
	MatchExact    = "exact"
)

// StopTrigger is a row of stop_triggers.
type StopTrigger struct {
	ID            string    `json:"id"`
	LocationID    string    `json:"locationId"`
	TriggerPhrase string    `json:"triggerPhrase"`
	MatchType     string    `json:"matchType"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Message directions as GHL reports them.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// ConversationMessage is a row of ghl_conversations.
type ConversationMessage struct {
	ID             string          `json:"id"`
	LocationID     string          `json:"locationId"`
	ConversationID string          `json:"conversationId"`
	ContactID      string          `json:"contactId"`
	MessageID      *string         `json:"messageId,omitempty"`
	EventType      string          `json:"eventType"`
	Direction      string          `json:"direction"`
	MessageType    *string         `json:"messageType,omitempty"`
	Body           string          `json:"body"`
	RawPayload     json.RawMessage `json:"-"`
	Processed      bool            `json:"processed"`
	Stopped        bool            `json:"stopped"`
	ReceivedAt     time.Time       `json:"receivedAt"`
}

// Usage log operations.
const (
	OperationExtraction     = "extraction"
	OperationTestExtraction = "test_extraction"
)

// UsageLog is a row of ai_usage_logs.
type UsageLog struct {
	ID               string          `json:"id"`
	LocationID       string          `json:"locationId"`
	UserID           *string         `json:"userId,omitempty"`
	ConversationID   *string         `json:"conversationId,omitempty"`
	ContactID        *string         `json:"contactId,omitempty"`
	Operation        string          `json:"operation"`
	Model            string          `json:"model"`
	PromptTokens     int             `json:"promptTokens"`
	CompletionTokens int             `json:"completionTokens"`
	TotalTokens      int             `json:"totalTokens"`
	CostEstimate     float64         `json:"costEstimate"`
	Success          bool            `json:"success"`
	ErrorMessage     *string         `json:"errorMessage,omitempty"`
	ExtractedData    json.RawMessage `json:"extractedData,omitempty"`
	UpdatedFields    json.RawMessage `json:"updatedFields,omitempty"`
	DurationMS       int             `json:"durationMs"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// SubscriptionPlan is a row of subscription_plans.
type SubscriptionPlan struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Slug                   string `json:"slug"`
	MonthlyPriceCents      int    `json:"monthlyPriceCents"`
	MaxLocations           int    `json:"maxLocations"`
	MonthlyExtractionLimit int    `json:"monthlyExtractionLimit"`
	IsActive               bool   `json:"isActive"`
}

// Unlimited reports whether the plan has no monthly extraction cap.
func (p SubscriptionPlan) Unlimited() bool {
	return p.MonthlyExtractionLimit <= 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NullIfEmpty returns nil for "" so optional columns stay NULL.
func NullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
