// Package extraction turns GHL conversations into contact field updates with OpenAI.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/openai"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrLocationNotFound = errors.New("location is not connected")
	ErrNotLicensed      = errors.New("location is not licensed")
	ErrQuotaExceeded    = errors.New("monthly extraction limit reached")
	ErrNoFields         = errors.New("no active extraction fields configured")
	ErrNoMessages       = errors.New("conversation has no messages")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrGHL              = errors.New("GHL request failed")
	ErrOpenAI           = errors.New("OpenAI request failed")
)

// MessageLimit caps how much conversation history goes into a prompt.
const MessageLimit = 50

// Quota is the licensing and metering state of a location for the current period.
type Quota struct {
	Licensed bool
	Limit    int // <= 0 means unlimited
	Used     int
}

// Store is the persistence the pipeline needs.
type Store interface {
	ghl.TokenStore
	GetConfiguration(ctx context.Context, locationID string) (*models.Configuration, error)
	ListActiveFields(ctx context.Context, locationID string) ([]models.ExtractionField, error)
	ListActiveRules(ctx context.Context, locationID string) ([]models.ContextualRule, error)
	ListActiveStopTriggers(ctx context.Context, locationID string) ([]models.StopTrigger, error)
	ListConversationMessages(ctx context.Context, locationID, conversationID string, limit int) ([]models.ConversationMessage, error)
	MarkConversation(ctx context.Context, locationID, conversationID string, stopped bool) error
	CheckQuota(ctx context.Context, ownerID, locationID string, periodStart time.Time) (Quota, error)
	AgencyKey(ctx context.Context, userID string) (string, error)
	InsertUsageLog(ctx context.Context, l *models.UsageLog) error
	// ReserveUsage atomically counts one extraction unless limit (> 0) is already reached.
	ReserveUsage(ctx context.Context, locationID string, periodStart time.Time, limit int) (bool, error)
	ReleaseUsage(ctx context.Context, locationID string, periodStart time.Time) error
	AddUsageCost(ctx context.Context, locationID string, periodStart time.Time, tokens int, cost float64) error
}

// CRM is the subset of the GHL client used here.
type CRM interface {
	GetContact(ctx context.Context, token, contactID string) (*ghl.Contact, error)
	UpdateContact(ctx context.Context, token, contactID string, update *ghl.ContactUpdate) error
	ListMessages(ctx context.Context, token, conversationID string, limit int) ([]ghl.Message, error)
}

// Tokens hands out valid GHL access tokens.
type Tokens interface {
	AccessToken(ctx context.Context, t ghl.StoredToken) (string, error)
}

// Completer runs JSON-mode chat completions.
type Completer interface {
	ChatJSON(ctx context.Context, req *openai.ChatRequest) (*openai.ChatResponse, error)
	DefaultModel() string
}

// KeyOpener decrypts stored agency keys.
type KeyOpener interface {
	Open(sealed string) (string, error)
}

// Service runs extractions.
type Service struct {
	store  Store
	crm    CRM
	tokens Tokens
	ai     Completer
	keys   KeyOpener
	log    *zap.Logger
	now    func() time.Time
}

// NewService wires the pipeline. keys may be nil, in which case agency keys are ignored.
func NewService(store Store, crm CRM, tokens Tokens, ai Completer, keys KeyOpener, log *zap.Logger) *Service {
	return &Service{store: store, crm: crm, tokens: tokens, ai: ai, keys: keys, log: log, now: time.Now}
}

// PeriodStart is the first day (UTC) of the metering month containing t.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Request identifies one conversation of one contact.
type Request struct {
	LocationID     string `json:"locationId"`
	ContactID      string `json:"contactId"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"-"`
}

// Result is returned by Extract.
type Result struct {
	Skipped        bool                   `json:"skipped"`
	SkipReason     string                 `json:"skipReason,omitempty"`
	ContactID      string                 `json:"contactId"`
	ExtractedData  map[string]interface{} `json:"extractedData"`
	Updated        []FieldDecision        `json:"updatedFields"`
	SkippedFields  []FieldDecision        `json:"skippedFields"`
	ContactUpdated bool                   `json:"contactUpdated"`
	Model          string                 `json:"model,omitempty"`
	Usage          openai.Usage           `json:"usage"`
	CostEstimate   float64                `json:"costEstimate"`
	UsageLogID     string                 `json:"usageLogId,omitempty"`
}

// Payload is everything that would be sent to OpenAI for a conversation.
type Payload struct {
	LocationID     string                   `json:"locationId"`
	ContactID      string                   `json:"contactId"`
	ConversationID string                   `json:"conversationId"`
	Model          string                   `json:"model"`
	SystemPrompt   string                   `json:"systemPrompt"`
	Transcript     string                   `json:"transcript"`
	Messages       []openai.Message         `json:"messages"`
	Fields         []models.ExtractionField `json:"fields"`
	CurrentValues  map[string]string        `json:"currentValues"`
	StopTrigger    string                   `json:"stopTrigger,omitempty"`
}

type run struct {
	cfg      *models.Configuration
	fields   []models.ExtractionField
	rules    []models.ContextualRule
	turns    []Turn
	stopped  string
	token    string
	contact  *ghl.Contact
	payload  *Payload
}

// prepare loads everything up to (not including) the OpenAI call.
func (s *Service) prepare(ctx context.Context, req Request, cfg *models.Configuration) (*run, error) {
	r := &run{cfg: cfg}

	fields, err := s.store.ListActiveFields(ctx, req.LocationID)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	r.fields = fields

	if r.rules, err = s.store.ListActiveRules(ctx, req.LocationID); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	stored, err := s.store.ListConversationMessages(ctx, req.LocationID, req.ConversationID, MessageLimit)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if len(stored) > 0 {
		r.turns = TurnsFromStored(stored)
		if req.ContactID == "" {
			req.ContactID = stored[len(stored)-1].ContactID
		}
		for _, m := range stored {
			if m.Stopped {
				r.stopped = "conversation previously stopped"
			}
		}
	} else {
		if err := s.loadToken(ctx, r); err != nil {
			return nil, err
		}
		msgs, err := s.crm.ListMessages(ctx, r.token, req.ConversationID, MessageLimit)
		if err != nil {
			return nil, fmt.Errorf("%w: list messages: %w", ErrGHL, err)
		}
		r.turns = TurnsFromGHL(msgs)
		if req.ContactID == "" && len(msgs) > 0 {
			req.ContactID = msgs[len(msgs)-1].ContactID
		}
	}
	if len(r.turns) == 0 {
		return nil, ErrNoMessages
	}
	if req.ContactID == "" {
		return nil, fmt.Errorf("%w: contactId is required", ErrInvalidRequest)
	}

	if r.stopped == "" {
		triggers, err := s.store.ListActiveStopTriggers(ctx, req.LocationID)
		if err != nil {
			return nil, fmt.Errorf("load stop triggers: %w", err)
		}
		if trig, ok := FirstStopTrigger(triggers, r.turns); ok {
			r.stopped = trig.TriggerPhrase
		}
	}

	// A stopped conversation loads no token or contact.
	current := make(map[string]string, len(fields))
	if r.stopped == "" {
		if err := s.loadToken(ctx, r); err != nil {
			return nil, err
		}
		contact, err := s.crm.GetContact(ctx, r.token, req.ContactID)
		if err != nil {
			return nil, fmt.Errorf("%w: get contact: %w", ErrGHL, err)
		}
		r.contact = contact
		for _, f := range fields {
			current[f.FieldName] = contact.Value(f.TargetGHLKey, f.IsCustomField)
		}
	}

	system := BuildSystemPrompt(cfg.Profile(), fields, r.rules)
	transcript := BuildTranscript(r.turns)
	r.payload = &Payload{
		LocationID:     req.LocationID,
		ContactID:      req.ContactID,
		ConversationID: req.ConversationID,
		Model:          s.ai.DefaultModel(),
		SystemPrompt:   system,
		Transcript:     transcript,
		Messages:       chatMessages(system, transcript),
		Fields:         fields,
		CurrentValues:  current,
		StopTrigger:    r.stopped,
	}
	return r, nil
}

func (s *Service) loadToken(ctx context.Context, r *run) error {
	if r.token != "" {
		return nil
	}
	token, err := s.tokens.AccessToken(ctx, storedToken(r.cfg))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGHL, err)
	}
	r.token = token
	return nil
}

// BuildPayload returns the prompt and context for a conversation without calling OpenAI.
func (s *Service) BuildPayload(ctx context.Context, req Request) (*Payload, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	cfg, err := s.store.GetConfiguration(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	r, err := s.prepare(ctx, req, cfg)
	if err != nil {
		return nil, err
	}
	return r.payload, nil
}

// GeneratedPrompt is the answer of GeneratePrompt.
type GeneratedPrompt struct {
	LocationID   string `json:"locationId"`
	SystemPrompt string `json:"systemPrompt"`
	FieldCount   int    `json:"fieldCount"`
	RuleCount    int    `json:"ruleCount"`
}

// GeneratePrompt assembles the system prompt for a location's current configuration.
func (s *Service) GeneratePrompt(ctx context.Context, locationID string) (*GeneratedPrompt, error) {
	cfg, err := s.store.GetConfiguration(ctx, locationID)
	if err != nil {
		return nil, err
	}
	fields, err := s.store.ListActiveFields(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	rules, err := s.store.ListActiveRules(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return &GeneratedPrompt{
		LocationID:   locationID,
		SystemPrompt: BuildSystemPrompt(cfg.Profile(), fields, rules),
		FieldCount:   len(fields),
		RuleCount:    len(activeRules(rules)),
	}, nil
}

// Extract runs the whole pipeline for one conversation and writes the result to GHL.
// A stop trigger skips the run without error. Failures after the location is loaded
// are recorded in ai_usage_logs with success=false.
func (s *Service) Extract(ctx context.Context, req Request) (res *Result, err error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	cfg, err := s.store.GetConfiguration(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}

	start := s.now()
	entry := &models.UsageLog{
		ID:             uuid.NewString(),
		LocationID:     req.LocationID,
		UserID:         models.NullIfEmpty(req.UserID),
		ConversationID: models.NullIfEmpty(req.ConversationID),
		ContactID:      models.NullIfEmpty(req.ContactID),
		Operation:      models.OperationExtraction,
		Model:          s.ai.DefaultModel(),
	}
	defer func() {
		if err != nil {
			s.recordFailure(ctx, entry, start, err)
		}
	}()

	period := PeriodStart(start)
	quota, err := s.store.CheckQuota(ctx, cfg.UserID, req.LocationID, period)
	if err != nil {
		return nil, fmt.Errorf("check quota: %w", err)
	}
	if !quota.Licensed {
		return nil, ErrNotLicensed
	}
	if quota.Limit > 0 && quota.Used >= quota.Limit {
		return nil, fmt.Errorf("%w (%d/%d)", ErrQuotaExceeded, quota.Used, quota.Limit)
	}

	r, err := s.prepare(ctx, req, cfg)
	if err != nil {
		return nil, err
	}
	entry.ContactID = models.NullIfEmpty(r.payload.ContactID)

	if r.stopped != "" {
		if err := s.store.MarkConversation(ctx, req.LocationID, req.ConversationID, true); err != nil {
			s.log.Warn("mark stopped conversation failed", zap.String("location_id", req.LocationID), zap.Error(err))
		}
		s.log.Info("extraction skipped by stop trigger",
			zap.String("location_id", req.LocationID),
			zap.String("conversation_id", req.ConversationID),
			zap.String("trigger", r.stopped))
		return &Result{Skipped: true, SkipReason: "stop trigger: " + r.stopped, ContactID: r.payload.ContactID}, nil
	}

	// Concurrent runs can all pass CheckQuota; the reservation is the binding limit.
	reserved, err := s.store.ReserveUsage(ctx, req.LocationID, period, quota.Limit)
	if err != nil {
		return nil, fmt.Errorf("reserve usage: %w", err)
	}
	if !reserved {
		return nil, fmt.Errorf("%w (%d/%d)", ErrQuotaExceeded, quota.Limit, quota.Limit)
	}
	defer func() {
		if err != nil {
			if rerr := s.store.ReleaseUsage(ctx, req.LocationID, period); rerr != nil {
				s.log.Error("release usage failed", zap.String("location_id", req.LocationID), zap.Error(rerr))
			}
		}
	}()

	resp, data, err := s.complete(ctx, cfg.UserID, r.payload.Messages)
	if resp != nil {
		fillUsage(entry, resp)
	}
	if err != nil {
		return nil, err
	}

	resolution := Resolve(r.fields, data, r.contact)
	updated := false
	if !resolution.Update.Empty() {
		if err := s.crm.UpdateContact(ctx, r.token, r.payload.ContactID, resolution.Update); err != nil {
			entry.ExtractedData = mustJSON(data)
			return nil, fmt.Errorf("%w: update contact: %w", ErrGHL, err)
		}
		updated = true
	}

	if err := s.store.MarkConversation(ctx, req.LocationID, req.ConversationID, false); err != nil {
		s.log.Warn("mark conversation processed failed", zap.String("location_id", req.LocationID), zap.Error(err))
	}

	entry.Success = true
	entry.ExtractedData = mustJSON(data)
	entry.UpdatedFields = mustJSON(resolution.UpdatedKeys())
	entry.DurationMS = int(s.now().Sub(start).Milliseconds())
	if err := s.store.InsertUsageLog(ctx, entry); err != nil {
		s.log.Error("insert usage log failed", zap.String("location_id", req.LocationID), zap.Error(err))
	}
	if err := s.store.AddUsageCost(ctx, req.LocationID, period, entry.TotalTokens, entry.CostEstimate); err != nil {
		s.log.Error("record usage cost failed", zap.String("location_id", req.LocationID), zap.Error(err))
	}

	s.log.Info("extraction completed",
		zap.String("location_id", req.LocationID),
		zap.String("contact_id", r.payload.ContactID),
		zap.Int("updated", len(resolution.Updated)),
		zap.Int("skipped", len(resolution.Skipped)),
		zap.Int("tokens", entry.TotalTokens))

	return &Result{
		ContactID:      r.payload.ContactID,
		ExtractedData:  data,
		Updated:        resolution.Updated,
		SkippedFields:  resolution.Skipped,
		ContactUpdated: updated,
		Model:          entry.Model,
		Usage:          resp.Usage,
		CostEstimate:   entry.CostEstimate,
		UsageLogID:     entry.ID,
	}, nil
}

// TestRequest runs an extraction against a pasted transcript.
type TestRequest struct {
	LocationID string `json:"locationId"`
	Transcript string `json:"transcript"`
	ContactID  string `json:"contactId,omitempty"`
	UserID     string `json:"-"`
}

// TestResult previews what an extraction would write.
type TestResult struct {
	SystemPrompt  string                 `json:"systemPrompt"`
	ExtractedData map[string]interface{} `json:"extractedData"`
	WouldUpdate   []FieldDecision        `json:"wouldUpdate"`
	SkippedFields []FieldDecision        `json:"skippedFields"`
	Payload       *ghl.ContactUpdate     `json:"payload"`
	Model         string                 `json:"model"`
	Usage         openai.Usage           `json:"usage"`
	CostEstimate  float64                `json:"costEstimate"`
}

// TestExtraction calls OpenAI with the location's prompt and a sample transcript. GHL is
// only read (when a contact is given), never written; usage is logged but not metered.
func (s *Service) TestExtraction(ctx context.Context, req TestRequest) (res *TestResult, err error) {
	if req.LocationID == "" || req.Transcript == "" {
		return nil, fmt.Errorf("%w: locationId and transcript are required", ErrInvalidRequest)
	}
	cfg, err := s.store.GetConfiguration(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}

	start := s.now()
	entry := &models.UsageLog{
		ID:         uuid.NewString(),
		LocationID: req.LocationID,
		UserID:     models.NullIfEmpty(req.UserID),
		ContactID:  models.NullIfEmpty(req.ContactID),
		Operation:  models.OperationTestExtraction,
		Model:      s.ai.DefaultModel(),
	}
	defer func() {
		if err != nil {
			s.recordFailure(ctx, entry, start, err)
		}
	}()

	fields, err := s.store.ListActiveFields(ctx, req.LocationID)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	rules, err := s.store.ListActiveRules(ctx, req.LocationID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	var contact *ghl.Contact
	if req.ContactID != "" {
		token, err := s.tokens.AccessToken(ctx, storedToken(cfg))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGHL, err)
		}
		if contact, err = s.crm.GetContact(ctx, token, req.ContactID); err != nil {
			return nil, fmt.Errorf("%w: get contact: %w", ErrGHL, err)
		}
	}

	system := BuildSystemPrompt(cfg.Profile(), fields, rules)
	resp, data, err := s.complete(ctx, cfg.UserID, chatMessages(system, req.Transcript))
	if resp != nil {
		fillUsage(entry, resp)
	}
	if err != nil {
		return nil, err
	}

	resolution := Resolve(fields, data, contact)
	entry.Success = true
	entry.ExtractedData = mustJSON(data)
	entry.UpdatedFields = mustJSON(resolution.UpdatedKeys())
	entry.DurationMS = int(s.now().Sub(start).Milliseconds())
	if err := s.store.InsertUsageLog(ctx, entry); err != nil {
		s.log.Error("insert usage log failed", zap.String("location_id", req.LocationID), zap.Error(err))
	}

	return &TestResult{
		SystemPrompt:  system,
		ExtractedData: data,
		WouldUpdate:   resolution.Updated,
		SkippedFields: resolution.Skipped,
		Payload:       resolution.Update,
		Model:         entry.Model,
		Usage:         resp.Usage,
		CostEstimate:  entry.CostEstimate,
	}, nil
}

// UpdateRequest applies already-extracted data to a contact.
type UpdateRequest struct {
	LocationID    string                 `json:"locationId"`
	ContactID     string                 `json:"contactId"`
	ExtractedData map[string]interface{} `json:"extractedData"`
}

// UpdateResult reports the applied changes.
type UpdateResult struct {
	ContactID      string          `json:"contactId"`
	ContactUpdated bool            `json:"contactUpdated"`
	Updated        []FieldDecision `json:"updatedFields"`
	SkippedFields  []FieldDecision `json:"skippedFields"`
}

// UpdateContact resolves overwrite policies for the supplied data and PUTs the result.
func (s *Service) UpdateContact(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	if req.LocationID == "" || req.ContactID == "" {
		return nil, fmt.Errorf("%w: locationId and contactId are required", ErrInvalidRequest)
	}
	if len(req.ExtractedData) == 0 {
		return nil, fmt.Errorf("%w: extractedData is empty", ErrInvalidRequest)
	}
	cfg, err := s.store.GetConfiguration(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	fields, err := s.store.ListActiveFields(ctx, req.LocationID)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	token, err := s.tokens.AccessToken(ctx, storedToken(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGHL, err)
	}
	contact, err := s.crm.GetContact(ctx, token, req.ContactID)
	if err != nil {
		return nil, fmt.Errorf("%w: get contact: %w", ErrGHL, err)
	}

	resolution := Resolve(fields, req.ExtractedData, contact)
	out := &UpdateResult{ContactID: req.ContactID, Updated: resolution.Updated, SkippedFields: resolution.Skipped}
	if resolution.Update.Empty() {
		return out, nil
	}
	if err := s.crm.UpdateContact(ctx, token, req.ContactID, resolution.Update); err != nil {
		return nil, fmt.Errorf("%w: update contact: %w", ErrGHL, err)
	}
	out.ContactUpdated = true
	return out, nil
}

// GetContact reads a contact with the location's token.
func (s *Service) GetContact(ctx context.Context, locationID, contactID string) (*ghl.Contact, error) {
	if locationID == "" || contactID == "" {
		return nil, fmt.Errorf("%w: locationId and contactId are required", ErrInvalidRequest)
	}
	cfg, err := s.store.GetConfiguration(ctx, locationID)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.AccessToken(ctx, storedToken(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGHL, err)
	}
	contact, err := s.crm.GetContact(ctx, token, contactID)
	if err != nil {
		return nil, fmt.Errorf("%w: get contact: %w", ErrGHL, err)
	}
	return contact, nil
}

// complete calls OpenAI with the agency key when one is stored, and decodes the JSON answer.
func (s *Service) complete(ctx context.Context, ownerID string, msgs []openai.Message) (*openai.ChatResponse, map[string]interface{}, error) {
	resp, err := s.ai.ChatJSON(ctx, &openai.ChatRequest{
		APIKey:      s.agencyKey(ctx, ownerID),
		Messages:    msgs,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrOpenAI, err)
	}
	data, err := openai.DecodeObject(resp.Content)
	if err != nil {
		return resp, nil, fmt.Errorf("%w: %v", ErrOpenAI, err)
	}
	return resp, data, nil
}

func (s *Service) agencyKey(ctx context.Context, userID string) string {
	if s.keys == nil || userID == "" {
		return ""
	}
	sealed, err := s.store.AgencyKey(ctx, userID)
	if err != nil {
		s.log.Warn("load agency key failed, using platform key", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	if sealed == "" {
		return ""
	}
	key, err := s.keys.Open(sealed)
	if err != nil {
		s.log.Warn("decrypt agency key failed, using platform key", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	return key
}

func (s *Service) recordFailure(ctx context.Context, entry *models.UsageLog, start time.Time, cause error) {
	msg := cause.Error()
	entry.Success = false
	entry.ErrorMessage = &msg
	entry.DurationMS = int(s.now().Sub(start).Milliseconds())
	if err := s.store.InsertUsageLog(ctx, entry); err != nil {
		s.log.Error("insert failed usage log", zap.String("location_id", entry.LocationID), zap.Error(err))
	}
	s.log.Warn("extraction failed",
		zap.String("location_id", entry.LocationID),
		zap.String("operation", entry.Operation),
		zap.Error(cause))
}

func fillUsage(entry *models.UsageLog, resp *openai.ChatResponse) {
	entry.Model = resp.Model
	entry.PromptTokens = resp.Usage.PromptTokens
	entry.CompletionTokens = resp.Usage.CompletionTokens
	entry.TotalTokens = resp.Usage.TotalTokens
	entry.CostEstimate = openai.EstimateCost(resp.Model, resp.Usage)
}

func chatMessages(system, transcript string) []openai.Message {
	return []openai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: "Conversation:\n" + transcript},
	}
}

func storedToken(cfg *models.Configuration) ghl.StoredToken {
	return ghl.StoredToken{
		LocationID:   cfg.LocationID,
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		ExpiresAt:    cfg.TokenExpiresAt,
	}
}

func validate(req Request) error {
	if req.LocationID == "" || req.ConversationID == "" {
		return fmt.Errorf("%w: locationId and conversationId are required", ErrInvalidRequest)
	}
	return nil
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
