package extraction

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/openai"

	"go.uber.org/zap"
)

type fakeStore struct {
	cfg       *models.Configuration
	fields    []models.ExtractionField
	rules     []models.ContextualRule
	triggers  []models.StopTrigger
	messages  []models.ConversationMessage
	quota     Quota
	agencyKey string

	logs      []*models.UsageLog
	increment int
	costed    int
	marked    map[string]bool
}

func (s *fakeStore) SaveTokens(ctx context.Context, locationID, access, refresh string, expiresAt time.Time) error {
	return nil
}

func (s *fakeStore) LoadTokens(ctx context.Context, locationID string) (ghl.StoredToken, error) {
	return ghl.StoredToken{}, nil
}

func (s *fakeStore) GetConfiguration(ctx context.Context, locationID string) (*models.Configuration, error) {
	if s.cfg == nil || s.cfg.LocationID != locationID {
		return nil, ErrLocationNotFound
	}
	return s.cfg, nil
}

func (s *fakeStore) ListActiveFields(ctx context.Context, locationID string) ([]models.ExtractionField, error) {
	return s.fields, nil
}

func (s *fakeStore) ListActiveRules(ctx context.Context, locationID string) ([]models.ContextualRule, error) {
	return s.rules, nil
}

func (s *fakeStore) ListActiveStopTriggers(ctx context.Context, locationID string) ([]models.StopTrigger, error) {
	return s.triggers, nil
}

func (s *fakeStore) ListConversationMessages(ctx context.Context, locationID, conversationID string, limit int) ([]models.ConversationMessage, error) {
	return s.messages, nil
}

func (s *fakeStore) MarkConversation(ctx context.Context, locationID, conversationID string, stopped bool) error {
	if s.marked == nil {
		s.marked = map[string]bool{}
	}
	s.marked[conversationID] = stopped
	return nil
}

func (s *fakeStore) CheckQuota(ctx context.Context, ownerID, locationID string, periodStart time.Time) (Quota, error) {
	return s.quota, nil
}

func (s *fakeStore) AgencyKey(ctx context.Context, userID string) (string, error) {
	return s.agencyKey, nil
}

func (s *fakeStore) InsertUsageLog(ctx context.Context, l *models.UsageLog) error {
	s.logs = append(s.logs, l)
	return nil
}

func (s *fakeStore) ReserveUsage(ctx context.Context, locationID string, periodStart time.Time, limit int) (bool, error) {
	if limit > 0 && s.quota.Used+s.increment >= limit {
		return false, nil
	}
	s.increment++
	return true, nil
}

func (s *fakeStore) ReleaseUsage(ctx context.Context, locationID string, periodStart time.Time) error {
	s.increment--
	return nil
}

func (s *fakeStore) AddUsageCost(ctx context.Context, locationID string, periodStart time.Time, tokens int, cost float64) error {
	s.costed++
	return nil
}

type fakeCRM struct {
	contact  *ghl.Contact
	messages []ghl.Message
	updates  []*ghl.ContactUpdate
	listed   int
}

func (c *fakeCRM) GetContact(ctx context.Context, token, contactID string) (*ghl.Contact, error) {
	if c.contact == nil || c.contact.ID != contactID {
		return nil, ghl.ErrNotFound
	}
	return c.contact, nil
}

func (c *fakeCRM) UpdateContact(ctx context.Context, token, contactID string, update *ghl.ContactUpdate) error {
	c.updates = append(c.updates, update)
	return nil
}

func (c *fakeCRM) ListMessages(ctx context.Context, token, conversationID string, limit int) ([]ghl.Message, error) {
	c.listed++
	return c.messages, nil
}

type staticTokens string

func (t staticTokens) AccessToken(ctx context.Context, st ghl.StoredToken) (string, error) {
	return string(t), nil
}

type fakeAI struct {
	content string
	err     error
	calls   []*openai.ChatRequest
}

func (a *fakeAI) ChatJSON(ctx context.Context, req *openai.ChatRequest) (*openai.ChatResponse, error) {
	a.calls = append(a.calls, req)
	if a.err != nil {
		return nil, a.err
	}
	return &openai.ChatResponse{
		Model:   "gpt-4o-mini",
		Content: a.content,
		Usage:   openai.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}, nil
}

func (a *fakeAI) DefaultModel() string { return "gpt-4o-mini" }

type prefixOpener struct{}

func (prefixOpener) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", errors.New("empty")
	}
	return "opened-" + sealed, nil
}

func newFixture() (*fakeStore, *fakeCRM, *fakeAI) {
	store := &fakeStore{
		cfg: &models.Configuration{
			UserID:         "owner-1",
			LocationID:     "loc-1",
			AccessToken:    "tok",
			TokenExpiresAt: time.Now().Add(time.Hour),
			IsActive:       true,
		},
		fields: testFields()[:3],
		messages: []models.ConversationMessage{
			{ConversationID: "conv-1", ContactID: "c-1", Direction: models.DirectionInbound, Body: "Hi, I'm Grace, grace@example.com, budget 7500"},
		},
		quota: Quota{Licensed: true, Limit: 100, Used: 3},
	}
	crm := &fakeCRM{contact: testContact()}
	ai := &fakeAI{content: `{"first_name":"Grace","email":"Grace@Example.com","budget":7500}`}
	return store, crm, ai
}

func newTestService(store *fakeStore, crm *fakeCRM, ai *fakeAI) *Service {
	return NewService(store, crm, staticTokens("tok"), ai, prefixOpener{}, zap.NewNop())
}

func TestExtract(t *testing.T) {
	store, crm, ai := newFixture()
	svc := newTestService(store, crm, ai)

	res, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1", UserID: "owner-1"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if res.Skipped || !res.ContactUpdated || res.ContactID != "c-1" {
		t.Fatalf("result = %+v", res)
	}
	if len(crm.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(crm.updates))
	}
	update := crm.updates[0]
	if _, ok := update.Standard["firstName"]; ok {
		t.Error("firstName (policy never) was written")
	}
	if update.Standard["email"] != "grace@example.com" {
		t.Errorf("email = %v", update.Standard["email"])
	}
	if len(update.CustomFields) != 1 || update.CustomFields[0].FieldValue != "7500" {
		t.Errorf("customFields = %+v", update.CustomFields)
	}

	if len(ai.calls) != 1 || ai.calls[0].Temperature != 0.1 || len(ai.calls[0].Messages) != 2 {
		t.Fatalf("openai calls = %+v", ai.calls)
	}
	if len(store.logs) != 1 || !store.logs[0].Success || store.logs[0].Operation != models.OperationExtraction {
		t.Fatalf("usage logs = %+v", store.logs)
	}
	if store.logs[0].TotalTokens != 120 || store.logs[0].CostEstimate <= 0 {
		t.Errorf("log usage = %d tokens, $%f", store.logs[0].TotalTokens, store.logs[0].CostEstimate)
	}
	if store.increment != 1 || store.costed != 1 {
		t.Errorf("reserved = %d, costed = %d, want 1 and 1", store.increment, store.costed)
	}
	if stopped, ok := store.marked["conv-1"]; !ok || stopped {
		t.Errorf("conversation marked = %v (present %v), want processed not stopped", stopped, ok)
	}
}

func TestExtract_AgencyKey(t *testing.T) {
	store, crm, ai := newFixture()
	store.agencyKey = "sealed"
	svc := newTestService(store, crm, ai)

	if _, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := ai.calls[0].APIKey; got != "opened-sealed" {
		t.Errorf("APIKey = %q, want the agency key", got)
	}
}

func TestExtract_Refusals(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(*fakeStore)
		want  error
		logs  int
	}{
		{"unknown location", func(s *fakeStore) { s.cfg.LocationID = "other" }, ErrLocationNotFound, 0},
		{"not licensed", func(s *fakeStore) { s.quota.Licensed = false }, ErrNotLicensed, 1},
		{"quota exceeded", func(s *fakeStore) { s.quota.Used = 100 }, ErrQuotaExceeded, 1},
		{"no fields", func(s *fakeStore) { s.fields = nil }, ErrNoFields, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, crm, ai := newFixture()
			tc.setup(store)
			svc := newTestService(store, crm, ai)

			_, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if len(ai.calls) != 0 {
				t.Error("OpenAI was called")
			}
			if len(store.logs) != tc.logs {
				t.Fatalf("usage logs = %d, want %d", len(store.logs), tc.logs)
			}
			if tc.logs > 0 && (store.logs[0].Success || store.logs[0].ErrorMessage == nil) {
				t.Errorf("failure log = %+v", store.logs[0])
			}
		})
	}
}

func TestExtract_UnlimitedPlan(t *testing.T) {
	store, crm, ai := newFixture()
	store.quota = Quota{Licensed: true, Limit: 0, Used: 1_000_000}
	svc := newTestService(store, crm, ai)

	if _, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
}

func TestExtract_StopTrigger(t *testing.T) {
	store, crm, ai := newFixture()
	store.triggers = []models.StopTrigger{{TriggerPhrase: "budget", MatchType: models.MatchContains, IsActive: true}}
	svc := newTestService(store, crm, ai)

	res, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped", res)
	}
	if len(ai.calls) != 0 || len(crm.updates) != 0 {
		t.Error("stopped conversation reached OpenAI or GHL")
	}
	if !store.marked["conv-1"] {
		t.Error("conversation not marked stopped")
	}
	if store.increment != 0 {
		t.Error("skipped extraction was metered")
	}
}

func TestExtract_ReservationHoldsLastSlot(t *testing.T) {
	store, crm, ai := newFixture()
	store.quota = Quota{Licensed: true, Limit: 100, Used: 99}
	svc := newTestService(store, crm, ai)

	if _, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"}); err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	// CheckQuota still reports 99 used, as a concurrent caller would have seen it.
	_, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("second Extract err = %v, want ErrQuotaExceeded", err)
	}
	if len(ai.calls) != 1 || store.increment != 1 {
		t.Errorf("OpenAI calls = %d, reserved = %d, want 1 and 1", len(ai.calls), store.increment)
	}
}

type failingTokens struct{}

func (failingTokens) AccessToken(ctx context.Context, st ghl.StoredToken) (string, error) {
	return "", ghl.ErrNoRefreshToken
}

func TestExtract_StoppedConversationSkipsGHL(t *testing.T) {
	store, crm, ai := newFixture()
	store.messages[0].Stopped = true
	crm.contact = nil
	svc := NewService(store, crm, failingTokens{}, ai, prefixOpener{}, zap.NewNop())

	res, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped", res)
	}
	if len(store.logs) != 0 {
		t.Errorf("skip wrote %d usage logs, want none", len(store.logs))
	}
	if len(ai.calls) != 0 {
		t.Error("stopped conversation reached OpenAI")
	}
}

func TestExtract_ContactNotFound(t *testing.T) {
	store, crm, ai := newFixture()
	crm.contact = nil
	svc := newTestService(store, crm, ai)

	_, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"})
	if !errors.Is(err, ErrGHL) || !errors.Is(err, ghl.ErrNotFound) {
		t.Fatalf("err = %v, want ErrGHL wrapping ghl.ErrNotFound", err)
	}
	if status, _ := StatusFor(err); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestExtract_OpenAIFailure(t *testing.T) {
	store, crm, ai := newFixture()
	ai.err = errors.New("openai: 500 boom")
	svc := newTestService(store, crm, ai)

	_, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"})
	if !errors.Is(err, ErrOpenAI) {
		t.Fatalf("err = %v, want ErrOpenAI", err)
	}
	if len(store.logs) != 1 || store.logs[0].Success {
		t.Fatalf("usage logs = %+v", store.logs)
	}
	if len(crm.updates) != 0 || store.increment != 0 {
		t.Error("failed extraction wrote to GHL or was metered")
	}
}

func TestExtract_InvalidJSON(t *testing.T) {
	store, crm, ai := newFixture()
	ai.content = "sorry, I can't"
	svc := newTestService(store, crm, ai)

	_, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"})
	if !errors.Is(err, ErrOpenAI) {
		t.Fatalf("err = %v, want ErrOpenAI", err)
	}
	if len(store.logs) != 1 || store.logs[0].TotalTokens != 120 {
		t.Errorf("failure log should keep token usage: %+v", store.logs)
	}
}

func TestExtract_FallsBackToGHLMessages(t *testing.T) {
	store, crm, ai := newFixture()
	store.messages = nil
	crm.messages = []ghl.Message{
		{ContactID: "c-1", Direction: models.DirectionInbound, Body: "I'm Grace", DateAdded: "2024-03-15T09:30:00Z"},
	}
	svc := newTestService(store, crm, ai)

	res, err := svc.Extract(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if crm.listed != 1 {
		t.Errorf("ListMessages calls = %d, want 1", crm.listed)
	}
	if res.ContactID != "c-1" {
		t.Errorf("contact = %q", res.ContactID)
	}
}

func TestExtract_Validation(t *testing.T) {
	store, crm, ai := newFixture()
	svc := newTestService(store, crm, ai)

	_, err := svc.Extract(context.Background(), Request{LocationID: "loc-1"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestBuildPayload(t *testing.T) {
	store, crm, ai := newFixture()
	svc := newTestService(store, crm, ai)

	p, err := svc.BuildPayload(context.Background(), Request{LocationID: "loc-1", ConversationID: "conv-1"})
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	if len(ai.calls) != 0 {
		t.Error("BuildPayload called OpenAI")
	}
	if p.ContactID != "c-1" || len(p.Messages) != 2 || p.CurrentValues["first_name"] != "Ada" {
		t.Errorf("payload = %+v", p)
	}
}

func TestTestExtraction(t *testing.T) {
	store, crm, ai := newFixture()
	store.quota.Licensed = false
	svc := newTestService(store, crm, ai)

	res, err := svc.TestExtraction(context.Background(), TestRequest{
		LocationID: "loc-1",
		Transcript: "Contact: I'm Grace, grace@example.com",
		ContactID:  "c-1",
	})
	if err != nil {
		t.Fatalf("TestExtraction: %v", err)
	}
	if len(crm.updates) != 0 {
		t.Error("test extraction wrote to GHL")
	}
	if store.increment != 0 {
		t.Error("test extraction was metered")
	}
	if len(store.logs) != 1 || store.logs[0].Operation != models.OperationTestExtraction {
		t.Fatalf("usage logs = %+v", store.logs)
	}
	if len(res.WouldUpdate) != 2 || res.Payload.Empty() {
		t.Errorf("would update = %+v", res.WouldUpdate)
	}
}

func TestUpdateContact(t *testing.T) {
	store, crm, ai := newFixture()
	svc := newTestService(store, crm, ai)

	res, err := svc.UpdateContact(context.Background(), UpdateRequest{
		LocationID:    "loc-1",
		ContactID:     "c-1",
		ExtractedData: map[string]interface{}{"first_name": "Grace", "email": "grace@example.com"},
	})
	if err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if !res.ContactUpdated || len(res.Updated) != 1 || res.Updated[0].FieldName != "email" {
		t.Errorf("result = %+v", res)
	}

	_, err = svc.UpdateContact(context.Background(), UpdateRequest{LocationID: "loc-1", ContactID: "c-1"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty data err = %v", err)
	}
}

func TestPeriodStart(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	got := PeriodStart(time.Date(2024, 3, 1, 5, 0, 0, 0, loc))
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("PeriodStart = %v, want %v", got, want)
	}
}
