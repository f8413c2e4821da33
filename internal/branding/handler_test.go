package branding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ghl-extractor-backend/internal/auth"

	"go.uber.org/zap"
)

func str(s string) *string { return &s }

func TestBranding_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		in      Branding
		wantErr bool
	}{
		{"empty", Branding{}, false},
		{"short hex", Branding{PrimaryColor: str("#fff")}, false},
		{"long hex", Branding{PrimaryColor: str("#1A2b3c"), SecondaryColor: str(" #000000 ")}, false},
		{"named color", Branding{PrimaryColor: str("red")}, true},
		{"missing hash", Branding{SecondaryColor: str("ffffff")}, true},
		{"email", Branding{SupportEmail: str("help@agency.io")}, false},
		{"bad email", Branding{SupportEmail: str("help at agency")}, true},
		{"domain with scheme", Branding{CustomDomain: str("https://crm.agency.io")}, true},
		{"domain", Branding{CustomDomain: str("CRM.Agency.io")}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.in
			err := b.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestBranding_ValidateNormalizes(t *testing.T) {
	b := Branding{CompanyName: str("   "), CustomDomain: str(" CRM.Agency.io ")}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if b.CompanyName != nil {
		t.Errorf("blank company name should become nil, got %q", *b.CompanyName)
	}
	if b.CustomDomain == nil || *b.CustomDomain != "crm.agency.io" {
		t.Errorf("domain = %v", b.CustomDomain)
	}
}

type memStore map[string]*Branding

func (m memStore) Get(ctx context.Context, userID string) (*Branding, error) {
	if b, ok := m[userID]; ok {
		return b, nil
	}
	return &Branding{}, nil
}

func (m memStore) Save(ctx context.Context, userID string, b *Branding) (*Branding, error) {
	m[userID] = b
	return b, nil
}

func TestHandler_SaveAndGet(t *testing.T) {
	store := memStore{}
	h := NewHandler(store, zap.NewNop())

	req := httptest.NewRequest(http.MethodPut, "/branding", strings.NewReader(`{"companyName":"Acme","primaryColor":"#123456"}`))
	req = req.WithContext(auth.WithUserID(req.Context(), "agency-1"))
	rec := httptest.NewRecorder()
	h.Save(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("save = %d (%s)", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/branding", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), "agency-1"))
	rec = httptest.NewRecorder()
	h.Get(rec, req)

	var got Branding
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CompanyName == nil || *got.CompanyName != "Acme" || *got.PrimaryColor != "#123456" {
		t.Errorf("branding = %+v", got)
	}

	req = httptest.NewRequest(http.MethodPut, "/branding", strings.NewReader(`{"primaryColor":"blue"}`))
	req = req.WithContext(auth.WithUserID(req.Context(), "agency-1"))
	rec = httptest.NewRecorder()
	h.Save(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid color = %d, want 400", rec.Code)
	}
}
