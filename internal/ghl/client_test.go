package ghl

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_GetContact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts/c-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Version") != DefaultVersion {
			t.Errorf("Version = %q", r.Header.Get("Version"))
		}
		w.Write([]byte(`{"contact":{"id":"c-1","locationId":"loc-1","firstName":"Ada","email":"",
			"customFields":[{"id":"cf-budget","value":"5000"},{"id":"cf-count","value":3}]}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", time.Second)
	contact, err := c.GetContact(context.Background(), "tok", "c-1")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if contact.ID != "c-1" || contact.LocationID != "loc-1" {
		t.Errorf("ids = %q/%q", contact.ID, contact.LocationID)
	}
	if got := contact.Value("firstName", false); got != "Ada" {
		t.Errorf("firstName = %q", got)
	}
	if got := contact.Value("email", false); got != "" {
		t.Errorf("email = %q, want empty", got)
	}
	if got := contact.Value("cf-budget", true); got != "5000" {
		t.Errorf("cf-budget = %q", got)
	}
	if got := contact.Value("cf-count", true); got != "3" {
		t.Errorf("cf-count = %q", got)
	}
	if got := contact.Value("cf-missing", true); got != "" {
		t.Errorf("cf-missing = %q", got)
	}
}

func TestClient_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, func(err error) bool { return errors.Is(err, ErrNotFound) }},
		{"unauthorized", http.StatusUnauthorized, func(err error) bool { return errors.Is(err, ErrUnauthorized) }},
		{"server error", http.StatusInternalServerError, func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Status == 500
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"message":"boom"}`))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "", time.Second).GetContact(context.Background(), "tok", "c-1")
			if err == nil || !tc.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestClient_UpdateContact(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"succeded":true}`))
	}))
	defer server.Close()

	update := NewContactUpdate()
	update.Set("email", false, "ada@example.com")
	update.Set("cf-budget", true, "5000")
	update.Set("cf-budget", true, "6000")

	if err := NewClient(server.URL, "", time.Second).UpdateContact(context.Background(), "tok", "c-1", update); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if got["email"] != "ada@example.com" {
		t.Errorf("email = %v", got["email"])
	}
	cfs, ok := got["customFields"].([]interface{})
	if !ok || len(cfs) != 1 {
		t.Fatalf("customFields = %v", got["customFields"])
	}
	cf := cfs[0].(map[string]interface{})
	if cf["id"] != "cf-budget" || cf["field_value"] != "6000" {
		t.Errorf("custom field = %v", cf)
	}
}

func TestContactUpdate_EmptyOmitsCustomFields(t *testing.T) {
	u := NewContactUpdate()
	if !u.Empty() {
		t.Error("new update should be empty")
	}
	u.Set("firstName", false, "Ada")
	b, _ := json.Marshal(u)
	if string(b) != `{"firstName":"Ada"}` {
		t.Errorf("json = %s", b)
	}
}

func TestClient_ListMessages_OldestFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "20" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(`{"messages":{"lastMessageId":"m2","messages":[
			{"id":"m2","body":"second","direction":"outbound","dateAdded":"2024-05-01T10:05:00Z"},
			{"id":"m1","body":"first","direction":"inbound","dateAdded":"2024-05-01T10:00:00Z"}]}}`))
	}))
	defer server.Close()

	msgs, err := NewClient(server.URL, "", time.Second).ListMessages(context.Background(), "tok", "conv-1", 20)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].Time().IsZero() {
		t.Error("dateAdded should parse")
	}
}

func TestStringify(t *testing.T) {
	testCases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"  padded ", "padded"},
		{float64(42), "42"},
		{1.5, "1.5"},
		{true, "true"},
		{[]interface{}{"a", "", "b"}, "a, b"},
	}
	for _, tc := range testCases {
		if got := Stringify(tc.in); got != tc.want {
			t.Errorf("Stringify(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
