package openai

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_DefaultModel(t *testing.T) {
	c := NewClient("key", "", "", 0)
	if c.DefaultModel() != "gpt-4o-mini" {
		t.Errorf("DefaultModel = %s", c.DefaultModel())
	}
}

func TestClient_ChatJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer agency-key" {
			t.Errorf("Authorization = %q, want the per-request key", r.Header.Get("Authorization"))
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		rf, _ := body["response_format"].(map[string]any)
		if rf["type"] != "json_object" {
			t.Errorf("response_format = %v", body["response_format"])
		}
		if body["model"] != "gpt-4o-mini" {
			t.Errorf("model = %v", body["model"])
		}
		w.Write([]byte(`{"model":"gpt-4o-mini-2024-07-18","choices":[{"message":{"role":"assistant",
			"content":"{\"email\":\"ada@example.com\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":100,"completion_tokens":20,"total_tokens":120}}`))
	}))
	defer server.Close()

	c := NewClient("platform-key", server.URL, "", time.Second)
	resp, err := c.ChatJSON(context.Background(), &ChatRequest{
		APIKey:   "agency-key",
		Messages: []Message{{Role: "system", Content: "extract"}, {Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if resp.Model != "gpt-4o-mini-2024-07-18" || resp.Usage.TotalTokens != 120 {
		t.Errorf("resp = %+v", resp)
	}

	obj, err := DecodeObject(resp.Content)
	if err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	if obj["email"] != "ada@example.com" {
		t.Errorf("email = %v", obj["email"])
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	_, err := NewClient("bad", server.URL, "", time.Second).ChatJSON(context.Background(), &ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("err = %v", err)
	}
}

func TestClient_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := NewClient("k", server.URL, "", time.Second).ChatJSON(context.Background(), &ChatRequest{})
	if err != ErrEmptyResponse {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestClient_NoKey(t *testing.T) {
	if _, err := NewClient("", "http://unused", "", time.Second).ChatJSON(context.Background(), &ChatRequest{}); err == nil {
		t.Error("expected error without any API key")
	}
}

func TestClient_VerifyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Write([]byte(`{"data":[]}`))
		case "Bearer down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
		}
	}))
	defer server.Close()

	c := NewClient("", server.URL, "", time.Second)
	if err := c.VerifyKey(context.Background(), "good"); err != nil {
		t.Errorf("good key: %v", err)
	}
	if err := c.VerifyKey(context.Background(), "bad"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad key err = %v, want ErrInvalidKey", err)
	}
	if err := c.VerifyKey(context.Background(), "down"); err == nil || errors.Is(err, ErrInvalidKey) {
		t.Errorf("outage err = %v", err)
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject("```json\n{\"a\": 1}\n```")
	if err != nil || obj["a"] != float64(1) {
		t.Errorf("fenced: %v, %v", obj, err)
	}
	if _, err := DecodeObject(`["not", "an", "object"]`); err == nil {
		t.Error("array should be rejected")
	}
	if _, err := DecodeObject("sorry, I can't"); err == nil {
		t.Error("prose should be rejected")
	}
}

func TestEstimateCost(t *testing.T) {
	u := Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}
	testCases := []struct {
		model string
		want  float64
	}{
		{"gpt-4o-mini", 0.75},
		{"gpt-4o-mini-2024-07-18", 0.75},
		{"gpt-4o", 12.50},
		{"gpt-4.1-mini", 2.00},
		{"some-local-model", 0.75},
	}
	for _, tc := range testCases {
		if got := EstimateCost(tc.model, u); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("EstimateCost(%s) = %v, want %v", tc.model, got, tc.want)
		}
	}
}
