// Package ghl talks to the GoHighLevel (LeadConnector) REST API.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://services.leadconnectorhq.com"
	DefaultVersion = "2021-07-28"
)

var (
	ErrNotFound     = errors.New("ghl: resource not found")
	ErrUnauthorized = errors.New("ghl: access token rejected")
)

// APIError is a non-2xx answer from GHL.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ghl: API error (status %d): %s", e.Status, e.Body)
}

// Client is a thin GHL v2 client. Access tokens are passed per call since every
// location carries its own OAuth token.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
}

// NewClient creates a client. Empty baseURL/version fall back to the public API.
func NewClient(baseURL, version string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		version:    version,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetContact fetches a single contact.
func (c *Client) GetContact(ctx context.Context, token, contactID string) (*Contact, error) {
	var out struct {
		Contact *Contact `json:"contact"`
	}
	if err := c.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(contactID), token, nil, &out); err != nil {
		return nil, err
	}
	if out.Contact == nil {
		return nil, ErrNotFound
	}
	return out.Contact, nil
}

// UpdateContact PUTs the given changes onto a contact.
func (c *Client) UpdateContact(ctx context.Context, token, contactID string, update *ContactUpdate) error {
	return c.do(ctx, http.MethodPut, "/contacts/"+url.PathEscape(contactID), token, update, nil)
}

// Message is one conversation message as returned by GHL.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	ContactID      string `json:"contactId"`
	Body           string `json:"body"`
	Direction      string `json:"direction"`
	MessageType    string `json:"messageType"`
	DateAdded      string `json:"dateAdded"`
}

// Time parses DateAdded; zero when absent or malformed.
func (m Message) Time() time.Time {
	t, err := time.Parse(time.RFC3339, m.DateAdded)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ListMessages returns up to limit messages of a conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, token, conversationID string, limit int) ([]Message, error) {
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Messages struct {
			Messages []Message `json:"messages"`
		} `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	msgs := out.Messages.Messages
	// GHL returns newest first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Location is the subset of a GHL sub-account used to prefill the business profile.
type Location struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Website   string `json:"website"`
	Timezone  string `json:"timezone"`
}

// GetLocation fetches a location (sub-account).
func (c *Client) GetLocation(ctx context.Context, token, locationID string) (*Location, error) {
	var out struct {
		Location *Location `json:"location"`
	}
	if err := c.do(ctx, http.MethodGet, "/locations/"+url.PathEscape(locationID), token, nil, &out); err != nil {
		return nil, err
	}
	if out.Location == nil {
		return nil, ErrNotFound
	}
	return out.Location, nil
}

// CustomField is a custom field definition of a location.
type CustomField struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	FieldKey     string   `json:"fieldKey"`
	DataType     string   `json:"dataType"`
	PicklistOpts []string `json:"picklistOptions,omitempty"`
}

// ListCustomFields lists the contact custom fields defined for a location.
func (c *Client) ListCustomFields(ctx context.Context, token, locationID string) ([]CustomField, error) {
	var out struct {
		CustomFields []CustomField `json:"customFields"`
	}
	path := "/locations/" + url.PathEscape(locationID) + "/customFields?model=contact"
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.CustomFields, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ghl: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ghl: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Version", c.version)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ghl: execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ghl: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("ghl: parse response: %w", err)
	}
	return nil
}
