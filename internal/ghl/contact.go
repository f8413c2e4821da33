package ghl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StandardFields are the top-level contact keys GHL accepts on update.
var StandardFields = map[string]bool{
	"firstName":   true,
	"lastName":    true,
	"name":        true,
	"email":       true,
	"phone":       true,
	"companyName": true,
	"address1":    true,
	"city":        true,
	"state":       true,
	"postalCode":  true,
	"country":     true,
	"website":     true,
	"timezone":    true,
	"dateOfBirth": true,
	"source":      true,
	"gender":      true,
}

// CustomFieldValue is one entry of a contact's customFields array.
type CustomFieldValue struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value"`
}

// Contact keeps the raw top-level attributes plus the decoded custom field values.
type Contact struct {
	ID           string
	LocationID   string
	Fields       map[string]interface{}
	CustomFields []CustomFieldValue
}

func (c *Contact) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Fields = make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k == "customFields" || k == "customField" {
			if err := json.Unmarshal(v, &c.CustomFields); err != nil {
				return fmt.Errorf("customFields: %w", err)
			}
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		c.Fields[k] = val
	}
	c.ID, _ = c.Fields["id"].(string)
	c.LocationID, _ = c.Fields["locationId"].(string)
	return nil
}

func (c *Contact) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.Fields)+1)
	for k, v := range c.Fields {
		out[k] = v
	}
	out["customFields"] = c.CustomFields
	return json.Marshal(out)
}

// Value returns the current value of a standard key or a custom field id, stringified.
// Missing values return "".
func (c *Contact) Value(key string, custom bool) string {
	if c == nil {
		return ""
	}
	if custom {
		for _, cf := range c.CustomFields {
			if cf.ID == key {
				return Stringify(cf.Value)
			}
		}
		return ""
	}
	return Stringify(c.Fields[key])
}

// Stringify renders a decoded JSON value as a flat string.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s := Stringify(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// CustomFieldUpdate is one entry of the update payload's customFields array.
type CustomFieldUpdate struct {
	ID         string      `json:"id"`
	FieldValue interface{} `json:"field_value"`
}

// ContactUpdate is the body of PUT /contacts/{id}: standard keys at the top level,
// custom fields under customFields.
type ContactUpdate struct {
	Standard     map[string]interface{}
	CustomFields []CustomFieldUpdate
}

// NewContactUpdate returns an empty payload.
func NewContactUpdate() *ContactUpdate {
	return &ContactUpdate{Standard: map[string]interface{}{}}
}

// Set adds a value under a standard key or a custom field id.
func (u *ContactUpdate) Set(key string, custom bool, value interface{}) {
	if custom {
		for i := range u.CustomFields {
			if u.CustomFields[i].ID == key {
				u.CustomFields[i].FieldValue = value
				return
			}
		}
		u.CustomFields = append(u.CustomFields, CustomFieldUpdate{ID: key, FieldValue: value})
		return
	}
	u.Standard[key] = value
}

// Empty reports whether the payload changes nothing.
func (u *ContactUpdate) Empty() bool {
	return u == nil || (len(u.Standard) == 0 && len(u.CustomFields) == 0)
}

func (u *ContactUpdate) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(u.Standard)+1)
	for k, v := range u.Standard {
		out[k] = v
	}
	if len(u.CustomFields) > 0 {
		out["customFields"] = u.CustomFields
	}
	return json.Marshal(out)
}
