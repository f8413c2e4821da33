package extraction

import (
	"strings"

	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/models"
)

// FieldDecision records what happened to one configured field.
type FieldDecision struct {
	FieldName    string                 `json:"fieldName"`
	TargetKey    string                 `json:"targetKey"`
	Policy       models.OverwritePolicy `json:"policy"`
	CurrentValue string                 `json:"currentValue,omitempty"`
	NewValue     string                 `json:"newValue,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
}

// Resolution is the outcome of applying overwrite policies to one contact.
type Resolution struct {
	Update  *ghl.ContactUpdate `json:"-"`
	Updated []FieldDecision    `json:"updated"`
	Skipped []FieldDecision    `json:"skipped"`
}

// UpdatedKeys lists the field names written to GHL.
func (r *Resolution) UpdatedKeys() []string {
	keys := make([]string, 0, len(r.Updated))
	for _, d := range r.Updated {
		keys = append(keys, d.FieldName)
	}
	return keys
}

// ShouldOverwrite applies a field policy. next must already be normalized; an empty
// reason means the value goes into the update payload.
func ShouldOverwrite(policy models.OverwritePolicy, current, next string) (bool, string) {
	if next == "" {
		return false, ReasonEmptyValue
	}
	if policy == models.PolicyNever {
		return false, ReasonPolicyNever
	}
	if strings.TrimSpace(current) == next {
		return false, ReasonUnchanged
	}
	switch policy {
	case models.PolicyAlways:
		return true, ""
	default:
		// only_empty, and anything unrecognised
		if strings.TrimSpace(current) != "" {
			return false, ReasonHasValue
		}
		return true, ""
	}
}

// Resolve builds the GHL update for the active fields. Extracted values are looked up
// by field name, then by target key. contact may be nil (treated as all-empty).
func Resolve(fields []models.ExtractionField, extracted map[string]interface{}, contact *ghl.Contact) *Resolution {
	res := &Resolution{
		Update:  ghl.NewContactUpdate(),
		Updated: []FieldDecision{},
		Skipped: []FieldDecision{},
	}

	for _, f := range fields {
		if !f.IsActive {
			continue
		}
		d := FieldDecision{FieldName: f.FieldName, TargetKey: f.TargetGHLKey, Policy: f.OverwritePolicy}

		if !f.IsCustomField && !ghl.StandardFields[f.TargetGHLKey] {
			d.Reason = ReasonUnknownKey
			res.Skipped = append(res.Skipped, d)
			continue
		}

		raw, ok := extracted[f.FieldName]
		if !ok {
			raw = extracted[f.TargetGHLKey]
		}

		value, reason := Normalize(f, raw)
		d.NewValue = value
		d.CurrentValue = contact.Value(f.TargetGHLKey, f.IsCustomField)
		if reason != "" {
			d.Reason = reason
			res.Skipped = append(res.Skipped, d)
			continue
		}

		write, reason := ShouldOverwrite(f.OverwritePolicy, d.CurrentValue, value)
		if !write {
			d.Reason = reason
			res.Skipped = append(res.Skipped, d)
			continue
		}

		res.Update.Set(f.TargetGHLKey, f.IsCustomField, value)
		res.Updated = append(res.Updated, d)
	}
	return res
}
