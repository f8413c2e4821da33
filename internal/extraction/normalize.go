package extraction

import (
	"net/mail"
	"strconv"
	"strings"
	"time"

	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/models"
)

// Skip reasons reported per field.
const (
	ReasonEmptyValue   = "empty_value"
	ReasonInvalidValue = "invalid_value"
	ReasonPolicyNever  = "policy_never"
	ReasonHasValue     = "has_existing_value"
	ReasonUnchanged    = "unchanged"
	ReasonUnknownKey   = "unknown_standard_field"
)

// placeholders the model sometimes returns instead of null
var emptyMarkers = map[string]bool{
	"null": true, "none": true, "n/a": true, "na": true, "unknown": true,
	"not provided": true, "not mentioned": true, "-": true,
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// Normalize converts a raw extracted value into the string written to GHL.
// A non-empty reason means the value must be skipped.
func Normalize(f models.ExtractionField, raw interface{}) (string, string) {
	s := ghl.Stringify(raw)
	if s == "" || emptyMarkers[strings.ToLower(s)] {
		return "", ReasonEmptyValue
	}

	switch f.FieldType {
	case models.FieldNumber:
		return normalizeNumber(raw, s)
	case models.FieldDate:
		return normalizeDate(s)
	case models.FieldEmail:
		return normalizeEmail(s)
	case models.FieldPhone:
		return normalizePhone(s)
	case models.FieldBoolean:
		return normalizeBool(raw, s)
	case models.FieldSelect:
		return normalizeSelect(f.PicklistOptions, s)
	default:
		return s, ""
	}
}

func normalizeNumber(raw interface{}, s string) (string, string) {
	if n, ok := raw.(float64); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), ""
	}
	cleaned := strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", ReasonInvalidValue
	}
	return strconv.FormatFloat(n, 'f', -1, 64), ""
}

func normalizeDate(s string) (string, string) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), ""
		}
	}
	return "", ReasonInvalidValue
}

func normalizeEmail(s string) (string, string) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", ReasonInvalidValue
	}
	at := strings.LastIndex(addr.Address, "@")
	if at < 1 || !strings.Contains(addr.Address[at:], ".") {
		return "", ReasonInvalidValue
	}
	return strings.ToLower(addr.Address), ""
}

func normalizePhone(s string) (string, string) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	digits := strings.TrimPrefix(out, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", ReasonInvalidValue
	}
	return out, ""
}

func normalizeBool(raw interface{}, s string) (string, string) {
	if b, ok := raw.(bool); ok {
		return strconv.FormatBool(b), ""
	}
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return "true", ""
	case "false", "no", "n", "0":
		return "false", ""
	}
	return "", ReasonInvalidValue
}

func normalizeSelect(options []string, s string) (string, string) {
	if len(options) == 0 {
		return s, ""
	}
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), s) {
			return opt, ""
		}
	}
	return "", ReasonInvalidValue
}
