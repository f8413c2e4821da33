package extraction

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ghl-extractor-backend/internal/ghl"
	"ghl-extractor-backend/internal/models"
)

// Turn is one message of a transcript.
type Turn struct {
	Direction string
	Body      string
	At        time.Time
}

// TurnsFromStored converts logged webhook rows.
func TurnsFromStored(msgs []models.ConversationMessage) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Direction: m.Direction, Body: m.Body, At: m.ReceivedAt})
	}
	return turns
}

// TurnsFromGHL converts messages fetched from the conversations API.
func TurnsFromGHL(msgs []ghl.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Direction: m.Direction, Body: m.Body, At: m.Time()})
	}
	return turns
}

// BuildSystemPrompt assembles the extraction instructions from the business profile,
// the active fields (in the given order) and the active rules (highest priority first).
func BuildSystemPrompt(p models.BusinessProfile, fields []models.ExtractionField, rules []models.ContextualRule) string {
	var b strings.Builder

	b.WriteString("You are a data extraction assistant for a CRM. Read the conversation between a business and one of its contacts and extract the requested contact information.\n")

	if ctx := businessBlock(p); ctx != "" {
		b.WriteString("\n## Business context\n")
		b.WriteString(ctx)
	}

	b.WriteString("\n## Fields to extract\n")
	for _, f := range fields {
		if !f.IsActive {
			continue
		}
		fmt.Fprintf(&b, "- %q (%s)", f.FieldName, f.FieldType)
		if f.Description != nil && strings.TrimSpace(*f.Description) != "" {
			fmt.Fprintf(&b, ": %s", strings.TrimSpace(*f.Description))
		}
		if f.FieldType == models.FieldSelect && len(f.PicklistOptions) > 0 {
			fmt.Fprintf(&b, ". Allowed values: %s", strings.Join(f.PicklistOptions, ", "))
		}
		if hint := formatHint(f.FieldType); hint != "" {
			fmt.Fprintf(&b, ". %s", hint)
		}
		if f.IsRequired {
			b.WriteString(". Important field, look for it carefully")
		}
		b.WriteString("\n")
	}

	if active := activeRules(rules); len(active) > 0 {
		b.WriteString("\n## Rules\n")
		for i, r := range active {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.RuleName, strings.TrimSpace(r.RuleDescription))
		}
	}

	b.WriteString("\n## Output\n")
	b.WriteString("Respond with a single JSON object only. Use exactly the field names above as keys. ")
	b.WriteString("Use null for any field the contact did not clearly state. ")
	b.WriteString("Never guess or invent values, and ignore information about the business itself.\n")

	return b.String()
}

// BuildTranscript renders turns chronologically as "[time] Speaker: body".
func BuildTranscript(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		body := strings.TrimSpace(t.Body)
		if body == "" {
			continue
		}
		if !t.At.IsZero() {
			fmt.Fprintf(&b, "[%s] ", t.At.UTC().Format("2006-01-02 15:04"))
		}
		speaker := "Contact"
		if t.Direction == models.DirectionOutbound {
			speaker = "Business"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, body)
	}
	return b.String()
}

func businessBlock(p models.BusinessProfile) string {
	var b strings.Builder
	line := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, v)
		}
	}
	line("Business name", p.Name)
	line("Description", p.Description)
	line("Context", p.Context)
	line("Target audience", p.Audience)
	line("Services offered", p.Services)
	return b.String()
}

func formatHint(t models.FieldType) string {
	switch t {
	case models.FieldDate:
		return "Format as YYYY-MM-DD"
	case models.FieldNumber:
		return "Return a plain number without currency symbols"
	case models.FieldEmail:
		return "Return a valid email address"
	case models.FieldPhone:
		return "Return the phone number with country code when given"
	case models.FieldBoolean:
		return "Return true or false"
	}
	return ""
}

func activeRules(rules []models.ContextualRule) []models.ContextualRule {
	out := make([]models.ContextualRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
