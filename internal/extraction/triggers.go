package extraction

import (
	"strings"

	"ghl-extractor-backend/internal/models"
)

// MatchStopTrigger returns the first active trigger matching body.
func MatchStopTrigger(triggers []models.StopTrigger, body string) (*models.StopTrigger, bool) {
	text := strings.ToLower(strings.TrimSpace(body))
	if text == "" {
		return nil, false
	}
	for i := range triggers {
		t := &triggers[i]
		phrase := strings.ToLower(strings.TrimSpace(t.TriggerPhrase))
		if !t.IsActive || phrase == "" {
			continue
		}
		switch t.MatchType {
		case models.MatchExact:
			if text == phrase {
				return t, true
			}
		default:
			if strings.Contains(text, phrase) {
				return t, true
			}
		}
	}
	return nil, false
}

// FirstStopTrigger scans inbound turns only; the business's own replies never stop extraction.
func FirstStopTrigger(triggers []models.StopTrigger, turns []Turn) (*models.StopTrigger, bool) {
	for _, t := range turns {
		if t.Direction == models.DirectionOutbound {
			continue
		}
		if trig, ok := MatchStopTrigger(triggers, t.Body); ok {
			return trig, true
		}
	}
	return nil, false
}
