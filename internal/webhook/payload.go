// Package webhook ingests GHL conversation events.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ghl-extractor-backend/internal/models"
)

// EventMessageCreated is the only event that is stored.
const EventMessageCreated = "conversation.message.created"

// GHL marketplace webhook types that map to EventMessageCreated.
const (
	TypeInboundMessage  = "InboundMessage"
	TypeOutboundMessage = "OutboundMessage"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

// Payload accepts both GHL marketplace events ({"type":"InboundMessage",...}) and
// relayed events carrying an explicit "event" with the message under "data".
type Payload struct {
	Type           string   `json:"type"`
	Event          string   `json:"event"`
	LocationID     string   `json:"locationId"`
	ContactID      string   `json:"contactId"`
	ConversationID string   `json:"conversationId"`
	MessageID      string   `json:"messageId"`
	Body           string   `json:"body"`
	Direction      string   `json:"direction"`
	MessageType    string   `json:"messageType"`
	DateAdded      string   `json:"dateAdded"`
	Data           *Payload `json:"data,omitempty"`
}

// Message is a normalized, storable event.
type Message struct {
	EventType      string
	LocationID     string
	ContactID      string
	ConversationID string
	MessageID      string
	Body           string
	Direction      string
	MessageType    string
	ReceivedAt     time.Time
	Raw            json.RawMessage
}

// Row converts the message to a ghl_conversations row.
func (m *Message) Row() models.ConversationMessage {
	return models.ConversationMessage{
		LocationID:     m.LocationID,
		ConversationID: m.ConversationID,
		ContactID:      m.ContactID,
		MessageID:      models.NullIfEmpty(m.MessageID),
		EventType:      m.EventType,
		Direction:      m.Direction,
		MessageType:    models.NullIfEmpty(m.MessageType),
		Body:           m.Body,
		RawPayload:     m.Raw,
		ReceivedAt:     m.ReceivedAt,
	}
}

// Parse decodes and normalizes a webhook body. A nil message with a nil error means
// the event is valid JSON but not one we store.
func Parse(raw []byte, now time.Time) (*Message, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	event := strings.TrimSpace(p.Event)
	if event == "" {
		switch p.Type {
		case TypeInboundMessage, TypeOutboundMessage:
			event = EventMessageCreated
		}
	}
	if event != EventMessageCreated {
		return nil, nil
	}

	if p.Data != nil {
		p.merge(p.Data)
	}

	m := &Message{
		EventType:      event,
		LocationID:     p.LocationID,
		ContactID:      p.ContactID,
		ConversationID: p.ConversationID,
		MessageID:      p.MessageID,
		Body:           p.Body,
		Direction:      strings.ToLower(p.Direction),
		MessageType:    p.MessageType,
		ReceivedAt:     now.UTC(),
		Raw:            json.RawMessage(raw),
	}
	if m.Direction == "" {
		m.Direction = models.DirectionInbound
		if p.Type == TypeOutboundMessage {
			m.Direction = models.DirectionOutbound
		}
	}
	if t, err := time.Parse(time.RFC3339, p.DateAdded); err == nil {
		m.ReceivedAt = t.UTC()
	}

	var missing []string
	if m.LocationID == "" {
		missing = append(missing, "locationId")
	}
	if m.ConversationID == "" {
		missing = append(missing, "conversationId")
	}
	if m.ContactID == "" {
		missing = append(missing, "contactId")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}
	return m, nil
}

// merge fills empty top-level fields from the nested data object.
func (p *Payload) merge(d *Payload) {
	set := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	set(&p.Type, d.Type)
	set(&p.LocationID, d.LocationID)
	set(&p.ContactID, d.ContactID)
	set(&p.ConversationID, d.ConversationID)
	set(&p.MessageID, d.MessageID)
	set(&p.Body, d.Body)
	set(&p.Direction, d.Direction)
	set(&p.MessageType, d.MessageType)
	set(&p.DateAdded, d.DateAdded)
}
