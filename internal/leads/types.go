package leads

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNotesLen bounds the notes field; longer values are truncated on the
// way in, never rejected.
const MaxNotesLen = 2000

var ErrLeadNotFound = errors.New("staged lead not found")

// Priority classifies how urgently a lead wants contact.
type Priority string

const (
	PriorityLow     Priority = "low"
	PriorityMedium  Priority = "medium"
	PriorityHigh    Priority = "high"
	PriorityUnknown Priority = "unknown"
)

// ContactMethod is the lead's preferred way to be reached.
type ContactMethod string

const (
	ContactPhone    ContactMethod = "phone"
	ContactText     ContactMethod = "text"
	ContactWhatsApp ContactMethod = "whatsapp"
	ContactUnknown  ContactMethod = "unknown"
)

// Fields is the structured lead data extracted from one inbound message.
// Name and Phone are empty when the message did not reveal them.
type Fields struct {
	Name          string        `json:"name,omitempty"`
	Phone         string        `json:"phone,omitempty"`
	Priority      Priority      `json:"priority"`
	ContactMethod ContactMethod `json:"contact_method"`
	Notes         string        `json:"notes"`
}

// StagedLead is a durable record of an extracted lead awaiting confirmed
// delivery. It exists in the store exactly while the lead has not been
// fully delivered to both downstream sinks.
type StagedLead struct {
	ID         string          `json:"id"`
	BotID      string          `json:"bot_id"`
	Instance   string          `json:"instance"`
	Fields     Fields          `json:"fields"`
	RawMessage json.RawMessage `json:"raw_message"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ParsePriority coerces free-form model output to a Priority.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityMedium:
		return PriorityMedium
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityUnknown
	}
}

// ParseContactMethod coerces free-form model output to a ContactMethod.
func ParseContactMethod(s string) ContactMethod {
	switch ContactMethod(strings.ToLower(strings.TrimSpace(s))) {
	case ContactPhone:
		return ContactPhone
	case ContactText:
		return ContactText
	case ContactWhatsApp:
		return ContactWhatsApp
	default:
		return ContactUnknown
	}
}

// TruncateNotes bounds notes to MaxNotesLen bytes without splitting a rune.
func TruncateNotes(s string) string {
	if len(s) <= MaxNotesLen {
		return s
	}
	cut := MaxNotesLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
