package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leadrelay/leadrelay/internal/leads"
)

// Gateway is the completion call the extractor depends on.
type Gateway interface {
	Complete(ctx context.Context, model, prompt string, temperature float64) (string, error)
}

// Extractor turns free-form customer text into structured lead fields. It
// never fails: any gateway or parse error degrades to a salvage record
// carrying the raw reply in the notes field.
type Extractor struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewExtractor creates a lead extractor.
func NewExtractor(log *slog.Logger, gateway Gateway) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		gateway: gateway,
		logger:  log.With(slog.String("service", "extract")),
	}
}

// rawFields is the loosely-typed shape the model is asked to return.
type rawFields struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Priority      string `json:"priority"`
	ContactMethod string `json:"contact_method"`
	Notes         string `json:"notes"`
}

// Extract asks the gateway for a JSON lead record and coerces the reply.
// Temperature is pinned to zero to minimize variance.
func (e *Extractor) Extract(ctx context.Context, model, message, businessContext string) leads.Fields {
	reply, err := e.gateway.Complete(ctx, model, buildPrompt(message, businessContext), 0)
	if err != nil {
		e.logger.Warn("extraction completion failed", slog.Any("error", err))
		return salvage(message)
	}
	fields, ok := parseReply(reply)
	if !ok {
		e.logger.Warn("extraction reply unparseable, salvaging")
		return salvage(reply)
	}
	return fields
}

func buildPrompt(message, businessContext string) string {
	var b strings.Builder
	b.WriteString("Extract lead information from the customer message below.\n")
	b.WriteString("Respond with ONLY a JSON object, no commentary, with exactly these fields:\n")
	b.WriteString(`{"name": string or null, "phone": string or null, "priority": "low"|"medium"|"high"|"unknown", "contact_method": "phone"|"text"|"whatsapp"|"unknown", "notes": string}`)
	b.WriteString("\n\n")
	if strings.TrimSpace(businessContext) != "" {
		fmt.Fprintf(&b, "Business context: %s\n\n", businessContext)
	}
	fmt.Fprintf(&b, "Customer message: %s", message)
	return b.String()
}

// parseReply locates the first JSON object in the reply (models may prepend
// commentary) and coerces each field to its declared type.
func parseReply(reply string) (leads.Fields, bool) {
	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return leads.Fields{}, false
	}
	var raw rawFields
	// Decoder tolerates trailing commentary after the object.
	if err := json.NewDecoder(strings.NewReader(reply[start:])).Decode(&raw); err != nil {
		return leads.Fields{}, false
	}
	return leads.Fields{
		Name:          strings.TrimSpace(raw.Name),
		Phone:         strings.TrimSpace(raw.Phone),
		Priority:      leads.ParsePriority(raw.Priority),
		ContactMethod: leads.ParseContactMethod(raw.ContactMethod),
		Notes:         leads.TruncateNotes(raw.Notes),
	}, true
}

// salvage is the deterministic fallback record: all-unknown fields with the
// raw text preserved for a human to read.
func salvage(raw string) leads.Fields {
	return leads.Fields{
		Priority:      leads.PriorityUnknown,
		ContactMethod: leads.ContactUnknown,
		Notes:         leads.TruncateNotes(raw),
	}
}
