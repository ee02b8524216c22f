package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/leadrelay/leadrelay/internal/leads"
)

// stubGateway returns a canned reply or error.
type stubGateway struct {
	reply string
	err   error

	lastModel       string
	lastPrompt      string
	lastTemperature float64
}

func (g *stubGateway) Complete(_ context.Context, model, prompt string, temperature float64) (string, error) {
	g.lastModel = model
	g.lastPrompt = prompt
	g.lastTemperature = temperature
	return g.reply, g.err
}

func TestExtractParsesCleanJSON(t *testing.T) {
	t.Parallel()
	gw := &stubGateway{reply: `{"name":"Ana","phone":"555-1234","priority":"high","contact_method":"whatsapp","notes":"wants a quote"}`}
	ex := NewExtractor(nil, gw)

	fields := ex.Extract(context.Background(), "test-model", "call me at 555-1234, urgent", "")
	if fields.Name != "Ana" {
		t.Fatalf("name = %q, want Ana", fields.Name)
	}
	if fields.Phone != "555-1234" {
		t.Fatalf("phone = %q, want 555-1234", fields.Phone)
	}
	if fields.Priority != leads.PriorityHigh {
		t.Fatalf("priority = %q, want high", fields.Priority)
	}
	if fields.ContactMethod != leads.ContactWhatsApp {
		t.Fatalf("contact method = %q, want whatsapp", fields.ContactMethod)
	}
}

func TestExtractPinsTemperatureToZero(t *testing.T) {
	t.Parallel()
	gw := &stubGateway{reply: `{}`}
	ex := NewExtractor(nil, gw)

	ex.Extract(context.Background(), "m", "hello", "")
	if gw.lastTemperature != 0 {
		t.Fatalf("temperature = %v, want 0", gw.lastTemperature)
	}
	if gw.lastModel != "m" {
		t.Fatalf("model = %q, want m", gw.lastModel)
	}
}

func TestExtractIncludesBusinessContext(t *testing.T) {
	t.Parallel()
	gw := &stubGateway{reply: `{}`}
	ex := NewExtractor(nil, gw)

	ex.Extract(context.Background(), "m", "hello", `{"industry":"roofing"}`)
	if !strings.Contains(gw.lastPrompt, `{"industry":"roofing"}`) {
		t.Fatalf("prompt does not carry business context: %q", gw.lastPrompt)
	}
}

func TestExtractSkipsLeadingCommentary(t *testing.T) {
	t.Parallel()
	gw := &stubGateway{reply: "Sure, here is the JSON you asked for:\n{\"priority\":\"medium\",\"notes\":\"ok\"}"}
	ex := NewExtractor(nil, gw)

	fields := ex.Extract(context.Background(), "", "msg", "")
	if fields.Priority != leads.PriorityMedium {
		t.Fatalf("priority = %q, want medium", fields.Priority)
	}
	if fields.Notes != "ok" {
		t.Fatalf("notes = %q, want ok", fields.Notes)
	}
}

func TestExtractToleratesTrailingCommentary(t *testing.T) {
	t.Parallel()
	gw := &stubGateway{reply: `{"priority":"low"} Let me know if you need anything else.`}
	ex := NewExtractor(nil, gw)

	fields := ex.Extract(context.Background(), "", "msg", "")
	if fields.Priority != leads.PriorityLow {
		t.Fatalf("priority = %q, want low", fields.Priority)
	}
}

func TestExtractSalvagesNonJSONReply(t *testing.T) {
	t.Parallel()
	gw := &stubGateway{reply: "I cannot help with that."}
	ex := NewExtractor(nil, gw)

	fields := ex.Extract(context.Background(), "", "msg", "")
	if fields.Priority != leads.PriorityUnknown {
		t.Fatalf("priority = %q, want unknown", fields.Priority)
	}
	if fields.ContactMethod != leads.ContactUnknown {
		t.Fatalf("contact method = %q, want unknown", fields.ContactMethod)
	}
	if fields.Notes != "I cannot help with that." {
		t.Fatalf("notes = %q, want raw reply", fields.Notes)
	}
}

func TestExtractSalvagesTruncatesLongReply(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", leads.MaxNotesLen+500)
	gw := &stubGateway{reply: long}
	ex := NewExtractor(nil, gw)

	fields := ex.Extract(context.Background(), "", "msg", "")
	if len(fields.Notes) != leads.MaxNotesLen {
		t.Fatalf("notes length = %d, want %d", len(fields.Notes), leads.MaxNotesLen)
	}
}

func TestExtractSalvagesGatewayFailure(t *testing.T) {
	t.Parallel()
	gw := &stubGateway{err: fmt.Errorf("boom")}
	ex := NewExtractor(nil, gw)

	fields := ex.Extract(context.Background(), "", "call me maybe", "")
	if fields.Priority != leads.PriorityUnknown {
		t.Fatalf("priority = %q, want unknown", fields.Priority)
	}
	if fields.Notes != "call me maybe" {
		t.Fatalf("notes = %q, want original message preserved", fields.Notes)
	}
}

func TestExtractCoercesBadEnumValues(t *testing.T) {
	t.Parallel()
	gw := &stubGateway{reply: `{"priority":"URGENT!!","contact_method":"telepathy","notes":""}`}
	ex := NewExtractor(nil, gw)

	fields := ex.Extract(context.Background(), "", "msg", "")
	if fields.Priority != leads.PriorityUnknown {
		t.Fatalf("priority = %q, want unknown", fields.Priority)
	}
	if fields.ContactMethod != leads.ContactUnknown {
		t.Fatalf("contact method = %q, want unknown", fields.ContactMethod)
	}
}

func TestExtractCoercesCaseInsensitiveEnums(t *testing.T) {
	t.Parallel()
	gw := &stubGateway{reply: `{"priority":"High","contact_method":"Phone"}`}
	ex := NewExtractor(nil, gw)

	fields := ex.Extract(context.Background(), "", "msg", "")
	if fields.Priority != leads.PriorityHigh {
		t.Fatalf("priority = %q, want high", fields.Priority)
	}
	if fields.ContactMethod != leads.ContactPhone {
		t.Fatalf("contact method = %q, want phone", fields.ContactMethod)
	}
}
