package wa

import (
	"encoding/json"
	"testing"
)

func TestParseEventUpsertEnvelope(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"event": "messages.upsert",
		"instance": "shop-1",
		"data": {
			"key": {"remoteJid": "5511999@s.whatsapp.net", "fromMe": false},
			"message": {"conversation": "hi, do you deliver?"}
		}
	}`)

	msgs, err := ParseEvent(payload, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	got := msgs[0]
	if got.Instance != "shop-1" {
		t.Fatalf("instance = %q, want shop-1", got.Instance)
	}
	if got.Sender != "5511999@s.whatsapp.net" {
		t.Fatalf("sender = %q", got.Sender)
	}
	if got.Text != "hi, do you deliver?" {
		t.Fatalf("text = %q", got.Text)
	}
	var raw map[string]any
	if err := json.Unmarshal(got.Raw, &raw); err != nil {
		t.Fatalf("raw is not valid JSON: %v", err)
	}
}

func TestParseEventDataArray(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"instance": "shop-1",
		"data": [
			{"key": {"remoteJid": "a@s.whatsapp.net"}, "message": {"conversation": "first"}},
			{"key": {"remoteJid": "b@s.whatsapp.net"}, "message": {"conversation": "second"}}
		]
	}`)

	msgs, err := ParseEvent(payload, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("texts = %q, %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestParseEventLegacyMessagesArray(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"instanceName": "shop-2",
		"messages": [
			{"from": "5511888", "text": {"body": "is the blue one in stock?"}}
		]
	}`)

	msgs, err := ParseEvent(payload, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].Instance != "shop-2" {
		t.Fatalf("instance = %q, want shop-2", msgs[0].Instance)
	}
	if msgs[0].Sender != "5511888" {
		t.Fatalf("sender = %q", msgs[0].Sender)
	}
	if msgs[0].Text != "is the blue one in stock?" {
		t.Fatalf("text = %q", msgs[0].Text)
	}
}

func TestParseEventInstanceOverrideWins(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"instance": "payload-instance",
		"data": {"key": {"remoteJid": "a@s"}, "message": {"conversation": "hi"}}
	}`)

	msgs, err := ParseEvent(payload, "path-instance")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs[0].Instance != "path-instance" {
		t.Fatalf("instance = %q, want path-instance", msgs[0].Instance)
	}
}

func TestParseEventMissingInstance(t *testing.T) {
	t.Parallel()
	payload := []byte(`{"data": {"key": {"remoteJid": "a@s"}, "message": {"conversation": "hi"}}}`)

	if _, err := ParseEvent(payload, ""); err == nil {
		t.Fatal("expected error for payload without instance")
	}
}

func TestParseEventSkipsOwnMessages(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"instance": "shop-1",
		"data": [
			{"key": {"remoteJid": "a@s", "fromMe": true}, "message": {"conversation": "our reply"}},
			{"key": {"remoteJid": "b@s", "fromMe": false}, "message": {"conversation": "their question"}}
		]
	}`)

	msgs, err := ParseEvent(payload, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].Text != "their question" {
		t.Fatalf("text = %q", msgs[0].Text)
	}
}

func TestParseEventSkipsNonTextEntries(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"instance": "shop-1",
		"data": [
			{"key": {"remoteJid": "a@s"}, "message": {"imageMessage": {"url": "x"}}},
			{"key": {"remoteJid": "b@s"}, "message": {"conversation": "  "}},
			{"key": {"remoteJid": "c@s"}, "message": {"extendedTextMessage": {"text": "linked text"}}}
		]
	}`)

	msgs, err := ParseEvent(payload, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].Text != "linked text" {
		t.Fatalf("text = %q", msgs[0].Text)
	}
}

func TestParseEventSkipsEntriesWithoutSender(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"instance": "shop-1",
		"data": {"message": {"conversation": "hello"}}
	}`)

	msgs, err := ParseEvent(payload, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages = %d, want 0", len(msgs))
	}
}

func TestParseEventBareEntry(t *testing.T) {
	t.Parallel()
	payload := []byte(`{
		"instance": "shop-1",
		"from": "5511777",
		"message": {"conversation": "no envelope here"}
	}`)

	msgs, err := ParseEvent(payload, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].Sender != "5511777" {
		t.Fatalf("sender = %q", msgs[0].Sender)
	}
}

func TestParseEventInvalidJSON(t *testing.T) {
	t.Parallel()
	if _, err := ParseEvent([]byte("not json"), "shop-1"); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
