package wa

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InboundMessage is one normalized inbound customer message.
type InboundMessage struct {
	Instance string
	Sender   string
	Text     string
	Raw      json.RawMessage
}

// fieldPath is one extraction strategy: a key path into the entry document.
type fieldPath []string

// Extraction strategy tables, tried in order; the first non-empty match
// wins. The upsert envelope shapes come first, the legacy array shapes
// after.
var (
	textPaths = []fieldPath{
		{"message", "conversation"},
		{"message", "extendedTextMessage", "text"},
		{"text", "body"},
		{"text"},
		{"body"},
	}
	senderPaths = []fieldPath{
		{"key", "remoteJid"},
		{"from"},
		{"sender"},
	}
	instancePaths = []fieldPath{
		{"instance"},
		{"instanceName"},
	}
)

// ParseEvent normalizes a webhook payload into inbound messages. The
// canonical schema is the messages.upsert envelope with a single entry (or
// entry array) under "data"; the generic "messages" array form is accepted
// as a legacy adapter. Entries with no extractable text, and entries
// flagged as the bot's own outbound messages, are skipped.
func ParseEvent(payload []byte, instanceOverride string) ([]InboundMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	instance := strings.TrimSpace(instanceOverride)
	if instance == "" {
		instance = lookupString(doc, instancePaths)
	}
	if instance == "" {
		return nil, fmt.Errorf("webhook payload has no instance")
	}

	var out []InboundMessage
	for _, entry := range collectEntries(doc) {
		text := lookupString(entry, textPaths)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if fromMe(entry) {
			continue
		}
		sender := lookupString(entry, senderPaths)
		if sender == "" {
			continue
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			raw = json.RawMessage("{}")
		}
		out = append(out, InboundMessage{
			Instance: instance,
			Sender:   sender,
			Text:     text,
			Raw:      raw,
		})
	}
	return out, nil
}

// collectEntries returns the message entries of either event schema: the
// upsert envelope's "data" (object or array), then the legacy "messages"
// array.
func collectEntries(doc map[string]any) []map[string]any {
	if data, ok := doc["data"]; ok {
		return asEntryList(data)
	}
	if msgs, ok := doc["messages"]; ok {
		return asEntryList(msgs)
	}
	// Bare entry posted without an envelope.
	if _, ok := doc["message"]; ok {
		return []map[string]any{doc}
	}
	return nil
}

func asEntryList(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		entries := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if entry, ok := item.(map[string]any); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	default:
		return nil
	}
}

func fromMe(entry map[string]any) bool {
	key, ok := entry["key"].(map[string]any)
	if !ok {
		return false
	}
	flag, ok := key["fromMe"].(bool)
	return ok && flag
}

func lookupString(doc map[string]any, paths []fieldPath) string {
	for _, path := range paths {
		if value := walk(doc, path); value != "" {
			return value
		}
	}
	return ""
}

func walk(doc map[string]any, path fieldPath) string {
	current := any(doc)
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = node[key]
		if !ok {
			return ""
		}
	}
	value, ok := current.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
