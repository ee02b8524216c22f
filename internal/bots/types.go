package bots

import (
	"encoding/json"
	"time"
)

// Bot is the per-instance configuration record. One bot exists per channel
// identity; the pipeline never mutates or deletes it.
type Bot struct {
	ID              string         `json:"id"`
	Instance        string         `json:"instance"`
	Model           string         `json:"model"`
	BusinessContext map[string]any `json:"business_context,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ContextJSON renders the business context as compact JSON for prompt
// building. An empty context renders as the empty string.
func (b Bot) ContextJSON() string {
	if len(b.BusinessContext) == 0 {
		return ""
	}
	raw, err := json.Marshal(b.BusinessContext)
	if err != nil {
		return ""
	}
	return string(raw)
}

// UpdateBotRequest is the input for out-of-band bot configuration.
type UpdateBotRequest struct {
	Model           *string        `json:"model,omitempty"`
	BusinessContext map[string]any `json:"business_context,omitempty"`
}
