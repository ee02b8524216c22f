package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/leadrelay/leadrelay/internal/config"
)

const (
	systemPrompt   = "You are a helpful sales assistant."
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 1 << 20
)

// GatewayError reports a failed completion call: transport failure, timeout,
// or a non-2xx response. Status is zero when no response was received.
type GatewayError struct {
	Status int
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm gateway: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("llm gateway: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Client calls a chat-completion endpoint. It carries no retry policy;
// callers decide how to recover.
type Client struct {
	baseURL      string
	apiKey       string
	defaultModel string
	maxTokens    int
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a completion client from config.
func NewClient(log *slog.Logger, cfg config.LLMConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = config.DefaultLLMMaxTokens
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		maxTokens:    maxTokens,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		logger:       log.With(slog.String("service", "llm")),
	}
}

// Complete sends a single-turn chat request and returns the first
// completion's text. An empty model falls back to the configured default.
// When the response decodes but has no choices, the serialized raw body is
// returned so callers always get some string.
func (c *Client) Complete(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	if strings.TrimSpace(model) == "" {
		model = c.defaultModel
	}
	payload, err := json.Marshal(completionRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", &GatewayError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &GatewayError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &GatewayError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &GatewayError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &GatewayError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body)))}
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		c.logger.Warn("unexpected completion shape, returning raw body", slog.String("model", model))
		return string(body), nil
	}
	return parsed.Choices[0].Message.Content, nil
}
