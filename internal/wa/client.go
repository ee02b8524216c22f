package wa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leadrelay/leadrelay/internal/config"
)

const sendTimeout = 30 * time.Second

// Client sends text messages through the messaging transport's HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a messaging client from config.
func NewClient(log *slog.Logger, cfg config.WhatsAppConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: sendTimeout},
		logger:     log.With(slog.String("service", "wa")),
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// SendText delivers one text message to number through the given instance.
func (c *Client) SendText(ctx context.Context, instance, number, text string) error {
	if c.baseURL == "" {
		return fmt.Errorf("messaging base url not configured")
	}
	if strings.TrimSpace(instance) == "" {
		return fmt.Errorf("instance is required")
	}
	if strings.TrimSpace(number) == "" {
		return fmt.Errorf("number is required")
	}

	payload, err := json.Marshal(sendTextRequest{Number: number, Text: text})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}
	endpoint := c.baseURL + "/message/sendText/" + url.PathEscape(instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send text: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
