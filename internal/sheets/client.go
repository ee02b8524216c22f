package sheets

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

	"golang.org/x/oauth2"

	"github.com/leadrelay/leadrelay/internal/config"
)

const appendTimeout = 30 * time.Second

// Client appends rows to one spreadsheet range through the values:append
// REST call. A nil *Client is a valid "not configured" sink.
type Client struct {
	baseURL       string
	spreadsheetID string
	valueRange    string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates an append client, or nil when the spreadsheet sink is
// not configured. Absence of configuration is not an error; the pipeline
// records it as an undelivered leg.
func NewClient(log *slog.Logger, cfg config.SheetsConfig) *Client {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" || strings.TrimSpace(cfg.AccessToken) == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	httpClient := oauth2.NewClient(context.Background(), source)
	httpClient.Timeout = appendTimeout
	valueRange := cfg.Range
	if strings.TrimSpace(valueRange) == "" {
		valueRange = config.DefaultSheetsRange
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		spreadsheetID: cfg.SpreadsheetID,
		valueRange:    valueRange,
		httpClient:    httpClient,
		logger:        log.With(slog.String("service", "sheets")),
	}
}

type appendRequest struct {
	Values [][]string `json:"values"`
}

// Append adds one row to the configured range.
func (c *Client) Append(ctx context.Context, row []string) error {
	payload, err := json.Marshal(appendRequest{Values: [][]string{row}})
	if err != nil {
		return fmt.Errorf("marshal append request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(c.valueRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("append row: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
