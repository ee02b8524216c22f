package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leadrelay/leadrelay/internal/config"
)

func TestNewClientUnconfigured(t *testing.T) {
	t.Parallel()
	if c := NewClient(nil, config.SheetsConfig{}); c != nil {
		t.Fatal("expected nil client without spreadsheet id")
	}
	if c := NewClient(nil, config.SheetsConfig{SpreadsheetID: "sheet-1"}); c != nil {
		t.Fatal("expected nil client without access token")
	}
}

func TestAppend(t *testing.T) {
	t.Parallel()
	var gotPath, gotQuery, gotAuth string
	var gotBody appendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(nil, config.SheetsConfig{
		BaseURL:       srv.URL,
		SpreadsheetID: "sheet-1",
		Range:         "Leads!A:F",
		AccessToken:   "token-1",
	})
	if client == nil {
		t.Fatal("client is nil")
	}

	row := []string{"2026-01-02T03:04:05Z", "Ana", "555-1234", "high", "phone", "wants a quote"}
	if err := client.Append(context.Background(), row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-1/values/") {
		t.Fatalf("path = %q", gotPath)
	}
	if !strings.HasSuffix(gotPath, ":append") {
		t.Fatalf("path = %q, want :append suffix", gotPath)
	}
	if gotQuery != "valueInputOption=USER_ENTERED" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if len(gotBody.Values) != 1 || gotBody.Values[0][1] != "Ana" {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestAppendUpstreamError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"status":"PERMISSION_DENIED"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(nil, config.SheetsConfig{
		BaseURL:       srv.URL,
		SpreadsheetID: "sheet-1",
		AccessToken:   "token-1",
	})
	err := client.Append(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error on 403")
	}
	if !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("error = %v, want status 403", err)
	}
}

func TestNewClientDefaultsRange(t *testing.T) {
	t.Parallel()
	client := NewClient(nil, config.SheetsConfig{
		SpreadsheetID: "sheet-1",
		AccessToken:   "token-1",
	})
	if client.valueRange != config.DefaultSheetsRange {
		t.Fatalf("range = %q, want %q", client.valueRange, config.DefaultSheetsRange)
	}
}
