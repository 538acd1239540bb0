package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/pkg/conv"
)

const fetchURLSchema = `
{
  "type": "object",
  "properties": {
    "url": { "type": "string", "description": "The URL to fetch" }
  },
  "required": ["url"]
}
`

// maxFetchBody caps how much of a response is read.
const maxFetchBody = 1 << 20

type Fetch struct {
	client *http.Client
}

func NewFetch() *Fetch {
	return &Fetch{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Close drops idle connections held by the shared HTTP client.
func (f *Fetch) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// FetchURL performs an HTTP GET. HTML responses are converted to plain
// text so the model gets readable content instead of markup.
func (f *Fetch) FetchURL(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Mimic a browser to avoid some basic blocking
	req.Header.Set("User-Agent", core.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, input.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return conv.HTMLToText(string(body)), nil
	}
	return string(body), nil
}

func (f *Fetch) GetDefinitions() map[string]struct {
	Description string
	Schema      string
	Handler     func(context.Context, json.RawMessage) (string, error)
} {
	return map[string]struct {
		Description string
		Schema      string
		Handler     func(context.Context, json.RawMessage) (string, error)
	}{
		"fetch_url": {"Fetch content from a URL (HTTP GET)", fetchURLSchema, f.FetchURL},
	}
}
