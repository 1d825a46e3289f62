package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/hoopsrank/internal/domain/model"
)

// Client submits batches to a running service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client with a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return out, fmt.Errorf("POST %s: %s: %s", path, resp.Status, bytes.TrimSpace(out))
	}
	return out, nil
}

// Ingest posts one date's batches to /ingest/{date}.
func (c *Client) Ingest(ctx context.Context, date string, batches map[string][]model.RawRow) error {
	_, err := c.post(ctx, "/ingest/"+date, batches)
	return err
}

// Backfill triggers /backfill over every stored date.
func (c *Client) Backfill(ctx context.Context) error {
	_, err := c.post(ctx, "/backfill", nil)
	return err
}
