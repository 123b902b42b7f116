package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

// Client posts JSON telemetry to the collection and classification endpoints.
type Client struct {
	httpClient  *http.Client
	collectURL  string
	classifyURL string
}

func NewClient(collectURL, classifyURL string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		collectURL:  collectURL,
		classifyURL: classifyURL,
	}
}

// PostBehavior submits one flush payload. Any transport error or non-2xx
// status is returned as an error; the caller decides whether it is soft.
func (c *Client) PostBehavior(ctx context.Context, p models.CollectionPayload) (*models.CollectResponse, error) {
	var out models.CollectResponse
	sent, err := c.postJSON(ctx, c.collectURL, p, &out)
	if err != nil {
		return nil, err
	}
	events := len(p.MouseMovements) + len(p.ClickPatterns) + len(p.KeystrokePatterns) + len(p.ScrollPatterns)
	log.Printf("Posted %d events (%s) to collection endpoint", events, humanize.Bytes(uint64(sent)))
	return &out, nil
}

// Classify submits an on-demand classification payload and decodes the
// verdict.
func (c *Client) Classify(ctx context.Context, p models.ClassificationPayload) (*models.DetectionResult, error) {
	var out models.DetectionResult
	if _, err := c.postJSON(ctx, c.classifyURL, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("failed to decode response from %s: %w", url, err)
		}
	}
	return len(data), nil
}
