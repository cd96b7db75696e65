package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const submitPath = "/submit/blocksample"

// Client talks to the openblockperf backend over HTTPS.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL, authenticating
// with apiKey.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SubmitBlockSample posts one sample. Any non-2xx response is an error; the
// first part of the response body is included for diagnosis.
func (c *Client) SubmitBlockSample(ctx context.Context, req blockSampleRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode block sample: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submitPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submit block sample: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend rejected block sample: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}
	return nil
}
