// Package crawlservice hands crawl jobs to the external crawler and keeps
// the job status consistent with the outcome.
package crawlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 4 << 10
)

// DispatchRequest is the body POSTed to the crawler service.
type DispatchRequest struct {
	JobID       string         `json:"job_id"`
	ProjectID   string         `json:"project_id"`
	Config      map[string]any `json:"config,omitempty"`
	CallbackURL string         `json:"callback_url"`
}

// ClientConfig configures Client.
type ClientConfig struct {
	BaseURL     string
	CallbackURL string
	APIKey      string
	Timeout     time.Duration
}

// Client posts jobs to the crawler service's /v1/crawls endpoint.
type Client struct {
	endpoint    string
	callbackURL string
	apiKey      string
	httpClient  *http.Client
}

// NewClient validates cfg and returns a Client. httpClient may be nil.
func NewClient(cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("crawler service base url is required")
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint:    base + "/v1/crawls",
		callbackURL: cfg.CallbackURL,
		apiKey:      cfg.APIKey,
		httpClient:  httpClient,
	}, nil
}

// Dispatch asks the crawler to start job. Any non-2xx answer is an error.
func (c *Client) Dispatch(ctx context.Context, job crawler.Job) error {
	body, err := json.Marshal(DispatchRequest{
		JobID:       job.ID,
		ProjectID:   job.ProjectID,
		Config:      job.Config,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return fmt.Errorf("marshal dispatch request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("crawler service returned %d: %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("crawler service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
