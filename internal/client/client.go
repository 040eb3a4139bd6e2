// Package client talks to a running tabtime server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/tabtime/internal/api"
	"github.com/goodtune/tabtime/internal/bridge"
	"github.com/goodtune/tabtime/internal/coach"
	"github.com/goodtune/tabtime/internal/report"
	"github.com/goodtune/tabtime/internal/usage"
)

// DefaultTimeout bounds every request except Analyze.
const DefaultTimeout = 10 * time.Second

// AnalyzeTimeout bounds Analyze, which waits on the coaching backend.
const AnalyzeTimeout = 45 * time.Second

// APIError is returned when the server answers with an error status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client is an API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL, e.g. http://127.0.0.1:7420.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Usage fetches the usage record.
func (c *Client) Usage(ctx context.Context) (*api.UsageResponse, error) {
	var resp api.UsageResponse
	if err := c.do(ctx, http.MethodGet, "/api/usage", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reset clears the usage record.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/usage", nil, nil)
}

// Report fetches a usage report listing at most top sites; zero uses the
// server default.
func (c *Client) Report(ctx context.Context, top int) (*report.Report, error) {
	path := "/api/report"
	if top > 0 {
		path += "?" + url.Values{"top": {strconv.Itoa(top)}}.Encode()
	}

	var resp report.Report
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the tracker state.
func (c *Client) Status(ctx context.Context) (*usage.Status, error) {
	var resp usage.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendEvents posts browser messages.
func (c *Client) SendEvents(ctx context.Context, msgs []bridge.Message) (*api.EventsResponse, error) {
	var resp api.EventsResponse
	if err := c.do(ctx, http.MethodPost, "/api/events", msgs, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Analyze asks the server's coaching backend for advice on the recorded
// usage.
func (c *Client) Analyze(ctx context.Context) (*coach.Analysis, error) {
	hc := *c.httpClient
	hc.Timeout = AnalyzeTimeout

	var resp api.AnalyzeResponse
	if err := c.doWith(ctx, &hc, http.MethodPost, "/api/analyze", nil, &resp); err != nil {
		return nil, err
	}
	return &coach.Analysis{Analysis: resp.Analysis}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.doWith(ctx, c.httpClient, method, path, body, out)
}

func (c *Client) doWith(ctx context.Context, hc *http.Client, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			apiErr.Message = errResp.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
