package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single analysis call.
const DefaultTimeout = 30 * time.Second

const maxResponseBody = 1 << 20

// HTTPAnalyzer posts requests to a JSON analysis endpoint.
type HTTPAnalyzer struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPAnalyzer creates an analyzer for endpoint. A zero timeout uses
// DefaultTimeout.
func NewHTTPAnalyzer(endpoint string, timeout time.Duration) *HTTPAnalyzer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPAnalyzer{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// Analyze posts req and decodes the reply.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analyzer unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read analyzer response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorBody
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("analyzer error (%d): %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("analyzer error (%d)", resp.StatusCode)
	}

	var analysis Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analyzer response: %w", err)
	}
	if analysis.Text() == "" {
		var e errorBody
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("analyzer error: %s", e.Error)
		}
		return nil, fmt.Errorf("analyzer returned an unexpected response")
	}
	return &analysis, nil
}
