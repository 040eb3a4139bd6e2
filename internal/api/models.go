package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/goodtune/tabtime/internal/storage"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// SuccessResponse represents a generic success response.
type SuccessResponse struct {
	Message string `json:"message"`
}

// UsageResponse is the usage record plus derived totals.
type UsageResponse struct {
	Usage        storage.Usage         `json:"usage"`
	Entries      []storage.DomainUsage `json:"entries"`
	TotalSeconds int64                 `json:"total_seconds"`
}

// EventsResponse reports what happened to a batch of posted messages.
type EventsResponse struct {
	Received int `json:"received"`
	Handled  int `json:"handled"`
}

// AnalyzeResponse carries coaching advice.
type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"bridge_connections"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
