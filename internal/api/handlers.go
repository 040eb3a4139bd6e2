package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goodtune/tabtime/internal/bridge"
	"github.com/goodtune/tabtime/internal/coach"
	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/report"
)

const maxEventsBody = 1 << 20

type connectionCounter interface {
	Connections() int
}

// originPermitted reports whether a state-changing request may proceed.
// Requests without an Origin header (the CLI, curl) and same-origin requests
// from the dashboard always pass.
func (s *Server) originPermitted(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || OriginAllowed(s.config.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host != "" && u.Host == r.Host
}

func (s *Server) rejectOrigin(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("origin", r.Header.Get("Origin")).
		Str("path", r.URL.Path).
		Msg("Rejected request from foreign origin")
	writeError(w, http.StatusForbidden, "Origin not allowed")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if counter, ok := s.ws.(connectionCounter); ok {
		resp.Connections = counter.Connections()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	u, err := s.ledger.Usage(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read usage")
		writeError(w, http.StatusInternalServerError, "Failed to read usage")
		return
	}

	writeJSON(w, http.StatusOK, UsageResponse{
		Usage:        u,
		Entries:      u.Sorted(),
		TotalSeconds: u.Total(),
	})
}

func (s *Server) handleResetUsage(w http.ResponseWriter, r *http.Request) {
	if !s.originPermitted(r) {
		s.rejectOrigin(w, r)
		return
	}

	if err := s.tracker.ResetUsage(r.Context(), s.ledger); err != nil {
		s.logger.Error().Err(err).Msg("Failed to reset usage")
		writeError(w, http.StatusInternalServerError, "Failed to reset usage")
		return
	}

	metrics.ResetsTotal.WithLabelValues("api").Inc()
	s.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Usage reset")
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "Usage reset"})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	top := s.config.TopSites
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		top = n
	}

	u, err := s.ledger.Usage(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read usage")
		writeError(w, http.StatusInternalServerError, "Failed to read usage")
		return
	}

	writeJSON(w, http.StatusOK, report.Build(u, report.Options{TopSites: top}))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.originPermitted(r) {
		s.rejectOrigin(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventsBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(body) > maxEventsBody {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	msgs, err := bridge.Decode(body)
	if err != nil {
		metrics.EventsTotal.WithLabelValues("malformed").Inc()
		writeError(w, http.StatusBadRequest, "Invalid message")
		return
	}

	// Flushes triggered by these events must complete even if the client
	// goes away mid-request.
	handled := s.events.Dispatch(context.WithoutCancel(r.Context()), msgs)
	writeJSON(w, http.StatusAccepted, EventsResponse{Received: len(msgs), Handled: handled})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.originPermitted(r) {
		s.rejectOrigin(w, r)
		return
	}
	if s.config.Coach == nil {
		writeError(w, http.StatusServiceUnavailable, coach.ErrNotConfigured.Error())
		return
	}

	analysis, err := s.config.Coach.Analyze(r.Context())
	switch {
	case errors.Is(err, coach.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, coach.ErrNoData):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{Analysis: analysis.Text()})
}
