// Package coach asks an external analyzer for advice on the recorded usage.
package coach

import (
	"context"
	"errors"
	"math"

	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConfigured is returned when no analyzer backend is set.
	ErrNotConfigured = errors.New("no coaching backend configured")

	// ErrNoData is returned when there is no usage to analyze.
	ErrNoData = errors.New("no usage recorded yet")
)

// Entry is one domain in an analysis request. Time is in minutes, rounded to
// one decimal place.
type Entry struct {
	Domain string  `json:"domain"`
	Time   float64 `json:"time"`
}

// Request is the payload sent to the analyzer.
type Request struct {
	Usage []Entry `json:"usage"`
}

// Analysis is the analyzer's answer. Backends reply with either field.
type Analysis struct {
	Analysis string `json:"analysis,omitempty"`
	Advice   string `json:"advice,omitempty"`
}

// Text returns whichever of Analysis or Advice is set.
func (a *Analysis) Text() string {
	if a.Analysis != "" {
		return a.Analysis
	}
	return a.Advice
}

// Analyzer turns a usage summary into advice.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Analysis, error)
}

// UsageReader reads the usage record. *usage.Ledger implements it.
type UsageReader interface {
	Usage(ctx context.Context) (storage.Usage, error)
}

// Coach builds analysis requests from the ledger.
type Coach struct {
	analyzer Analyzer
	ledger   UsageReader
	logger   zerolog.Logger
}

// New creates a Coach. A nil analyzer leaves coaching disabled and every
// Analyze call fails with ErrNotConfigured.
func New(analyzer Analyzer, ledger UsageReader, logger zerolog.Logger) *Coach {
	return &Coach{
		analyzer: analyzer,
		ledger:   ledger,
		logger:   logger.With().Str("component", "coach").Logger(),
	}
}

// Enabled reports whether an analyzer is configured.
func (c *Coach) Enabled() bool {
	return c.analyzer != nil
}

// BuildRequest converts stored seconds to the analyzer payload, busiest
// domain first.
func BuildRequest(u storage.Usage) Request {
	entries := u.Sorted()
	req := Request{Usage: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		req.Usage = append(req.Usage, Entry{
			Domain: e.Domain,
			Time:   math.Round(float64(e.Seconds)/6) / 10,
		})
	}
	return req
}

// Analyze sends the current usage to the analyzer.
func (c *Coach) Analyze(ctx context.Context) (*Analysis, error) {
	if c.analyzer == nil {
		return nil, ErrNotConfigured
	}

	u, err := c.ledger.Usage(ctx)
	if err != nil {
		return nil, err
	}
	if len(u) == 0 {
		return nil, ErrNoData
	}

	req := BuildRequest(u)
	analysis, err := c.analyzer.Analyze(ctx, req)
	if err != nil {
		metrics.CoachRequests.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Int("domains", len(req.Usage)).Msg("Analysis failed")
		return nil, err
	}

	metrics.CoachRequests.WithLabelValues("ok").Inc()
	c.logger.Debug().Int("domains", len(req.Usage)).Msg("Analysis received")
	return analysis, nil
}
