package usage

import (
	"context"
	"time"

	"github.com/goodtune/tabtime/internal/clock"
	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/rs/zerolog"
)

const resetTimeout = 10 * time.Second

// Resetter clears the usage record. *Ledger implements it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ResetFunc adapts a function to Resetter.
type ResetFunc func(ctx context.Context) error

// Reset calls f(ctx).
func (f ResetFunc) Reset(ctx context.Context) error {
	return f(ctx)
}

// ResetScheduler manages daily usage resets
type ResetScheduler struct {
	resetter  Resetter
	resetTime time.Time // Time of day to reset (only hour and minute are used)
	clock     clock.Clock
	logger    zerolog.Logger
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewResetScheduler creates a new reset scheduler
func NewResetScheduler(resetter Resetter, resetTime string, clk clock.Clock, logger zerolog.Logger) (*ResetScheduler, error) {
	// Parse reset time (HH:MM format)
	parsedTime, err := time.Parse("15:04", resetTime)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	rs := &ResetScheduler{
		resetter:  resetter,
		resetTime: parsedTime,
		clock:     clk,
		logger:    logger.With().Str("component", "reset-scheduler").Logger(),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}

	return rs, nil
}

// Start begins the reset scheduler
func (rs *ResetScheduler) Start() {
	go rs.run()
	rs.logger.Info().
		Str("reset_time", rs.resetTime.Format("15:04")).
		Msg("Daily usage reset scheduler started")
}

// Stop stops the reset scheduler and waits for the loop to exit
func (rs *ResetScheduler) Stop() {
	close(rs.stopChan)
	<-rs.doneChan
	rs.logger.Info().Msg("Daily usage reset scheduler stopped")
}

// run is the main scheduler loop
func (rs *ResetScheduler) run() {
	defer close(rs.doneChan)

	for {
		nextReset := rs.calculateNextReset()
		waitDuration := nextReset.Sub(rs.clock.Now())

		rs.logger.Info().
			Time("next_reset", nextReset).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next daily reset")

		select {
		case <-time.After(waitDuration):
			rs.performReset()
		case <-rs.stopChan:
			return
		}
	}
}

// calculateNextReset calculates the next reset time
func (rs *ResetScheduler) calculateNextReset() time.Time {
	now := rs.clock.Now()

	todayReset := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.resetTime.Hour(), rs.resetTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already passed today's reset time, schedule for tomorrow
	if !now.Before(todayReset) {
		return todayReset.AddDate(0, 0, 1)
	}

	return todayReset
}

// performReset clears the usage record
func (rs *ResetScheduler) performReset() {
	rs.logger.Info().Msg("Performing daily usage reset")

	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()

	if err := rs.resetter.Reset(ctx); err != nil {
		metrics.ResetsTotal.WithLabelValues("schedule_failed").Inc()
		rs.logger.Error().Err(err).Msg("Failed to reset usage")
		return
	}

	metrics.ResetsTotal.WithLabelValues("schedule").Inc()
	rs.logger.Info().Msg("Daily usage reset complete")
}
