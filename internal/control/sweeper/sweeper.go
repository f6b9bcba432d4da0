// Package sweeper runs the periodic timeout sweep over pending Controls.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"efti-gate/internal/control/service"
)

// Sweeps is the part of the control service the sweeper drives.
type Sweeps interface {
	SweepTimeouts(ctx context.Context, now time.Time) (service.SweepReport, error)
}

// Sweeper calls SweepTimeouts on every tick. A failed pass is logged and the
// next tick tries again.
type Sweeper struct {
	sweeps   Sweeps
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func New(sweeps Sweeps, interval time.Duration, opts ...Option) (*Sweeper, error) {
	if sweeps == nil {
		return nil, errors.New("control service is required")
	}
	if interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	s := &Sweeper{
		sweeps:   sweeps,
		interval: interval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SweepOnce runs a single pass at the sweeper's clock.
func (s *Sweeper) SweepOnce(ctx context.Context) service.SweepReport {
	report, err := s.sweeps.SweepTimeouts(ctx, s.now())
	if err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "timeout sweep failed", "error", err)
	}
	return report
}
