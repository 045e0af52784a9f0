package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type TickFunc func(ctx context.Context) error

// Interval drives a polling loop: one tick immediately on start, then one per
// interval until the context is cancelled. A failing tick is logged and the
// loop keeps running.
type Interval struct {
	interval time.Duration
	fn       TickFunc
	logger   *slog.Logger

	// ticks overrides the timer source in tests.
	ticks <-chan time.Time
}

func NewInterval(interval time.Duration, fn TickFunc, logger *slog.Logger) *Interval {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interval{
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
}

func (s *Interval) Run(ctx context.Context) error {
	ticks := s.ticks
	if ticks == nil {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			s.tick(ctx)
		}
	}
}

func (s *Interval) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.fn(ctx); err != nil {
		s.logger.Error("tick_failed", "error", err)
	}
}
