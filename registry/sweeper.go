package registry

import (
	"context"
	"log/slog"
	"time"
)

// DefaultLivenessWindow is how long a worker may go without a heartbeat
// before it is presumed dead.
const DefaultLivenessWindow = 10 * time.Second

// Sweeper periodically evicts workers whose heartbeats have gone stale.
type Sweeper struct {
	registry *LivenessRegistry
	window   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// SweeperOption configures the sweeper
type SweeperOption func(*Sweeper)

// WithLivenessWindow sets the staleness window.
func WithLivenessWindow(window time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.window = window
	}
}

// WithSweepInterval sets how often the sweep runs.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = interval
	}
}

// WithSweeperLogger sets the logger.
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// NewSweeper creates a sweeper over the given registry.
func NewSweeper(registry *LivenessRegistry, options ...SweeperOption) *Sweeper {
	s := &Sweeper{
		registry: registry,
		window:   DefaultLivenessWindow,
		interval: DefaultLivenessWindow / 2,
		logger:   slog.Default(),
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// SweepOnce evicts all currently stale workers and returns their ids.
func (s *Sweeper) SweepOnce() []string {
	stale := s.registry.Stale(s.window)
	for _, id := range stale {
		s.registry.Unregister(id)
		s.logger.Info("evicted stale worker",
			"workerId", id,
			"window", s.window,
		)
	}
	return stale
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
