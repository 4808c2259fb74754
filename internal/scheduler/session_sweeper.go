package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = time.Hour

// Sweeper drops expired entries and reports how many were removed.
type Sweeper interface {
	Sweep() int
}

// SessionSweeper periodically removes expired sessions from an in-memory
// registry. Redis-backed registries expire keys on their own and need none.
type SessionSweeper struct {
	registry Sweeper
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionSweeper creates a new sweeper
func NewSessionSweeper(registry Sweeper, log logger.Logger, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &SessionSweeper{
		registry: registry,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval until Stop is
// called or ctx is done.
func (s *SessionSweeper) Start(ctx context.Context) {
	s.Collect()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Collect()
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the sweeper. It is safe to call more than once.
func (s *SessionSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Collect sweeps once and returns the number of sessions dropped.
func (s *SessionSweeper) Collect() int {
	n := s.registry.Sweep()
	if n > 0 {
		s.logger.Info("expired sessions swept",
			logger.Int("removed", n))
	} else {
		s.logger.Debug("no expired sessions to sweep")
	}
	return n
}
