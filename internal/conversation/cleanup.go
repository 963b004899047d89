package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

// DefaultSweepInterval is how often the sweeper looks for idle sessions.
const DefaultSweepInterval = time.Minute

// Sweeper periodically removes idle sessions from a Store.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewSweeper creates a sweeper for store. A non-positive interval falls back
// to DefaultSweepInterval.
func NewSweeper(store *Store, interval time.Duration, logger *logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Start begins periodic cleanup. Calling Start on a running sweeper is a
// no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(sweepCtx)
}

// Stop halts the sweeper and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.store.CleanupExpired(); removed > 0 {
				s.logger.Debug("expired idle sessions", "removed", removed, "remaining", s.store.Len())
			}
		}
	}
}
