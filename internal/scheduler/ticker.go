package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pronicx/solidtime-cli/internal/session"
)

// Scheduler drives the two periodic refresh triggers: a short-period
// active-entry refresh and a longer-period catalog refresh. An interval
// of zero disables that trigger. Rearming always cancels the old ticker
// before starting a new one, so changing intervals never leaks a
// duplicate.
type Scheduler struct {
	session *session.Session
	logger  *slog.Logger

	mu          sync.Mutex
	stopActive  func()
	stopCatalog func()
	wg          sync.WaitGroup
}

func New(sess *session.Session, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		session: sess,
		logger:  logger,
	}
}

// Run arms both tickers and blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, activeInterval, catalogInterval time.Duration) {
	s.SetIntervals(ctx, activeInterval, catalogInterval)
	<-ctx.Done()
	s.Stop()
}

// SetIntervals cancels any armed tickers, waits for their loops to
// exit, and rearms them with the given intervals.
func (s *Scheduler) SetIntervals(ctx context.Context, activeInterval, catalogInterval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopActive != nil {
		s.stopActive()
		s.stopActive = nil
	}
	if s.stopCatalog != nil {
		s.stopCatalog()
		s.stopCatalog = nil
	}

	if activeInterval > 0 {
		s.stopActive = s.arm(ctx, "active entry", activeInterval, func(tickCtx context.Context) {
			if err := s.session.Refresh(tickCtx); err != nil {
				s.logger.Debug("active entry refresh failed", "error", err)
			}
		})
	}
	if catalogInterval > 0 {
		s.stopCatalog = s.arm(ctx, "catalog", catalogInterval, func(tickCtx context.Context) {
			if err := s.session.RefreshCatalog(tickCtx); err != nil {
				s.logger.Debug("catalog refresh failed", "error", err)
			}
		})
	}
}

// Stop cancels both tickers and waits for their loops to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopActive != nil {
		s.stopActive()
		s.stopActive = nil
	}
	if s.stopCatalog != nil {
		s.stopCatalog()
		s.stopCatalog = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// arm starts a ticker loop and returns a stop func that cancels the
// loop and blocks until it has exited, so a rearmed ticker never
// overlaps the one it replaces.
func (s *Scheduler) arm(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) func() {
	tickCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Debug("ticker armed", "name", name, "interval", interval)
		for {
			select {
			case <-tickCtx.Done():
				s.logger.Debug("ticker stopped", "name", name)
				return
			case <-ticker.C:
				fn(tickCtx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
