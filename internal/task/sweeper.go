package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically deletes task records whose retention window has
// passed. Expiry is a retention boundary for cleanup only, never an
// execution deadline.
type Sweeper struct {
	orchestrator *Orchestrator
	interval     time.Duration
	logger       *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewSweeper creates a Sweeper that runs every interval.
func NewSweeper(orchestrator *Orchestrator, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Sweeper{
		orchestrator: orchestrator,
		interval:     interval,
		logger:       logger.With("component", "task_sweeper"),
		ctx:          ctx,
		cancelFunc:   cancel,
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the sweep loop and waits for it to finish.
func (s *Sweeper) Stop() {
	s.cancelFunc()
	s.wg.Wait()
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			deleted, err := s.orchestrator.DeleteExpiredTasks(s.ctx, time.Now().UTC())
			if err != nil {
				s.logger.Error("expiry sweep failed", "error", err)
				continue
			}
			s.logger.Debug("expiry sweep finished", "deleted", deleted)
		}
	}
}
