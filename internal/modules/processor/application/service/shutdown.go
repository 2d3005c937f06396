package service

import (
	"context"
	"io"
	"sync"
	"time"

	"MarketFlow/internal/modules/processor/domain/topic"
	"MarketFlow/pkg/zlog"

	"go.uber.org/zap"
)

// ShutdownCoordinator owns the running flag shared by the monitor and every
// worker. The flag is the coordinator's context: it is cancelled exactly once.
type ShutdownCoordinator struct {
	ctx         context.Context
	cancel      context.CancelFunc
	registry    *Registry
	joinTimeout time.Duration
	closers     []io.Closer

	mu      sync.Mutex
	waitFor []tracked

	once      sync.Once
	abandoned []topic.PartitionKey
}

// NewShutdownCoordinator derives the running context from parent. closers
// are closed after the workers have been joined, in order.
func NewShutdownCoordinator(parent context.Context, registry *Registry, joinTimeout time.Duration, closers ...io.Closer) *ShutdownCoordinator {
	if joinTimeout <= 0 {
		joinTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(parent)
	return &ShutdownCoordinator{
		ctx:         ctx,
		cancel:      cancel,
		registry:    registry,
		joinTimeout: joinTimeout,
		closers:     closers,
	}
}

type tracked struct {
	name string
	done <-chan struct{}
}

// Track makes Shutdown wait, within the join timeout, for done to close
// before it collects the workers to join. The monitor is tracked so that a
// worker it is still starting is either joined or never run.
func (s *ShutdownCoordinator) Track(name string, done <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitFor = append(s.waitFor, tracked{name: name, done: done})
}

// Context is passed to the monitor and, through it, to every worker.
func (s *ShutdownCoordinator) Context() context.Context { return s.ctx }

func (s *ShutdownCoordinator) Running() bool { return s.ctx.Err() == nil }

// Shutdown clears the running flag, waits for the tracked goroutines, joins
// every registered worker with the join timeout and closes the closers. Workers that do not exit in time are
// abandoned and returned. Calls after the first return the same result.
func (s *ShutdownCoordinator) Shutdown() []topic.PartitionKey {
	s.once.Do(func() {
		s.cancel()
		s.awaitTracked()
		handles := s.registry.Handles()
		zlog.Info("shutting down partition workers", zap.Int("workers", len(handles)))

		for _, h := range handles {
			if h.Wait(s.joinTimeout) {
				continue
			}
			s.abandoned = append(s.abandoned, h.Key)
			zlog.Warn("partition worker did not stop in time",
				zap.String("topic", h.Key.Topic),
				zap.Int32("partition", h.Key.Partition),
				zap.Duration("timeout", s.joinTimeout))
		}

		for _, c := range s.closers {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil {
				zlog.Warn("close failed during shutdown", zap.Error(err))
			}
		}
		zlog.Info("partition workers stopped", zap.Int("abandoned", len(s.abandoned)))
	})
	return s.abandoned
}

func (s *ShutdownCoordinator) awaitTracked() {
	s.mu.Lock()
	waitFor := append([]tracked(nil), s.waitFor...)
	s.mu.Unlock()

	for _, tr := range waitFor {
		timer := time.NewTimer(s.joinTimeout)
		select {
		case <-tr.done:
		case <-timer.C:
			zlog.Warn("goroutine did not stop in time",
				zap.String("name", tr.name),
				zap.Duration("timeout", s.joinTimeout))
		}
		timer.Stop()
	}
}
