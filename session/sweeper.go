package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs [Registry.Sweep] periodically in the background.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	onPass   func(removed int, err error)

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSweeper returns a stopped Sweeper. onPass, when non-nil, observes every pass.
func NewSweeper(r *Registry, interval time.Duration, onPass func(removed int, err error)) *Sweeper {
	timeout := interval
	if timeout <= 0 || timeout > time.Minute {
		timeout = time.Minute
	}
	return &Sweeper{
		registry: r,
		interval: interval,
		timeout:  timeout,
		log:      r.log,
		onPass:   onPass,
		done:     make(chan struct{}),
	}
}

// Start launches the background loop. It is a no-op for non-positive intervals
// and on repeated calls.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.run(ctx)
	})
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
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
			s.pass(ctx)
		}
	}
}

func (s *Sweeper) pass(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	removed, err := s.registry.Sweep(ctx)
	if err != nil {
		s.log.Warn("session: sweep failed", zap.Int("removed", removed), zap.Error(err))
	} else {
		s.log.Info("session: sweep finished", zap.Int("removed", removed), zap.Duration("took", time.Since(start)))
	}
	if s.onPass != nil {
		s.onPass(removed, err)
	}
}
