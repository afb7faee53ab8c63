// Package scheduler drives agent heartbeats. The runtime itself never
// loops or sleeps; this package is the external caller that triggers
// wakes on each agent's interval.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crewdhq/crewd/pkg/agent"
	"github.com/crewdhq/crewd/pkg/logger"
)

// Scheduler owns one goroutine per agent runtime. Wakes are
// non-overlapping per agent by construction: a single goroutine ticks
// each agent, and the runtime's own mutex covers any external misuse.
type Scheduler struct {
	runtimes        []*agent.Runtime
	defaultInterval time.Duration
	wakeTimeout     time.Duration
}

// New creates a scheduler over the given runtimes.
func New(runtimes []*agent.Runtime, defaultInterval, wakeTimeout time.Duration) *Scheduler {
	return &Scheduler{
		runtimes:        runtimes,
		defaultInterval: defaultInterval,
		wakeTimeout:     wakeTimeout,
	}
}

// Run ticks every agent until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, rt := range s.runtimes {
		rt := rt
		g.Go(func() error {
			s.runAgent(ctx, rt)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) runAgent(ctx context.Context, rt *agent.Runtime) {
	interval := rt.Agent().WakeInterval
	if interval <= 0 {
		interval = s.defaultInterval
	}

	log := logger.Get().With("agent", rt.Agent().ID, "interval", interval.String())
	log.Info("heartbeat started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("heartbeat stopped")
			return
		case <-ticker.C:
			// The deadline flows into every store and AI call of the
			// cycle; an expired cycle fails like any other error and
			// the runtime goes offline, preserving the fail-safe
			// contract.
			wakeCtx, cancel := context.WithTimeout(ctx, s.wakeTimeout)
			rt.Wake(wakeCtx)
			cancel()
		}
	}
}
