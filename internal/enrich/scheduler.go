// Package enrich implements the server's timer-driven enrichment agents
// (spec §4.5): the embedding worker, topic-shift detector, LLM processor,
// curation agent, and path tracker. Grounded on the teacher's Manager
// (memory-core/manager/manager.go) CAS-guarded sync loop, generalized from a
// single sync task to one ticker per agent.
package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kiosk404/agentmem/internal/logging"
)

// Agent is a timer-driven enrichment task.
type Agent interface {
	Name() string
	Interval() time.Duration
	Tick(ctx context.Context)
}

// Scheduler runs one ticker per registered agent, skipping a tick whose
// prior invocation is still running (spec §5 "a tick whose prior invocation
// is still running is skipped"), mirroring the teacher's
// `syncing.CompareAndSwap(false, true)` guard generalized per agent.
type Scheduler struct {
	agents []Agent
	busy   []atomic.Bool
	cancel context.CancelFunc
}

func NewScheduler(agents ...Agent) *Scheduler {
	return &Scheduler{
		agents: agents,
		busy:   make([]atomic.Bool, len(agents)),
	}
}

// Start launches one goroutine per agent. Each tick is wrapped in a
// recover() guard so a panicking agent never terminates the server (spec
// §4.5 "each tick is wrapped in a try/catch").
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i, agent := range s.agents {
		i, agent := i, agent
		ticker := time.NewTicker(agent.Interval())
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.runTick(ctx, i, agent)
				}
			}
		}()
	}
}

func (s *Scheduler) runTick(ctx context.Context, idx int, agent Agent) {
	if !s.busy[idx].CompareAndSwap(false, true) {
		return
	}
	defer s.busy[idx].Store(false)

	defer func() {
		if r := recover(); r != nil {
			logging.Error("enrich: agent %s panicked: %v", agent.Name(), r)
		}
	}()
	agent.Tick(ctx)
}

// Stop cancels all scheduled tickers.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
