// Package engines implements the CORE's background maintenance tasks
// (spec §4.9): deletion dispatcher, balancer, drain coordinator, fsck,
// LRU recycle-bin expiry, and change-log compaction. Each is a named
// task with its own tick period that snapshots what it needs under the
// namespace/cluster-view locks, releases them, and then acts (spec §5,
// §9) — none of them ever hold a lock across a call into another
// engine or across the (simulated, in this CORE) network hop to a file
// system.
package engines

import (
	"context"
	"sync"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/metrics"
	"github.com/rs/zerolog"
)

// Engine is one named background task. RunOnce performs a single
// bounded cycle of work; the Manager calls it on Interval.
type Engine interface {
	Name() string
	Interval() time.Duration
	RunOnce(ctx context.Context) error
}

// LeaderOnly is implemented by engines that must be a no-op unless
// this process holds the replication master role (spec §4.10's
// compactor is the only one today, but the interface generalizes).
type LeaderOnly interface {
	RequiresLeader() bool
}

// Manager runs a fixed set of engines, each on its own ticker,
// grounded in the teacher's single-ticker reconciliation loop
// (pkg/reconciler) generalized to N independently-paced tasks instead
// of one fixed 10-second cycle.
type Manager struct {
	engines  []Engine
	isLeader func() bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger zerolog.Logger
}

// NewManager builds a Manager. isLeader is consulted before every
// cycle of a LeaderOnly engine; pass a func that always returns true
// for a single-node deployment.
func NewManager(isLeader func() bool, engines ...Engine) *Manager {
	return &Manager{
		engines:  engines,
		isLeader: isLeader,
		logger:   log.WithComponent("engines"),
	}
}

// Start launches one goroutine per engine. Calling Start twice without
// an intervening Stop is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})

	for _, e := range m.engines {
		m.wg.Add(1)
		go m.run(e, m.stopCh)
	}
}

// Stop signals every engine's goroutine to exit and waits for them.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) run(e Engine, stopCh chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(e.Interval())
	defer ticker.Stop()

	m.logger.Info().Str("engine", e.Name()).Dur("interval", e.Interval()).Msg("engine started")

	for {
		select {
		case <-ticker.C:
			m.cycle(e)
		case <-stopCh:
			m.logger.Info().Str("engine", e.Name()).Msg("engine stopped")
			return
		}
	}
}

func (m *Manager) cycle(e Engine) {
	if lo, ok := e.(LeaderOnly); ok && lo.RequiresLeader() && !m.isLeader() {
		return
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.EngineCycleDuration, e.Name())

	if err := e.RunOnce(context.Background()); err != nil {
		metrics.EngineErrorsTotal.WithLabelValues(e.Name()).Inc()
		m.logger.Error().Err(err).Str("engine", e.Name()).Msg("engine cycle failed")
	}
}
