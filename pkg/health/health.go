// Package health tracks file-system liveness from heartbeat age, the
// internal signal behind the cluster view's Active axis (spec §4.4).
// Its one consumer is pkg/proc's "fs heartbeat" command (attached via
// Dispatcher.WithHealth), which records each heartbeat and sets the
// file system's Active status from Status right after; nothing
// re-evaluates Status later, so a file system whose heartbeats stop
// keeps its last Active value. It is never exposed as an HTTP
// endpoint, since monitoring exporters are out of scope.
package health

import (
	"sync"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// Monitor tracks the most recent heartbeat timestamp per file system
// and derives ActiveStatus from how stale it is.
type Monitor struct {
	mu        sync.RWMutex
	lastSeen  map[uint32]time.Time
	threshold time.Duration
}

// NewMonitor returns a Monitor that considers a file system offline
// once its heartbeat is older than threshold.
func NewMonitor(threshold time.Duration) *Monitor {
	return &Monitor{
		lastSeen:  make(map[uint32]time.Time),
		threshold: threshold,
	}
}

// Heartbeat records a heartbeat for fsid at t.
func (m *Monitor) Heartbeat(fsid uint32, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen[fsid] = t
}

// Status derives the current ActiveStatus for fsid as of now.
func (m *Monitor) Status(fsid uint32, now time.Time) types.ActiveStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	last, ok := m.lastSeen[fsid]
	if !ok || now.Sub(last) > m.threshold {
		return types.ActiveOffline
	}
	return types.ActiveOnline
}

// Forget removes fsid's tracked heartbeat, used once a file system is
// deregistered from the cluster view.
func (m *Monitor) Forget(fsid uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastSeen, fsid)
}
