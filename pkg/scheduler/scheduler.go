package scheduler

import (
	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/rs/zerolog"
)

// Scheduler implements the Placement and Access operations (spec
// §4.5) against a cluster view and a quota index. Both operations are
// read-only with respect to the view, generalizing the teacher's
// scheduler.mu.RLock pattern to the view's own internal locking
// (spec §5: cluster-view lock, readers dominate).
type Scheduler struct {
	view   *clusterview.View
	quota  *namespace.QuotaIndex
	logger zerolog.Logger
}

// New builds a Scheduler reading file-system state from view and
// quota accounting from quota. quota may be nil for callers that
// never enforce per-uid/gid limits (e.g. unit tests of placement
// capacity logic alone).
func New(view *clusterview.View, quota *namespace.QuotaIndex) *Scheduler {
	return &Scheduler{
		view:   view,
		quota:  quota,
		logger: log.WithComponent("scheduler"),
	}
}

func containsU32(s []uint32, v uint32) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
