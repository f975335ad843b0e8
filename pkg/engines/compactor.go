package engines

import (
	"context"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
)

// DefaultCompactorInterval paces change-log compaction. Infrequent,
// since it rewrites both logs in full.
const DefaultCompactorInterval = time.Hour

// Compactor rewrites the namespace's change logs, keeping only the
// newest record per id (spec §4.10). It is LeaderOnly: a replica
// replays the master's logs as written and must never compact them
// out from under its own replay position.
type Compactor struct {
	store *namespace.Store
}

func NewCompactor(store *namespace.Store) *Compactor {
	return &Compactor{store: store}
}

func (c *Compactor) Name() string            { return "compactor" }
func (c *Compactor) Interval() time.Duration { return DefaultCompactorInterval }
func (c *Compactor) RequiresLeader() bool    { return true }

func (c *Compactor) RunOnce(ctx context.Context) error {
	return c.store.Compact()
}
