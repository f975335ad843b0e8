package engines

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
)

// DefaultFsckInterval paces the full-namespace scan. It's a heavier
// pass than the other engines, so it runs far less often.
const DefaultFsckInterval = 5 * time.Minute

// Fsck scans every file for a location pointing at a file system the
// cluster view no longer knows about (spec §4.9), a condition that
// can't be caught incrementally because the file system that vanished
// may have done so long after the file was last touched. The report
// it assembles is exposed to the `fsck` proc command via
// proc.Dispatcher.AttachFsck rather than logged on its own, since an
// admin, not the log, is the consumer.
type Fsck struct {
	store *namespace.Store
	view  *clusterview.View

	mu       sync.Mutex
	lastRun  time.Time
	orphans  map[string][]uint32 // file id string -> missing fs-ids
}

func NewFsck(store *namespace.Store, view *clusterview.View) *Fsck {
	return &Fsck{store: store, view: view, orphans: make(map[string][]uint32)}
}

func (f *Fsck) Name() string            { return "fsck" }
func (f *Fsck) Interval() time.Duration { return DefaultFsckInterval }

func (f *Fsck) RunOnce(ctx context.Context) error {
	known := make(map[uint32]bool)
	for _, fs := range f.view.ListFileSystems() {
		known[fs.ID] = true
	}

	orphans := make(map[string][]uint32)
	for _, file := range f.store.Files() {
		if file.Unlinked {
			continue
		}
		var missing []uint32
		for _, loc := range file.Locations {
			if !known[loc] {
				missing = append(missing, loc)
			}
		}
		if len(missing) > 0 {
			orphans[fmt.Sprintf("%d", file.ID)] = missing
		}
	}

	f.mu.Lock()
	f.orphans = orphans
	f.lastRun = time.Now()
	f.mu.Unlock()
	return nil
}

// Report renders the last scan's findings as text, suitable for the
// fsck proc command's reply payload.
func (f *Fsck) Report() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lastRun.IsZero() {
		return "fsck: no scan has run yet"
	}
	if len(f.orphans) == 0 {
		return fmt.Sprintf("fsck: clean, last scan %s", f.lastRun.Format(time.RFC3339))
	}

	ids := make([]string, 0, len(f.orphans))
	for id := range f.orphans {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "fsck: %d file(s) with missing locations, last scan %s\n", len(f.orphans), f.lastRun.Format(time.RFC3339))
	for _, id := range ids {
		fmt.Fprintf(&b, "  fid=%s missing=%v\n", id, f.orphans[id])
	}
	return b.String()
}
