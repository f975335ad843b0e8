package engines

import (
	"context"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/google/uuid"
)

// DefaultDeletionInterval is how often the deletion dispatcher sweeps
// for files with pending-deletion locations.
const DefaultDeletionInterval = 5 * time.Second

// DefaultDeletionBatch bounds how many delete jobs are queued per file
// system per cycle, so one very large unlink doesn't starve every
// other file system's queue in a single tick.
const DefaultDeletionBatch = 64

// DeletionDispatcher drains File.UnlinkedLocations (spec §4.4): for
// every file system still carrying a replica a client unlinked, it
// queues a delete job. Physical removal is confirmed asynchronously,
// by whatever eventually calls namespace.Store.ConfirmReplicaDeleted
// (the worker/transport layer's commit path).
type DeletionDispatcher struct {
	store *namespace.Store
	view  *clusterview.View
	batch int
}

// NewDeletionDispatcher builds a DeletionDispatcher with
// DefaultDeletionBatch as its per-fs per-cycle limit.
func NewDeletionDispatcher(store *namespace.Store, view *clusterview.View) *DeletionDispatcher {
	return &DeletionDispatcher{store: store, view: view, batch: DefaultDeletionBatch}
}

func (d *DeletionDispatcher) Name() string          { return "deletion" }
func (d *DeletionDispatcher) Interval() time.Duration { return DefaultDeletionInterval }

func (d *DeletionDispatcher) RunOnce(ctx context.Context) error {
	for _, fs := range d.view.ListFileSystems() {
		ids := d.store.FSView().UnlinkedFiles(fs.ID)
		queued := 0
		for _, id := range ids {
			if queued >= d.batch {
				break
			}
			if hasFileJob(fs.ExternQueue, id) {
				continue
			}
			job := &types.TransferJob{
				ID:        "delete-" + uuid.NewString(),
				FileID:    id,
				SourceFsID: fs.ID,
				Kind:      types.TransferDelete,
				CreatedAt: time.Now(),
			}
			if enqueue(&fs.ExternQueue, job) {
				queued++
			}
		}
		if queued > 0 {
			if err := d.view.UpsertFileSystem(fs); err != nil {
				return err
			}
		}
	}
	return nil
}
