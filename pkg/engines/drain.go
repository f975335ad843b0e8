package engines

import (
	"context"
	"fmt"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/events"
	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultDrainInterval paces the state-machine tick and per-fs file
// draining rate.
const DefaultDrainInterval = 10 * time.Second

// DefaultDrainBatch bounds how many files get a drain job per file
// system per cycle, matching the deletion dispatcher's bounded design.
const DefaultDrainBatch = 32

// DrainCoordinator drives types.FileSystem.Drain through
// prepare -> wait -> draining -> drained/lostfiles (spec §4.4); it
// never sets the expired state. Draining is triggered either by an admin setting Config to ConfigDrain or
// by the cluster view's error-count listener firing on an
// already-faulted file system. It subscribes itself to the view at
// construction, as clusterview.ErrorListener's doc comment anticipates.
type DrainCoordinator struct {
	store  *namespace.Store
	view   *clusterview.View
	broker *events.Broker
	logger zerolog.Logger
}

func NewDrainCoordinator(store *namespace.Store, view *clusterview.View) *DrainCoordinator {
	d := &DrainCoordinator{store: store, view: view, logger: log.WithComponent("drain")}
	view.Subscribe(d.onError)
	return d
}

// WithBroker attaches an event broker; a nil broker is a silent
// no-op, so callers that don't care about notifications can skip it.
func (d *DrainCoordinator) WithBroker(b *events.Broker) *DrainCoordinator {
	d.broker = b
	return d
}

func (d *DrainCoordinator) publish(typ events.EventType, msg string, fsid uint32) {
	if d.broker == nil {
		return
	}
	d.broker.Publish(&events.Event{Type: typ, Message: msg, Metadata: map[string]string{"fsid": fmt.Sprint(fsid)}})
}

func (d *DrainCoordinator) Name() string            { return "drain" }
func (d *DrainCoordinator) Interval() time.Duration { return DefaultDrainInterval }

// onError starts a drain on any file system whose error count just
// went non-zero and that isn't already draining or offline for
// maintenance.
func (d *DrainCoordinator) onError(fsid uint32, errCode int) {
	if errCode == 0 {
		return
	}
	fs, err := d.view.FileSystem(fsid)
	if err != nil {
		return
	}
	if !drainIdle(fs.Drain) {
		return
	}
	fs.Drain = types.DrainPrepare
	if err := d.view.UpsertFileSystem(fs); err != nil {
		d.logger.Error().Err(err).Uint32("fsid", fsid).Msg("failed to start fault-triggered drain")
		return
	}
	d.publish(events.EventFileSystemFaulted, fmt.Sprintf("fs %d faulted (errc=%d), drain started", fsid, errCode), fsid)
}

// drainIdle reports whether a file system is not currently subject to
// any drain, treating both the explicit DrainNone value and the
// zero-value DrainStatus (a file system that has never been upserted
// with a Drain field set at all) as idle.
func drainIdle(d types.DrainStatus) bool {
	return d == "" || d == types.DrainNone
}

func (d *DrainCoordinator) RunOnce(ctx context.Context) error {
	for _, fs := range d.view.ListFileSystems() {
		if fs.Config == types.ConfigDrain && drainIdle(fs.Drain) {
			fs.Drain = types.DrainPrepare
			if err := d.advance(fs); err != nil {
				return err
			}
			continue
		}
		if err := d.step(fs); err != nil {
			return err
		}
	}
	return nil
}

func (d *DrainCoordinator) step(fs *types.FileSystem) error {
	switch fs.Drain {
	case types.DrainPrepare:
		fs.Drain = types.DrainWait
		return d.advance(fs)

	case types.DrainWait:
		fs.Drain = types.DrainDraining
		return d.advance(fs)

	case types.DrainDraining:
		return d.drainBatch(fs)

	default:
		return nil
	}
}

// advance persists fs's new Drain state and publishes a
// filesystem.drain_state event recording the transition.
func (d *DrainCoordinator) advance(fs *types.FileSystem) error {
	if err := d.view.UpsertFileSystem(fs); err != nil {
		return err
	}
	d.publish(events.EventFileSystemDrainState, fmt.Sprintf("fs %d drain state -> %s", fs.ID, fs.Drain), fs.ID)
	return nil
}

func (d *DrainCoordinator) drainBatch(fs *types.FileSystem) error {
	queued := 0
	changed := false
	for queued < DefaultDrainBatch {
		fileID, ok := d.store.SampleLiveFile(fs.ID)
		if !ok {
			break
		}
		if hasFileJob(fs.DrainQueue, fileID) {
			break
		}
		target := d.pickDrainTarget(fs)
		if target == 0 {
			fs.Drain = types.DrainLostFiles
			changed = true
			break
		}
		job := &types.TransferJob{
			ID:        "drain-" + uuid.NewString(),
			FileID:    fileID,
			SourceFsID: fs.ID,
			TargetFsID: target,
			Kind:      types.TransferDrain,
			CreatedAt: time.Now(),
		}
		if !enqueue(&fs.DrainQueue, job) {
			break
		}
		queued++
		changed = true
	}
	if queued == 0 && len(fs.DrainQueue.Jobs) == 0 {
		_, more := d.store.SampleLiveFile(fs.ID)
		if !more {
			fs.Drain = types.DrainDrained
			changed = true
		}
	}
	if changed {
		return d.advance(fs)
	}
	return nil
}

// pickDrainTarget returns the least-filled other online read-write
// file system in the same group, or 0 if none is eligible (spec
// §4.4's lostfiles case: a group with no surviving healthy member).
func (d *DrainCoordinator) pickDrainTarget(fs *types.FileSystem) uint32 {
	var best *types.FileSystem
	for _, id := range d.view.FileSystemsInGroup(fs.Group) {
		if id == fs.ID {
			continue
		}
		candidate, err := d.view.FileSystem(id)
		if err != nil {
			continue
		}
		if candidate.Config != types.ConfigReadWrite || candidate.Active != types.ActiveOnline {
			continue
		}
		if best == nil || candidate.Filled < best.Filled {
			best = candidate
		}
	}
	if best == nil {
		return 0
	}
	return best.ID
}
