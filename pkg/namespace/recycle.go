package namespace

import (
	"fmt"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/changelog"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// RecycleRoot is the virtual container tree the recycle-bin policy
// moves unlinked files under, one subdirectory per owning uid (spec
// §2 item 8, not detailed further among the distilled §4 operations).
const RecycleRoot = "/proc/recycle"

// RecycleFile implements the recycle-bin policy: instead of detaching
// p and scheduling its replicas for physical deletion right away, it
// renames the file under RecycleRoot/<uid>, tagging it with its
// original path and the time it was recycled. The file keeps its live
// Locations; physical deletion only happens once the LRU engine ages
// it out of the bin, at which point it goes through the ordinary
// UnlinkFile path like any other deletion.
func (s *Store) RecycleFile(p string, uid uint32) error {
	f, err := s.GetFile(p)
	if err != nil {
		return err
	}

	dir := fmt.Sprintf("%s/%d", RecycleRoot, uid)
	if _, err := s.CreateContainer(dir, 0, 0, 0700, true); err != nil {
		if kind, _ := mgmerr.KindOf(err); kind != mgmerr.ExistingEntry {
			return err
		}
	}

	dst := fmt.Sprintf("%s/%d-%s", dir, f.ID, f.Name)
	if err := s.Rename(p, dst, 0, 0); err != nil {
		return err
	}

	moved, err := s.GetFile(dst)
	if err != nil {
		return err
	}
	if moved.Xattrs == nil {
		moved.Xattrs = map[string]string{}
	}
	moved.Xattrs["sys.recycle.origpath"] = p
	moved.Xattrs["sys.recycle.time"] = time.Now().UTC().Format(time.RFC3339)
	return s.UpdateFile(moved)
}

// SampleLiveFile returns an arbitrary file id still holding a live
// replica on fsid, used by the balancer and drain-coordinator engines
// to pick one file to move per cycle rather than enumerating a file
// system's whole live set at once (spec §4.9: engines make bounded
// per-tick progress, not whole-fs sweeps).
func (s *Store) SampleLiveFile(fsid uint32) (types.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fsview.sampleLive(fsid)
}

// ConfirmReplicaDeleted removes fsid from file id's pending-deletion
// set, the namespace-side counterpart to the write path's Commit
// (spec §4.8): a target file system's post-delete callback is the
// only intended caller, via the deletion-dispatcher engine. Once the
// set is empty and the file is unlinked, it is purged from the
// namespace entirely.
func (s *Store) ConfirmReplicaDeleted(id types.ID, fsid uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil
	}
	f.UnlinkedLocations = removeU32(f.UnlinkedLocations, fsid)
	s.fsview.removeUnlinked(fsid, id)

	if !f.Unlinked || len(f.UnlinkedLocations) > 0 {
		_, err := s.appendFile(changelog.TagUpdate, f)
		return err
	}
	return s.purgeFileLocked(f)
}
