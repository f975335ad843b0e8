package namespace

import (
	"bytes"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/changelog"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// CommitRequest carries the fields a file system's post-write callback
// sends (spec §4.8, wire form spec §6's commit message fields).
type CommitRequest struct {
	FileID   types.ID
	FsID     uint32
	Size     uint64
	MTime    time.Time
	Checksum []byte
	DropFsID uint32 // 0 means no drop

	VerifySize     bool
	CommitSize     bool
	VerifyChecksum bool
	CommitChecksum bool
	Replication    bool
}

// Commit applies a file system's post-write callback (spec §4.8): it
// either updates size, checksum, and locations together and accounts
// the quota delta, or leaves the file completely unchanged (spec §8's
// commit-atomicity invariant) — the working copy is fully built and
// validated before anything is written to the change log.
func (s *Store) Commit(req CommitRequest) (*types.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.files[req.FileID]
	if !ok {
		return nil, mgmerr.New(mgmerr.Gone, "commit on removed file %d", req.FileID)
	}
	if old.Unlinked {
		return nil, mgmerr.New(mgmerr.Gone, "commit on unlinked file %d", req.FileID)
	}
	if req.FsID == 0 {
		return nil, mgmerr.New(mgmerr.Invalid, "commit missing fs-id")
	}
	if req.Replication {
		if req.VerifySize && req.Size != old.Size {
			return nil, mgmerr.New(mgmerr.BadSize, "commit size %d does not match current size %d", req.Size, old.Size)
		}
		if req.VerifyChecksum && !bytes.Equal(req.Checksum, old.Checksum) {
			return nil, mgmerr.New(mgmerr.BadChecksum, "commit checksum mismatch for file %d", req.FileID)
		}
	}

	next := *old
	next.Locations = append([]uint32{}, old.Locations...)
	next.UnlinkedLocations = removeU32(old.UnlinkedLocations, req.FsID)
	if !containsU32(next.Locations, req.FsID) {
		next.Locations = append(next.Locations, req.FsID)
	}
	if req.CommitSize {
		next.Size = req.Size
	}
	if req.CommitChecksum {
		next.Checksum = req.Checksum
	}
	if !req.MTime.IsZero() {
		next.MTime = req.MTime
	}
	if req.DropFsID != 0 {
		next.Locations = removeU32(next.Locations, req.DropFsID)
	}

	if _, err := s.appendFile(changelog.TagUpdate, &next); err != nil {
		return nil, err
	}

	s.files[next.ID] = &next
	s.fsview.apply(&next, old.Locations)
	if next.Size != old.Size {
		s.quota.ApplyResize(s, &next, old.Size)
	}
	s.notify(Event{Action: EventLocationAdded, FileID: next.ID, NewLocation: req.FsID})
	return &next, nil
}

func removeU32(s []uint32, v uint32) []uint32 {
	if v == 0 {
		return append([]uint32{}, s...)
	}
	out := make([]uint32, 0, len(s))
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
