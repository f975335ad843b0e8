package scheduler

import (
	"math/rand"

	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// PlacementRequest describes a new write (or a truncate-from-zero of a
// replicated file) that needs an ordered set of file systems (spec
// §4.5).
type PlacementRequest struct {
	Space       string
	LayoutID    uint32
	BookingSize uint64
	UID         uint32
	GID         uint32
	// QuotaNodeID is the nearest quota-node ancestor container id
	// (namespace.Store.quotaNodeAncestor's result), 0 if the file has
	// no enclosing quota node.
	QuotaNodeID types.ID
	// FileID seeds the deterministic tie-break; the same FileID always
	// yields the same rotation.
	FileID types.ID
}

// PlacementResult is the ordered fs-id list a capability is minted
// against, one entry per stripe.
type PlacementResult struct {
	FileSystemIDs []uint32
}

// Placement implements spec §4.5's Placement operation: walk the
// space's groups in a pseudo-random rotation, picking at most one
// candidate file system per group, falling back to a relaxed
// cross-group pass if the strict pass falls short.
func (s *Scheduler) Placement(req PlacementRequest) (*PlacementResult, error) {
	layout := types.DecodeLayout(req.LayoutID)
	stripes := layout.Stripes
	if stripes <= 0 {
		stripes = 1
	}

	groups := s.view.GroupsInSpace(req.Space)
	if len(groups) == 0 {
		return nil, mgmerr.New(mgmerr.NoSpace, "space %q has no groups", req.Space)
	}

	rng := rand.New(rand.NewSource(int64(req.FileID)))
	rotation := rng.Intn(len(groups))

	quotaRejected := false
	selected := make([]uint32, 0, stripes)
	triedGroup := make(map[string]struct{}, len(groups))

	// Strict pass: at most one file system per group.
	for i := 0; i < len(groups) && len(selected) < stripes; i++ {
		name := groups[(rotation+i)%len(groups)]
		triedGroup[name] = struct{}{}
		for _, fsid := range s.view.FileSystemsInGroup(name) {
			fs, err := s.view.FileSystem(fsid)
			if err != nil {
				continue
			}
			if !s.candidateOK(fs, req, &quotaRejected) {
				continue
			}
			if containsU32(selected, fsid) {
				continue
			}
			selected = append(selected, fsid)
			break
		}
	}

	// Relaxed pass: allow more than one selection from the same group.
	if len(selected) < stripes {
		for i := 0; i < len(groups) && len(selected) < stripes; i++ {
			name := groups[(rotation+i)%len(groups)]
			for _, fsid := range s.view.FileSystemsInGroup(name) {
				if len(selected) >= stripes {
					break
				}
				if containsU32(selected, fsid) {
					continue
				}
				fs, err := s.view.FileSystem(fsid)
				if err != nil {
					continue
				}
				if !s.candidateOK(fs, req, &quotaRejected) {
					continue
				}
				selected = append(selected, fsid)
			}
		}
	}

	if len(selected) < stripes {
		if quotaRejected {
			return nil, mgmerr.New(mgmerr.NoQuota, "quota exceeded for uid=%d gid=%d in space %q", req.UID, req.GID, req.Space)
		}
		return nil, mgmerr.New(mgmerr.NoSpace, "only %d of %d stripes satisfied in space %q", len(selected), stripes, req.Space)
	}

	return &PlacementResult{FileSystemIDs: selected}, nil
}

// candidateOK applies the per-candidate filter from spec §4.5 step 3:
// online, booted, writable, enough headroom-adjusted free space, and
// (when a quota node applies) within the owner's byte limit.
func (s *Scheduler) candidateOK(fs *types.FileSystem, req PlacementRequest, quotaRejected *bool) bool {
	if fs.Active != types.ActiveOnline {
		return false
	}
	if fs.Boot != types.BootBooted {
		return false
	}
	if !fs.Config.AtLeast(types.ConfigWriteOnly) {
		return false
	}
	if fs.FreeBytes < req.BookingSize+fs.Headroom {
		return false
	}
	if req.QuotaNodeID != 0 && s.quota != nil {
		node := s.quota.NodeFor(req.QuotaNodeID)
		if quotaExceeded(node, req.UID, req.GID, req.BookingSize) {
			*quotaRejected = true
			return false
		}
	}
	return true
}

func quotaExceeded(node *types.QuotaNode, uid, gid uint32, bookingSize uint64) bool {
	if limit, ok := node.UIDLimitBytes[uid]; ok {
		c := node.ByUID[uid]
		if c != nil && c.PhysicalBytes+bookingSize > limit {
			return true
		}
	}
	if limit, ok := node.GIDLimitBytes[gid]; ok {
		c := node.ByGID[gid]
		if c != nil && c.PhysicalBytes+bookingSize > limit {
			return true
		}
	}
	if limit, ok := node.UIDLimitFiles[uid]; ok {
		c := node.ByUID[uid]
		if c != nil && c.Files+1 > limit {
			return true
		}
	}
	if limit, ok := node.GIDLimitFiles[gid]; ok {
		c := node.ByGID[gid]
		if c != nil && c.Files+1 > limit {
			return true
		}
	}
	return false
}
