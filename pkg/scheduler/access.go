package scheduler

import (
	"math/rand"

	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// AccessRequest describes an open of an existing file (spec §4.5).
type AccessRequest struct {
	Locations []uint32
	// PinFSID, if nonzero, is used as the entry point when it survives
	// the filter.
	PinFSID uint32
	// PreferGroup approximates "pick by group-locality" when set: the
	// entry point is chosen among survivors in this group before
	// falling back to the full survivor set.
	PreferGroup string
	FileID      types.ID
}

// AccessResult is the surviving replica set plus the chosen entry
// point for the redirect.
type AccessResult struct {
	FileSystemIDs []uint32
	Entry         uint32
}

// Access implements spec §4.5's Access operation: filter the file's
// locations down to file systems that are reachable and not below the
// read-forbidden config threshold, then pick an entry point.
func (s *Scheduler) Access(req AccessRequest) (*AccessResult, error) {
	if len(req.Locations) == 0 {
		return nil, mgmerr.New(mgmerr.NoEntry, "file has no locations")
	}

	var survivors []uint32
	for _, fsid := range req.Locations {
		fs, err := s.view.FileSystem(fsid)
		if err != nil {
			continue
		}
		if fs.Active != types.ActiveOnline {
			continue
		}
		if fs.Boot != types.BootBooted {
			continue
		}
		// config <= Drain is read-forbidden: only ReadOnly and above survive.
		if !fs.Config.AtLeast(types.ConfigReadOnly) {
			continue
		}
		survivors = append(survivors, fsid)
	}

	if len(survivors) == 0 {
		return nil, mgmerr.New(mgmerr.NoNetwork, "no reachable replica")
	}

	entry := s.pickEntry(survivors, req)
	return &AccessResult{FileSystemIDs: survivors, Entry: entry}, nil
}

func (s *Scheduler) pickEntry(survivors []uint32, req AccessRequest) uint32 {
	if req.PinFSID != 0 && containsU32(survivors, req.PinFSID) {
		return req.PinFSID
	}

	pool := survivors
	if req.PreferGroup != "" {
		var local []uint32
		for _, fsid := range survivors {
			fs, err := s.view.FileSystem(fsid)
			if err == nil && fs.Group == req.PreferGroup {
				local = append(local, fsid)
			}
		}
		if len(local) > 0 {
			pool = local
		}
	}

	rng := rand.New(rand.NewSource(int64(req.FileID)))
	return pool[rng.Intn(len(pool))]
}
