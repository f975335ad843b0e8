package namespace

import "github.com/HaiboGNU/eos-sub000/pkg/types"

// FSView is the file-system view secondary index (spec §4.2): for each
// fs-id, the set of file ids with a live replica there, the set
// scheduled for physical deletion (unlinked), and the set of fs-ids
// currently carrying zero replicas (candidates for draining out of
// rotation). It is maintained purely as a reaction to namespace
// mutations, never written to its own change log — a crash rebuilds it
// by replaying the file log (spec §9).
type FSView struct {
	live     map[uint32]map[types.ID]struct{}
	unlinked map[uint32]map[types.ID]struct{}
	empty    map[uint32]struct{}
}

func newFSView() *FSView {
	return &FSView{
		live:     make(map[uint32]map[types.ID]struct{}),
		unlinked: make(map[uint32]map[types.ID]struct{}),
		empty:    make(map[uint32]struct{}),
	}
}

// apply reconciles the view with file f's current Locations and
// UnlinkedLocations against its previous location set oldLocations
// (nil during initial replay, where f's current locations are taken as
// the baseline).
func (v *FSView) apply(f *types.File, oldLocations []uint32) {
	if oldLocations != nil {
		for _, fsid := range oldLocations {
			if !containsU32(f.Locations, fsid) {
				v.removeLive(fsid, f.ID)
			}
		}
	}
	for _, fsid := range f.Locations {
		v.addLive(fsid, f.ID)
	}
	for _, fsid := range f.UnlinkedLocations {
		v.addUnlinked(fsid, f.ID)
	}
}

// RemoveFile drops f from both the live and unlinked sets of every
// fs-id it ever referenced, used once a file's unlinked replicas have
// all been physically deleted.
func (v *FSView) RemoveFile(f *types.File) {
	for _, fsid := range f.Locations {
		v.removeLive(fsid, f.ID)
	}
	for _, fsid := range f.UnlinkedLocations {
		v.removeUnlinked(fsid, f.ID)
	}
}

func (v *FSView) addLive(fsid uint32, id types.ID) {
	m, ok := v.live[fsid]
	if !ok {
		m = make(map[types.ID]struct{})
		v.live[fsid] = m
	}
	m[id] = struct{}{}
	delete(v.empty, fsid)
}

func (v *FSView) removeLive(fsid uint32, id types.ID) {
	m, ok := v.live[fsid]
	if !ok {
		return
	}
	delete(m, id)
	if len(m) == 0 {
		v.empty[fsid] = struct{}{}
	}
}

func (v *FSView) addUnlinked(fsid uint32, id types.ID) {
	m, ok := v.unlinked[fsid]
	if !ok {
		m = make(map[types.ID]struct{})
		v.unlinked[fsid] = m
	}
	m[id] = struct{}{}
}

func (v *FSView) removeUnlinked(fsid uint32, id types.ID) {
	if m, ok := v.unlinked[fsid]; ok {
		delete(m, id)
	}
}

// LiveCount returns the number of files holding a live replica on fsid.
func (v *FSView) LiveCount(fsid uint32) int {
	return len(v.live[fsid])
}

// UnlinkedFiles returns a snapshot of file ids pending physical
// deletion on fsid, consumed by the deletion-dispatcher engine.
func (v *FSView) UnlinkedFiles(fsid uint32) []types.ID {
	m := v.unlinked[fsid]
	out := make([]types.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// sampleLive returns an arbitrary file id with a live replica on fsid,
// used by engines that move one file per cycle rather than draining a
// whole file system's live set at once.
func (v *FSView) sampleLive(fsid uint32) (types.ID, bool) {
	for id := range v.live[fsid] {
		return id, true
	}
	return 0, false
}

// IsEmpty reports whether fsid currently carries zero live replicas,
// one of the drain-completion conditions (spec §4.4).
func (v *FSView) IsEmpty(fsid uint32) bool {
	_, seenNonEmpty := v.live[fsid]
	if !seenNonEmpty {
		return true
	}
	return len(v.live[fsid]) == 0
}

func containsU32(s []uint32, v uint32) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
