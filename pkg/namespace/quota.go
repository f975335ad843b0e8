package namespace

import "github.com/HaiboGNU/eos-sub000/pkg/types"

// QuotaIndex is the quota engine's live accounting secondary index
// (spec §4.3): per quota-node container, running logical/physical byte
// and inode totals by owning uid and gid. Like FSView it is rebuilt
// purely from the file log on restart; only the configured limits
// (QuotaNode.*Limit*) persist as container xattrs in the namespace log
// itself.
type QuotaIndex struct {
	nodes map[types.ID]*types.QuotaNode
}

func newQuotaIndex() *QuotaIndex {
	return &QuotaIndex{nodes: make(map[types.ID]*types.QuotaNode)}
}

// NewQuotaIndex builds a standalone QuotaIndex, for callers (the
// scheduler, its tests) that need to seed or inspect quota accounting
// without a full namespace Store.
func NewQuotaIndex() *QuotaIndex {
	return newQuotaIndex()
}

func (q *QuotaIndex) nodeFor(id types.ID) *types.QuotaNode {
	n, ok := q.nodes[id]
	if !ok {
		n = &types.QuotaNode{
			ContainerID:   id,
			ByUID:         make(map[uint32]*types.QuotaCounters),
			ByGID:         make(map[uint32]*types.QuotaCounters),
			UIDLimitBytes: make(map[uint32]uint64),
			GIDLimitBytes: make(map[uint32]uint64),
			UIDLimitFiles: make(map[uint32]uint64),
			GIDLimitFiles: make(map[uint32]uint64),
		}
		q.nodes[id] = n
	}
	return n
}

// NodeFor returns the quota node accounting for the given quota-node
// container id, creating an empty one if it has never been touched.
func (q *QuotaIndex) NodeFor(id types.ID) *types.QuotaNode {
	return q.nodeFor(id)
}

func countersFor(m map[uint32]*types.QuotaCounters, owner uint32) *types.QuotaCounters {
	c, ok := m[owner]
	if !ok {
		c = &types.QuotaCounters{}
		m[owner] = c
	}
	return c
}

// physicalBytes multiplies logical size by the layout's stripe factor
// (spec §4.3: "physical bytes" accounts the replication/erasure
// overhead, not just the logical file size).
func physicalBytes(size uint64, layoutID uint32) uint64 {
	l := types.DecodeLayout(layoutID)
	stripes := uint64(l.Stripes)
	if stripes == 0 {
		stripes = 1
	}
	return size * stripes
}

// account applies a signed delta in file count and logical bytes to
// the quota node rooted at quotaNodeID, for both the owning uid and
// gid axes (spec §4.3: accounting is tracked independently per uid and
// per gid under the same node).
func (q *QuotaIndex) account(quotaNodeID types.ID, uid, gid uint32, layoutID uint32, logicalDelta int64, fileDelta int64) {
	node := q.nodeFor(quotaNodeID)
	physicalDelta := logicalDelta
	if logicalDelta != 0 {
		factor := int64(physicalBytes(1, layoutID))
		physicalDelta = logicalDelta * factor
	}

	for _, pair := range []struct {
		m     map[uint32]*types.QuotaCounters
		owner uint32
	}{
		{node.ByUID, uid},
		{node.ByGID, gid},
	} {
		c := countersFor(pair.m, pair.owner)
		c.LogicalBytes = addClampedI64(c.LogicalBytes, logicalDelta)
		c.PhysicalBytes = addClampedI64(c.PhysicalBytes, physicalDelta)
		c.Files = addClampedI64(c.Files, fileDelta)
	}
}

func addClampedI64(u uint64, d int64) uint64 {
	if d < 0 && uint64(-d) > u {
		return 0
	}
	return uint64(int64(u) + d)
}

// applyReplay accounts file f once during initial log replay, as a
// pure creation (spec §9: the quota index has no persisted state of
// its own, so replay always sees "add", never "update").
func (q *QuotaIndex) applyReplay(s *Store, f *types.File) {
	if f.Unlinked {
		return
	}
	nodeID, ok := s.quotaNodeAncestor(f.ParentID)
	if !ok {
		return
	}
	q.account(nodeID, f.UID, f.GID, f.LayoutID, int64(f.Size), 1)
}

// ApplyCreate accounts for a newly created file.
func (q *QuotaIndex) ApplyCreate(s *Store, f *types.File) {
	nodeID, ok := s.quotaNodeAncestor(f.ParentID)
	if !ok {
		return
	}
	q.account(nodeID, f.UID, f.GID, f.LayoutID, int64(f.Size), 1)
}

// ApplyResize accounts for a size change on an existing, still-linked
// file (e.g. on commit, when the booked size differs from the final
// size).
func (q *QuotaIndex) ApplyResize(s *Store, f *types.File, oldSize uint64) {
	nodeID, ok := s.quotaNodeAncestor(f.ParentID)
	if !ok {
		return
	}
	q.account(nodeID, f.UID, f.GID, f.LayoutID, int64(f.Size)-int64(oldSize), 0)
}

// ApplyRemove reverses the accounting for a file being unlinked or
// finally removed.
func (q *QuotaIndex) ApplyRemove(s *Store, f *types.File) {
	nodeID, ok := s.quotaNodeAncestor(f.ParentID)
	if !ok {
		return
	}
	q.account(nodeID, f.UID, f.GID, f.LayoutID, -int64(f.Size), -1)
}
