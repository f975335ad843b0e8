// Package clusterview implements the CORE's in-memory view of storage
// topology (spec §4.4): file systems, nodes, groups, and spaces,
// flattened into one entity table plus derived lookup maps, and the
// boot/config/drain/active state machine governing each file system.
//
// State mutations are expected to arrive as raft-applied commands (see
// pkg/fsm), so View itself performs no replication; it is the
// query-side structure raft's FSM mutates and the scheduler reads
// under a read lock (spec §5 item 1: cluster-view lock, acquired
// before the namespace lock).
package clusterview

import (
	"sync"

	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/storage"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/rs/zerolog"
)

// View is the cluster-view engine: one flattened map of file systems
// plus the node/group/space membership indexes (spec §9: "a flattened
// entity table, not a class hierarchy per axis").
type View struct {
	mu sync.RWMutex

	filesystems map[uint32]*types.FileSystem
	nodes       map[string]*types.Node
	groups      map[string]*types.Group
	spaces      map[string]*types.Space

	groupFS map[string]map[uint32]struct{} // group name -> fs ids
	nodeFS  map[string]map[uint32]struct{} // node (queue) name -> fs ids

	store storage.Backend // query-side persistence, spec §9

	listeners []ErrorListener

	logger zerolog.Logger
}

// ErrorListener is notified the first time a file system's error
// count transitions across zero (spec §4.4), wired to the drain
// coordinator in pkg/engines.
type ErrorListener func(fsid uint32, errCode int)

// New builds an empty View backed by store, which may be nil for
// tests that never need restart persistence.
func New(store storage.Backend) *View {
	return &View{
		filesystems: make(map[uint32]*types.FileSystem),
		nodes:       make(map[string]*types.Node),
		groups:      make(map[string]*types.Group),
		spaces:      make(map[string]*types.Space),
		groupFS:     make(map[string]map[uint32]struct{}),
		nodeFS:      make(map[string]map[uint32]struct{}),
		store:       store,
		logger:      log.WithComponent("clusterview"),
	}
}

// LoadFromStore populates the view from the bbolt secondary index,
// used on process start before raft snapshot-restore has a chance to
// run (or when running as a standalone read replica).
func (v *View) LoadFromStore() error {
	if v.store == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	fsList, err := v.store.ListFileSystems()
	if err != nil {
		return err
	}
	for _, fs := range fsList {
		v.filesystems[fs.ID] = fs
		v.indexLocked(fs)
	}
	nodes, err := v.store.ListNodes()
	if err != nil {
		return err
	}
	for _, n := range nodes {
		v.nodes[n.Name] = n
	}
	groups, err := v.store.ListGroups()
	if err != nil {
		return err
	}
	for _, g := range groups {
		v.groups[g.Name] = g
	}
	spaces, err := v.store.ListSpaces()
	if err != nil {
		return err
	}
	for _, sp := range spaces {
		v.spaces[sp.Name] = sp
	}
	return nil
}

// Subscribe registers an ErrorListener. Intended for startup wiring.
func (v *View) Subscribe(l ErrorListener) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, l)
}

func (v *View) indexLocked(fs *types.FileSystem) {
	if m, ok := v.groupFS[fs.Group]; ok {
		m[fs.ID] = struct{}{}
	} else {
		v.groupFS[fs.Group] = map[uint32]struct{}{fs.ID: {}}
	}
	if m, ok := v.nodeFS[fs.Host]; ok {
		m[fs.ID] = struct{}{}
	} else {
		v.nodeFS[fs.Host] = map[uint32]struct{}{fs.ID: {}}
	}
}

func (v *View) unindexLocked(fs *types.FileSystem) {
	if m, ok := v.groupFS[fs.Group]; ok {
		delete(m, fs.ID)
	}
	if m, ok := v.nodeFS[fs.Host]; ok {
		delete(m, fs.ID)
	}
}

// UpsertFileSystem registers or replaces a file system entity, the
// command raft's FSM applies for `fs add`/`fs config` (spec §4.4).
func (v *View) UpsertFileSystem(fs *types.FileSystem) error {
	v.mu.Lock()

	fireError := false
	if old, ok := v.filesystems[fs.ID]; ok {
		v.unindexLocked(old)
		fireError = old.ErrCode == 0 && fs.ErrCode != 0
	}
	v.filesystems[fs.ID] = fs
	v.indexLocked(fs)

	var err error
	if v.store != nil {
		err = v.store.PutFileSystem(fs)
	}
	v.mu.Unlock()

	// Listeners run after the lock is released: they are expected to
	// call back into the view (spec §4.4's drain coordinator reads and
	// then upserts the same file system), which would deadlock against
	// v.mu's non-reentrant Lock otherwise.
	if fireError {
		v.notifyError(fs.ID, fs.ErrCode)
	}
	return err
}

func (v *View) notifyError(fsid uint32, errCode int) {
	for _, l := range v.listeners {
		l(fsid, errCode)
	}
}

// FileSystem returns a snapshot of fs-id's current state.
func (v *View) FileSystem(fsid uint32) (*types.FileSystem, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	fs, ok := v.filesystems[fsid]
	if !ok {
		return nil, mgmerr.New(mgmerr.MissingEntry, "no such file system %d", fsid)
	}
	return fs, nil
}

// FileSystemsInGroup returns the file-system ids registered to group
// name, used by the placement scheduler's group-round-robin pass.
func (v *View) FileSystemsInGroup(name string) []uint32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	m := v.groupFS[name]
	out := make([]uint32, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// RemoveFileSystem deregisters fsid entirely, used once a drain has
// fully emptied it and an administrator confirms removal.
func (v *View) RemoveFileSystem(fsid uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	fs, ok := v.filesystems[fsid]
	if !ok {
		return mgmerr.New(mgmerr.MissingEntry, "no such file system %d", fsid)
	}
	v.unindexLocked(fs)
	delete(v.filesystems, fsid)
	if v.store != nil {
		return v.store.DeleteFileSystem(fsid)
	}
	return nil
}

// UpsertNode registers or replaces a node entity (one per FST host).
func (v *View) UpsertNode(n *types.Node) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nodes[n.Name] = n
	if v.store != nil {
		return v.store.PutNode(n)
	}
	return nil
}

// Node returns a snapshot of a node's current state.
func (v *View) Node(name string) (*types.Node, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n, ok := v.nodes[name]
	if !ok {
		return nil, mgmerr.New(mgmerr.MissingEntry, "no such node %q", name)
	}
	return n, nil
}

// UpsertGroup registers or replaces a group entity.
func (v *View) UpsertGroup(g *types.Group) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.groups[g.Name] = g
	if v.store != nil {
		return v.store.PutGroup(g)
	}
	return nil
}

// Group returns a snapshot of a group's current state.
func (v *View) Group(name string) (*types.Group, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	g, ok := v.groups[name]
	if !ok {
		return nil, mgmerr.New(mgmerr.MissingEntry, "no such group %q", name)
	}
	return g, nil
}

// GroupsInSpace returns the group names registered to space name.
func (v *View) GroupsInSpace(name string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	sp, ok := v.spaces[name]
	if !ok {
		return nil
	}
	return append([]string{}, sp.GroupNames...)
}

// UpsertSpace registers or replaces a space entity.
func (v *View) UpsertSpace(sp *types.Space) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spaces[sp.Name] = sp
	if v.store != nil {
		return v.store.PutSpace(sp)
	}
	return nil
}

// Space returns a snapshot of a space's current state.
func (v *View) Space(name string) (*types.Space, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	sp, ok := v.spaces[name]
	if !ok {
		return nil, mgmerr.New(mgmerr.MissingEntry, "no such space %q", name)
	}
	return sp, nil
}

// ListFileSystems returns every registered file system, used by the
// proc "fs ls" command.
func (v *View) ListFileSystems() []*types.FileSystem {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*types.FileSystem, 0, len(v.filesystems))
	for _, fs := range v.filesystems {
		out = append(out, fs)
	}
	return out
}

// ListNodes returns every registered node, used by the proc "node ls"
// command.
func (v *View) ListNodes() []*types.Node {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*types.Node, 0, len(v.nodes))
	for _, n := range v.nodes {
		out = append(out, n)
	}
	return out
}

// ListGroups returns every registered group, used by the proc
// "group ls" command.
func (v *View) ListGroups() []*types.Group {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*types.Group, 0, len(v.groups))
	for _, g := range v.groups {
		out = append(out, g)
	}
	return out
}

// ListSpaces returns every registered space, used by the proc
// "space ls" command.
func (v *View) ListSpaces() []*types.Space {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*types.Space, 0, len(v.spaces))
	for _, sp := range v.spaces {
		out = append(out, sp)
	}
	return out
}

// Snapshot is the lock-free read consumed by the scheduler (spec §4.4:
// "snapshots copy scalar fields into a plain struct"). Taking one
// holds the read lock only for the duration of the copy.
type Snapshot struct {
	FileSystems map[uint32]types.FileSystem
}

// Snapshot copies every file system's current value out from under the
// lock, so callers can range over it without contending with writers.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[uint32]types.FileSystem, len(v.filesystems))
	for id, fs := range v.filesystems {
		out[id] = *fs
	}
	return Snapshot{FileSystems: out}
}

// Reset discards every entity and index, keeping only the registered
// listeners and backing store, then reloads filesystems, nodes,
// groups, and spaces, used by the raft FSM's Restore handler to
// replace the view's whole state from a snapshot rather than replaying
// individual upserts.
func (v *View) Reset(fsList []*types.FileSystem, nodes []*types.Node, groups []*types.Group, spaces []*types.Space) error {
	v.mu.Lock()
	v.filesystems = make(map[uint32]*types.FileSystem)
	v.nodes = make(map[string]*types.Node)
	v.groups = make(map[string]*types.Group)
	v.spaces = make(map[string]*types.Space)
	v.groupFS = make(map[string]map[uint32]struct{})
	v.nodeFS = make(map[string]map[uint32]struct{})

	for _, fs := range fsList {
		v.filesystems[fs.ID] = fs
		v.indexLocked(fs)
	}
	for _, n := range nodes {
		v.nodes[n.Name] = n
	}
	for _, g := range groups {
		v.groups[g.Name] = g
	}
	for _, sp := range spaces {
		v.spaces[sp.Name] = sp
	}
	store := v.store
	v.mu.Unlock()

	if store == nil {
		return nil
	}
	for _, fs := range fsList {
		if err := store.PutFileSystem(fs); err != nil {
			return err
		}
	}
	for _, n := range nodes {
		if err := store.PutNode(n); err != nil {
			return err
		}
	}
	for _, g := range groups {
		if err := store.PutGroup(g); err != nil {
			return err
		}
	}
	for _, sp := range spaces {
		if err := store.PutSpace(sp); err != nil {
			return err
		}
	}
	return nil
}
