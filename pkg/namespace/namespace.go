// Package namespace implements the CORE's hierarchical namespace
// engine (spec §4.1): two change logs (one for containers, one for
// files) replayed into in-memory id-indexed trees, plus the
// File-System View (spec §4.2) and the Quota Engine (spec §4.3), both
// maintained as secondary indexes over the same mutation stream
// (spec §9's change-listener design note).
//
// The namespace lock (spec §5 item 2) is a single process-wide
// sync.RWMutex, acquired after the cluster-view lock and before the
// quota lock, never the reverse.
package namespace

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/changelog"
	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/rs/zerolog"
)

// RootID is the id of the namespace root container (spec §3).
const RootID types.ID = 1

// Store is the namespace engine: in-memory container/file indexes,
// backed by two append-only change logs, plus the derived FSView and
// QuotaIndex.
type Store struct {
	mu sync.RWMutex

	containers map[types.ID]*types.Container
	files      map[types.ID]*types.File
	nextID     types.ID

	// childIdx/fileIdx are the (parentID, name) -> id indexes backing
	// O(1) single-component path resolution; PathOf walks ParentID
	// links the other direction (spec §4.1).
	childIdx map[types.ID]map[string]types.ID
	fileIdx  map[types.ID]map[string]types.ID

	dirMTime map[types.ID]time.Time // spec §4.1: separate mtime cache

	containerLog     *changelog.Writer
	fileLog          *changelog.Writer
	containerLogPath string
	fileLogPath      string

	fsview *FSView
	quota  *QuotaIndex

	listeners []Listener

	logger zerolog.Logger
}

// Open replays containerLogPath and fileLogPath (containers first, to
// reconstruct the tree skeleton, then files, to attach them and
// rebuild the file-system view — spec §4.1) and returns a ready Store.
func Open(containerLogPath, fileLogPath string) (*Store, error) {
	cw, _, err := changelog.Open(containerLogPath)
	if err != nil {
		return nil, fmt.Errorf("namespace: open container log: %w", err)
	}
	fw, _, err := changelog.Open(fileLogPath)
	if err != nil {
		return nil, fmt.Errorf("namespace: open file log: %w", err)
	}

	s := &Store{
		containers:       make(map[types.ID]*types.Container),
		files:            make(map[types.ID]*types.File),
		childIdx:         make(map[types.ID]map[string]types.ID),
		fileIdx:          make(map[types.ID]map[string]types.ID),
		dirMTime:         make(map[types.ID]time.Time),
		containerLog:     cw,
		fileLog:          fw,
		containerLogPath: containerLogPath,
		fileLogPath:      fileLogPath,
		fsview:           newFSView(),
		quota:            newQuotaIndex(),
		logger:           log.WithComponent("namespace"),
	}

	if err := s.replay(containerLogPath, fileLogPath); err != nil {
		return nil, err
	}
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	if s.nextID <= RootID {
		s.nextID = RootID
	}

	return s, nil
}

// ensureRoot creates the root container if replay didn't find one,
// the case for a brand-new pair of empty change logs. Callers must
// hold s.mu.
func (s *Store) ensureRoot() error {
	if _, ok := s.containers[RootID]; ok {
		return nil
	}
	root := &types.Container{
		ID:     RootID,
		Name:   "/",
		UID:    0,
		GID:    0,
		Mode:   0755,
		CTime:  time.Now(),
		MTime:  time.Now(),
		Xattrs: map[string]string{},
	}
	s.containers[RootID] = root
	s.indexContainer(root)
	_, err := s.appendContainer(changelog.TagCreate, root)
	return err
}

func (s *Store) replay(containerLogPath, fileLogPath string) error {
	if err := changelog.Replay(containerLogPath, func(r changelog.Record) error {
		c, err := decodeContainer(r.Payload)
		if err != nil {
			return err
		}
		if r.Tag == changelog.TagRemove {
			if old, ok := s.containers[c.ID]; ok {
				s.unindexContainer(old)
			}
			delete(s.containers, c.ID)
			return nil
		}
		s.containers[c.ID] = c
		s.indexContainer(c)
		if c.ID > s.nextID {
			s.nextID = c.ID
		}
		return nil
	}); err != nil {
		return err
	}

	return changelog.Replay(fileLogPath, func(r changelog.Record) error {
		f, err := decodeFile(r.Payload)
		if err != nil {
			return err
		}
		if r.Tag == changelog.TagRemove {
			if old, ok := s.files[f.ID]; ok {
				s.unindexFile(old)
			}
			delete(s.files, f.ID)
			return nil
		}
		s.files[f.ID] = f
		if !f.Unlinked {
			s.indexFile(f)
		}
		if f.ID > s.nextID {
			s.nextID = f.ID
		}
		s.fsview.apply(f, nil)
		s.quota.applyReplay(s, f)
		return nil
	})
}

// Close flushes and closes both change logs.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.containerLog.Close(); err != nil {
		return err
	}
	return s.fileLog.Close()
}

// FSView returns the namespace's file-system view secondary index.
func (s *Store) FSView() *FSView { return s.fsview }

// Quota returns the namespace's quota index secondary index.
func (s *Store) Quota() *QuotaIndex { return s.quota }

// Stats summarizes the namespace size, used by the proc "ns" command.
type Stats struct {
	Containers int
	Files      int
}

// Stats reports the current container and file counts, linked or not.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Containers: len(s.containers), Files: len(s.files)}
}

// Listener observes namespace mutations (spec §9: a tagged-variant
// event, not a virtual class hierarchy).
type Listener func(Event)

// EventAction is the kind of mutation a Listener is notified of.
type EventAction string

const (
	EventCreated          EventAction = "created"
	EventDeleted          EventAction = "deleted"
	EventLocationAdded    EventAction = "location_added"
	EventLocationReplaced EventAction = "location_replaced"
	EventLocationRemoved  EventAction = "location_removed"
	EventLocationUnlinked EventAction = "location_unlinked"
)

// Event is the tagged-variant namespace-mutation notification (spec
// §9), delivered to listeners registered with Subscribe. FSView and
// QuotaIndex are not listeners: the mutating methods update them directly.
type Event struct {
	Action      EventAction
	FileID      types.ID
	OldLocation uint32
	NewLocation uint32
}

// Subscribe registers a Listener. Not safe to call concurrently with
// mutations that would fire it immediately; intended for wiring at
// startup.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify(ev Event) {
	for _, l := range s.listeners {
		l(ev)
	}
}

func (s *Store) allocID() types.ID {
	s.nextID++
	return s.nextID
}

// QuotaNodeAncestor exposes quotaNodeAncestor to callers outside the
// package (the redirecting open front-end needs it to fill in
// scheduler.PlacementRequest.QuotaNodeID before calling Placement).
func (s *Store) QuotaNodeAncestor(containerID types.ID) (types.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quotaNodeAncestor(containerID)
}

// quotaNodeAncestor walks parent links from containerID upward,
// returning the nearest ancestor (inclusive) flagged as a quota node
// (spec §4.3: quota accounting attaches to the closest quota-node
// container above a file, not necessarily its direct parent).
func (s *Store) quotaNodeAncestor(containerID types.ID) (types.ID, bool) {
	id := containerID
	for {
		c, ok := s.containers[id]
		if !ok {
			return 0, false
		}
		if c.QuotaNode {
			return c.ID, true
		}
		if c.ID == RootID {
			return 0, false
		}
		id = c.ParentID
	}
}

func splitPath(p string) []string {
	p = strings.Trim(path.Clean(p), "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

func (s *Store) indexContainer(c *types.Container) {
	m, ok := s.childIdx[c.ParentID]
	if !ok {
		m = make(map[string]types.ID)
		s.childIdx[c.ParentID] = m
	}
	m[c.Name] = c.ID
}

func (s *Store) unindexContainer(c *types.Container) {
	if m, ok := s.childIdx[c.ParentID]; ok {
		delete(m, c.Name)
	}
}

func (s *Store) indexFile(f *types.File) {
	m, ok := s.fileIdx[f.ParentID]
	if !ok {
		m = make(map[string]types.ID)
		s.fileIdx[f.ParentID] = m
	}
	m[f.Name] = f.ID
}

func (s *Store) unindexFile(f *types.File) {
	if m, ok := s.fileIdx[f.ParentID]; ok {
		delete(m, f.Name)
	}
}

func canWriteExec(uid, gid uint32, c *types.Container) bool {
	if uid == 0 {
		return true
	}
	mode := c.Mode
	var bits uint32
	switch {
	case c.UID == uid:
		bits = (mode >> 6) & 07
	case c.GID == gid:
		bits = (mode >> 3) & 07
	default:
		bits = mode & 07
	}
	return bits&0x3 == 0x3 // write(2) + execute(1)
}
