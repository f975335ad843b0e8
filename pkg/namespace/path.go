package namespace

import (
	"strings"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// resolveContainer walks components from root, returning the
// container at the end of path. Callers must hold s.mu (read or
// write).
func (s *Store) resolveContainer(p string) (*types.Container, error) {
	cur := s.containers[RootID]
	if cur == nil {
		return nil, mgmerr.New(mgmerr.MissingEntry, "namespace has no root")
	}
	for _, name := range splitPath(p) {
		id, ok := s.childIdx[cur.ID][name]
		if !ok {
			return nil, mgmerr.New(mgmerr.MissingEntry, "no such container %q under %d", name, cur.ID)
		}
		next, ok := s.containers[id]
		if !ok {
			return nil, mgmerr.New(mgmerr.MissingEntry, "dangling child %q under %d", name, cur.ID)
		}
		cur = next
	}
	return cur, nil
}

// resolveParentAndName splits path into its parent container and final
// component name, resolving only the parent.
func (s *Store) resolveParentAndName(p string) (*types.Container, string, error) {
	parts := splitPath(p)
	if len(parts) == 0 {
		return nil, "", mgmerr.New(mgmerr.Invalid, "path resolves to root")
	}
	parent, err := s.resolveContainer("/" + strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return nil, "", err
	}
	return parent, parts[len(parts)-1], nil
}

func (s *Store) resolveFile(p string) (*types.File, error) {
	parent, name, err := s.resolveParentAndName(p)
	if err != nil {
		return nil, err
	}
	id, ok := s.fileIdx[parent.ID][name]
	if !ok {
		return nil, mgmerr.New(mgmerr.MissingEntry, "no such file %q under %d", name, parent.ID)
	}
	f, ok := s.files[id]
	if !ok || f.Unlinked {
		return nil, mgmerr.New(mgmerr.MissingEntry, "no such file %q under %d", name, parent.ID)
	}
	return f, nil
}

// PathOf resolves id to a full path in O(depth) by walking ParentID
// links (spec §4.1: "Path resolution caches the inverse of id->parent
// so that any id resolves to a full path in O(depth)").
func (s *Store) PathOf(id types.ID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pathOfLocked(id)
}

func (s *Store) pathOfLocked(id types.ID) (string, error) {
	if id == RootID {
		return "/", nil
	}
	c, ok := s.containers[id]
	if !ok {
		return "", mgmerr.New(mgmerr.MissingEntry, "no such container id %d", id)
	}
	var parts []string
	for c.ID != RootID {
		parts = append([]string{c.Name}, parts...)
		parent, ok := s.containers[c.ParentID]
		if !ok {
			return "", mgmerr.New(mgmerr.MissingEntry, "dangling parent %d", c.ParentID)
		}
		c = parent
	}
	return "/" + strings.Join(parts, "/"), nil
}

// TouchDirMTime records now as the cached modification time for
// container id without writing a change-log record (spec §4.1:
// "Directory modification time is cached in a separate in-memory map
// ... to avoid a write on every child change"). The cached value wins
// over Container.MTime until the container is next explicitly
// updated, at which point UpdateContainer discards it in favour of the
// container's own MTime.
func (s *Store) TouchDirMTime(id types.ID, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirMTime[id] = now
}

// DirMTime returns the effective modification time for container id:
// the cached value if one exists, otherwise the committed
// Container.MTime.
func (s *Store) DirMTime(id types.ID) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.dirMTime[id]; ok {
		return t, nil
	}
	c, ok := s.containers[id]
	if !ok {
		return time.Time{}, mgmerr.New(mgmerr.MissingEntry, "no such container id %d", id)
	}
	return c.MTime, nil
}
