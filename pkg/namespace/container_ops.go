package namespace

import (
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/changelog"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// CreateContainer resolves the parent, checks name uniqueness,
// allocates a new id strictly greater than any id ever seen, writes a
// create record, and links into the parent (spec §4.1).
//
// Repeating an identical mkdir -p call is idempotent: if recursive is
// true and the final component already exists as a container, it is
// returned without creating a duplicate (spec §8 scenario 1).
func (s *Store) CreateContainer(p string, uid, gid uint32, mode uint32, recursive bool) (*types.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := splitPath(p)
	if len(parts) == 0 {
		return nil, mgmerr.New(mgmerr.ExistingEntry, "root always exists")
	}

	cur := s.containers[RootID]
	for i, name := range parts {
		id, exists := s.childIdx[cur.ID][name]
		if exists {
			next := s.containers[id]
			if i == len(parts)-1 && !recursive {
				return next, mgmerr.New(mgmerr.ExistingEntry, "%q already exists", p)
			}
			cur = next
			continue
		}

		if i < len(parts)-1 && !recursive {
			return nil, mgmerr.New(mgmerr.MissingEntry, "missing parent component %q", name)
		}
		if !canWriteExec(uid, gid, cur) {
			return nil, mgmerr.New(mgmerr.PermissionDenied, "no write+execute on parent %d", cur.ID)
		}

		now := time.Now()
		child := &types.Container{
			ID:       s.allocID(),
			Name:     name,
			ParentID: cur.ID,
			UID:      uid,
			GID:      gid,
			Mode:     mode,
			CTime:    now,
			MTime:    now,
			Xattrs:   map[string]string{},
		}
		if _, err := s.appendContainer(changelog.TagCreate, child); err != nil {
			return nil, err
		}
		s.containers[child.ID] = child
		s.indexContainer(child)
		cur.Children = append(cur.Children, name)
		cur.MTime = now
		if _, err := s.appendContainer(changelog.TagUpdate, cur); err != nil {
			return nil, err
		}
		s.notify(Event{Action: EventCreated, FileID: child.ID})
		cur = child
	}

	return cur, nil
}

// GetContainer resolves path to its container.
func (s *Store) GetContainer(p string) (*types.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveContainer(p)
}

// GetContainerByID looks up a container by id.
func (s *Store) GetContainerByID(id types.ID) (*types.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[id]
	if !ok {
		return nil, mgmerr.New(mgmerr.MissingEntry, "no such container id %d", id)
	}
	return c, nil
}

// UpdateContainer writes a full update record for c (spec §4.1: "the
// log is the whole-record journal, not a delta journal").
func (s *Store) UpdateContainer(c *types.Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[c.ID]; !ok {
		return mgmerr.New(mgmerr.MissingEntry, "no such container id %d", c.ID)
	}
	if _, err := s.appendContainer(changelog.TagUpdate, c); err != nil {
		return err
	}
	s.containers[c.ID] = c
	delete(s.dirMTime, c.ID) // explicit update supersedes the cached mtime
	return nil
}

// RemoveContainer is forbidden if the container is not empty unless
// recursive deletes children bottom-up (spec §4.1).
func (s *Store) RemoveContainer(p string, recursive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.resolveContainer(p)
	if err != nil {
		return err
	}
	return s.removeContainerLocked(c, recursive)
}

func (s *Store) removeContainerLocked(c *types.Container, recursive bool) error {
	if c.ID == RootID {
		return mgmerr.New(mgmerr.PermissionDenied, "cannot remove root")
	}
	if len(c.Children) > 0 || len(c.Files) > 0 {
		if !recursive {
			return mgmerr.New(mgmerr.Invalid, "container %d not empty", c.ID)
		}
		for _, name := range append([]string{}, c.Children...) {
			childID := s.childIdx[c.ID][name]
			child, ok := s.containers[childID]
			if !ok {
				continue
			}
			if err := s.removeContainerLocked(child, true); err != nil {
				return err
			}
		}
		for _, name := range append([]string{}, c.Files...) {
			fileID := s.fileIdx[c.ID][name]
			if f, ok := s.files[fileID]; ok {
				if err := s.unlinkFileLocked(f); err != nil {
					return err
				}
			}
		}
	}

	if _, err := s.appendContainer(changelog.TagRemove, c); err != nil {
		return err
	}
	s.unindexContainer(c)
	delete(s.containers, c.ID)
	delete(s.dirMTime, c.ID)

	if parent, ok := s.containers[c.ParentID]; ok {
		parent.Children = removeName(parent.Children, c.Name)
		parent.MTime = time.Now()
		if _, err := s.appendContainer(changelog.TagUpdate, parent); err != nil {
			return err
		}
	}
	return nil
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
