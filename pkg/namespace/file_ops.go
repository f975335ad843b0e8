package namespace

import (
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/changelog"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// CreateFile books a new, zero-location file entry under p (spec
// §4.6's placement step fills in Locations afterward via UpdateFile).
func (s *Store) CreateFile(p string, uid, gid uint32, layoutID uint32) (*types.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, name, err := s.resolveParentAndName(p)
	if err != nil {
		return nil, err
	}
	if _, exists := s.fileIdx[parent.ID][name]; exists {
		return nil, mgmerr.New(mgmerr.ExistingEntry, "%q already exists", p)
	}
	if !canWriteExec(uid, gid, parent) {
		return nil, mgmerr.New(mgmerr.PermissionDenied, "no write+execute on parent %d", parent.ID)
	}

	now := time.Now()
	f := &types.File{
		ID:       s.allocID(),
		Name:     name,
		ParentID: parent.ID,
		UID:      uid,
		GID:      gid,
		LayoutID: layoutID,
		CTime:    now,
		MTime:    now,
		Xattrs:   map[string]string{},
	}
	if _, err := s.appendFile(changelog.TagCreate, f); err != nil {
		return nil, err
	}
	s.files[f.ID] = f
	s.indexFile(f)
	parent.Files = append(parent.Files, name)
	parent.MTime = now
	if _, err := s.appendContainer(changelog.TagUpdate, parent); err != nil {
		return nil, err
	}
	s.dirMTime[parent.ID] = now
	s.quota.ApplyCreate(s, f)
	s.notify(Event{Action: EventCreated, FileID: f.ID})
	return f, nil
}

// GetFile resolves path to its (linked) file entry.
func (s *Store) GetFile(p string) (*types.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveFile(p)
}

// GetFileByID looks up a file by id, including unlinked ones (callers
// that need to exclude unlinked files should check File.Unlinked).
func (s *Store) GetFileByID(id types.ID) (*types.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, mgmerr.New(mgmerr.MissingEntry, "no such file id %d", id)
	}
	return f, nil
}

// Files returns a snapshot slice of every file entry, linked or not,
// for engines that need to scan the whole namespace (the fsck engine's
// location-consistency sweep).
func (s *Store) Files() []*types.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	return out
}

// UpdateFile writes a full update record for f, reconciling the
// File-System View against its previous location set and the quota
// index against its previous size (spec §4.1, §4.2, §4.3 all react to
// the same mutation).
func (s *Store) UpdateFile(f *types.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.files[f.ID]
	if !ok {
		return mgmerr.New(mgmerr.MissingEntry, "no such file id %d", f.ID)
	}
	oldLocations := append([]uint32{}, old.Locations...)
	oldSize := old.Size

	if _, err := s.appendFile(changelog.TagUpdate, f); err != nil {
		return err
	}
	s.files[f.ID] = f
	s.fsview.apply(f, oldLocations)
	if f.Size != oldSize {
		s.quota.ApplyResize(s, f, oldSize)
	}
	s.notify(Event{Action: EventLocationReplaced, FileID: f.ID})
	return nil
}

// UnlinkFile detaches a file from its parent directory and moves its
// current Locations to UnlinkedLocations, pending physical deletion by
// the deletion-dispatcher engine (spec §4.4). The file entry itself
// remains addressable by id until the last replica is deleted.
func (s *Store) UnlinkFile(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.resolveFile(p)
	if err != nil {
		return err
	}
	return s.unlinkFileLocked(f)
}

func (s *Store) unlinkFileLocked(f *types.File) error {
	if f.Unlinked {
		return nil
	}
	parent, ok := s.containers[f.ParentID]
	if ok {
		s.unindexFile(f)
		parent.Files = removeName(parent.Files, f.Name)
		parent.MTime = time.Now()
		if _, err := s.appendContainer(changelog.TagUpdate, parent); err != nil {
			return err
		}
		s.dirMTime[parent.ID] = parent.MTime
	}

	f.UnlinkedLocations = append(f.UnlinkedLocations, f.Locations...)
	f.Locations = nil
	f.Unlinked = true
	if _, err := s.appendFile(changelog.TagUnlink, f); err != nil {
		return err
	}
	s.files[f.ID] = f
	s.fsview.apply(f, nil)
	s.quota.ApplyRemove(s, f)
	s.notify(Event{Action: EventDeleted, FileID: f.ID})
	return nil
}

// PurgeFile finally removes a fully-drained unlinked file (all its
// replicas physically deleted) from the namespace and the file-system
// view, writing a remove record (spec §4.4's deletion dispatcher is
// the only caller).
func (s *Store) PurgeFile(id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return mgmerr.New(mgmerr.MissingEntry, "no such file id %d", id)
	}
	if len(f.UnlinkedLocations) > 0 {
		return mgmerr.New(mgmerr.Invalid, "file %d still has %d unlinked replicas", id, len(f.UnlinkedLocations))
	}
	return s.purgeFileLocked(f)
}

func (s *Store) purgeFileLocked(f *types.File) error {
	if _, err := s.appendFile(changelog.TagRemove, f); err != nil {
		return err
	}
	s.fsview.RemoveFile(f)
	delete(s.files, f.ID)
	return nil
}

// Rename moves a container or file from srcPath to dstPath, possibly
// across parents (spec §4.1). Only one of the two lookups succeeds;
// renaming a directory into one of its own descendants is rejected.
// uid/gid is the calling identity; spec §4.1 requires write+execute on
// both the old and new parent, not just the destination.
func (s *Store) Rename(srcPath, dstPath string, uid, gid uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, err := s.resolveContainer(srcPath); err == nil {
		return s.renameContainerLocked(c, dstPath, uid, gid)
	}
	f, err := s.resolveFile(srcPath)
	if err != nil {
		return mgmerr.New(mgmerr.MissingEntry, "no such entry %q", srcPath)
	}
	return s.renameFileLocked(f, dstPath, uid, gid)
}

func (s *Store) renameContainerLocked(c *types.Container, dstPath string, uid, gid uint32) error {
	newParent, newName, err := s.resolveParentAndName(dstPath)
	if err != nil {
		return err
	}
	for p := newParent; ; {
		if p.ID == c.ID {
			return mgmerr.New(mgmerr.Invalid, "cannot rename a container into its own subtree")
		}
		if p.ID == RootID {
			break
		}
		next, ok := s.containers[p.ParentID]
		if !ok {
			break
		}
		p = next
	}
	if _, exists := s.childIdx[newParent.ID][newName]; exists {
		return mgmerr.New(mgmerr.ExistingEntry, "%q already exists", dstPath)
	}

	oldParent := s.containers[c.ParentID]
	if oldParent != nil && !canWriteExec(uid, gid, oldParent) {
		return mgmerr.New(mgmerr.PermissionDenied, "no write+execute on source parent %d", oldParent.ID)
	}
	if !canWriteExec(uid, gid, newParent) {
		return mgmerr.New(mgmerr.PermissionDenied, "no write+execute on destination parent %d", newParent.ID)
	}

	s.unindexContainer(c)
	if oldParent != nil {
		oldParent.Children = removeName(oldParent.Children, c.Name)
	}
	c.ParentID = newParent.ID
	c.Name = newName
	c.MTime = time.Now()
	s.indexContainer(c)
	newParent.Children = append(newParent.Children, newName)
	newParent.MTime = c.MTime

	if _, err := s.appendContainer(changelog.TagUpdate, c); err != nil {
		return err
	}
	if oldParent != nil && oldParent.ID != newParent.ID {
		if _, err := s.appendContainer(changelog.TagUpdate, oldParent); err != nil {
			return err
		}
	}
	if _, err := s.appendContainer(changelog.TagUpdate, newParent); err != nil {
		return err
	}
	return nil
}

func (s *Store) renameFileLocked(f *types.File, dstPath string, uid, gid uint32) error {
	newParent, newName, err := s.resolveParentAndName(dstPath)
	if err != nil {
		return err
	}
	if _, exists := s.fileIdx[newParent.ID][newName]; exists {
		return mgmerr.New(mgmerr.ExistingEntry, "%q already exists", dstPath)
	}

	oldParent := s.containers[f.ParentID]
	if oldParent != nil && !canWriteExec(uid, gid, oldParent) {
		return mgmerr.New(mgmerr.PermissionDenied, "no write+execute on source parent %d", oldParent.ID)
	}
	if !canWriteExec(uid, gid, newParent) {
		return mgmerr.New(mgmerr.PermissionDenied, "no write+execute on destination parent %d", newParent.ID)
	}

	s.unindexFile(f)
	if oldParent != nil {
		oldParent.Files = removeName(oldParent.Files, f.Name)
	}
	f.ParentID = newParent.ID
	f.Name = newName
	f.MTime = time.Now()
	s.indexFile(f)
	newParent.Files = append(newParent.Files, newName)
	newParent.MTime = f.MTime

	if _, err := s.appendFile(changelog.TagUpdate, f); err != nil {
		return err
	}
	if oldParent != nil && oldParent.ID != newParent.ID {
		if _, err := s.appendContainer(changelog.TagUpdate, oldParent); err != nil {
			return err
		}
	}
	if _, err := s.appendContainer(changelog.TagUpdate, newParent); err != nil {
		return err
	}
	return nil
}
