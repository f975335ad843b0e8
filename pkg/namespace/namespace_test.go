package namespace

import (
	"path/filepath"
	"testing"

	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "containers.log"), filepath.Join(dir, "files.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateContainerRecursive(t *testing.T) {
	s := openTestStore(t)

	c, err := s.CreateContainer("/eos/dev/disk01", 0, 0, 0755, true)
	require.NoError(t, err)
	require.Equal(t, "disk01", c.Name)

	p, err := s.PathOf(c.ID)
	require.NoError(t, err)
	require.Equal(t, "/eos/dev/disk01", p)
}

func TestCreateContainerDuplicateRejected(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	_, err = s.CreateContainer("/a", 0, 0, 0755, false)
	require.Error(t, err)
}

func TestCreateContainerMkdirPIdempotent(t *testing.T) {
	s := openTestStore(t)

	first, err := s.CreateContainer("/a/b/c", 0, 0, 0755, true)
	require.NoError(t, err)

	second, err := s.CreateContainer("/a/b/c", 0, 0, 0755, true)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestCreateFileAndUnlink(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a", 0, 0, 0777, true)
	require.NoError(t, err)

	f, err := s.CreateFile("/a/file.dat", 1, 1, 0)
	require.NoError(t, err)
	require.Equal(t, "file.dat", f.Name)

	got, err := s.GetFile("/a/file.dat")
	require.NoError(t, err)
	require.Equal(t, f.ID, got.ID)

	f.Locations = []uint32{1, 2}
	f.Size = 4096
	require.NoError(t, s.UpdateFile(f))
	require.Equal(t, 1, s.FSView().LiveCount(1))
	require.Equal(t, 1, s.FSView().LiveCount(2))

	require.NoError(t, s.UnlinkFile("/a/file.dat"))
	_, err = s.GetFile("/a/file.dat")
	require.Error(t, err)
	require.Equal(t, 0, s.FSView().LiveCount(1))

	unlinked := s.FSView().UnlinkedFiles(1)
	require.Contains(t, unlinked, f.ID)
}

func TestRemoveContainerNotEmptyRejected(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	_, err = s.CreateFile("/a/file.dat", 0, 0, 0)
	require.NoError(t, err)

	err = s.RemoveContainer("/a", false)
	require.Error(t, err)

	require.NoError(t, s.RemoveContainer("/a", true))
	_, err = s.GetContainer("/a")
	require.Error(t, err)
}

func TestRenameFileAcrossParents(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/src", 0, 0, 0755, true)
	require.NoError(t, err)
	_, err = s.CreateContainer("/dst", 0, 0, 0755, true)
	require.NoError(t, err)
	_, err = s.CreateFile("/src/file.dat", 0, 0, 0)
	require.NoError(t, err)

	require.NoError(t, s.Rename("/src/file.dat", "/dst/file.dat", 0, 0))

	_, err = s.GetFile("/src/file.dat")
	require.Error(t, err)
	got, err := s.GetFile("/dst/file.dat")
	require.NoError(t, err)
	require.Equal(t, "file.dat", got.Name)
}

func TestRenameContainerIntoOwnSubtreeRejected(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a/b", 0, 0, 0755, true)
	require.NoError(t, err)

	err = s.Rename("/a", "/a/b/a", 0, 0)
	require.Error(t, err)
}

func TestRenameDeniedWithoutWriteExecOnEitherParent(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/src", 0, 0, 0755, true)
	require.NoError(t, err)
	_, err = s.CreateContainer("/dst", 0, 0, 0750, true)
	require.NoError(t, err)
	_, err = s.CreateFile("/src/file.dat", 0, 0, 0)
	require.NoError(t, err)

	err = s.Rename("/src/file.dat", "/dst/file.dat", 2, 2)
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.PermissionDenied, kind)

	_, err = s.GetFile("/src/file.dat")
	require.NoError(t, err, "failed rename must not have moved the file")
}

func TestQuotaAccountingOnCreateResizeAndRemove(t *testing.T) {
	s := openTestStore(t)
	top, err := s.CreateContainer("/proj", 0, 0, 0777, true)
	require.NoError(t, err)
	top.QuotaNode = true
	require.NoError(t, s.UpdateContainer(top))

	f, err := s.CreateFile("/proj/a.dat", 7, 7, 0)
	require.NoError(t, err)
	f.Size = 1000
	require.NoError(t, s.UpdateFile(f))

	node := s.Quota().NodeFor(top.ID)
	require.Equal(t, uint64(1000), node.ByUID[7].LogicalBytes)
	require.Equal(t, uint64(1), node.ByUID[7].Files)

	require.NoError(t, s.UnlinkFile("/proj/a.dat"))
	require.Equal(t, uint64(0), node.ByUID[7].LogicalBytes)
	require.Equal(t, uint64(0), node.ByUID[7].Files)
}

func TestDirMTimeCacheFallsBackToCommitted(t *testing.T) {
	s := openTestStore(t)
	c, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)

	mt, err := s.DirMTime(c.ID)
	require.NoError(t, err)
	require.Equal(t, c.MTime, mt)
}

func TestReplayRebuildsTreeAndViews(t *testing.T) {
	dir := t.TempDir()
	clog := filepath.Join(dir, "containers.log")
	flog := filepath.Join(dir, "files.log")

	s, err := Open(clog, flog)
	require.NoError(t, err)
	_, err = s.CreateContainer("/a/b", 0, 0, 0755, true)
	require.NoError(t, err)
	f, err := s.CreateFile("/a/b/file.dat", 0, 0, 0)
	require.NoError(t, err)
	f.Locations = []uint32{3}
	require.NoError(t, s.UpdateFile(f))
	require.NoError(t, s.Close())

	reopened, err := Open(clog, flog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetFile("/a/b/file.dat")
	require.NoError(t, err)
	require.Equal(t, f.ID, got.ID)
	require.Equal(t, 1, reopened.FSView().LiveCount(3))
}
