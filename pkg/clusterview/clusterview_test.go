package clusterview

import (
	"testing"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndLookupFileSystem(t *testing.T) {
	v := New(nil)

	require.NoError(t, v.UpsertFileSystem(&types.FileSystem{ID: 1, Host: "fst01", Group: "default.0"}))
	fs, err := v.FileSystem(1)
	require.NoError(t, err)
	require.Equal(t, "fst01", fs.Host)

	ids := v.FileSystemsInGroup("default.0")
	require.Contains(t, ids, uint32(1))
}

func TestErrorListenerFiresOnlyOnTransitionAcrossZero(t *testing.T) {
	v := New(nil)
	var fired int
	v.Subscribe(func(fsid uint32, errCode int) { fired++ })

	require.NoError(t, v.UpsertFileSystem(&types.FileSystem{ID: 1, ErrCode: 0}))
	require.Equal(t, 0, fired, "first insert has no prior state, so no transition")

	require.NoError(t, v.UpsertFileSystem(&types.FileSystem{ID: 1, ErrCode: 5}))
	require.Equal(t, 1, fired)

	require.NoError(t, v.UpsertFileSystem(&types.FileSystem{ID: 1, ErrCode: 6}))
	require.Equal(t, 1, fired, "already non-zero, no new transition")
}

func TestRemoveFileSystemUnindexes(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.UpsertFileSystem(&types.FileSystem{ID: 1, Group: "g1"}))
	require.NoError(t, v.RemoveFileSystem(1))

	_, err := v.FileSystem(1)
	require.Error(t, err)
	require.Empty(t, v.FileSystemsInGroup("g1"))
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.UpsertFileSystem(&types.FileSystem{ID: 1, FreeBytes: 100}))

	snap := v.Snapshot()
	require.NoError(t, v.UpsertFileSystem(&types.FileSystem{ID: 1, FreeBytes: 200}))

	require.Equal(t, uint64(100), snap.FileSystems[1].FreeBytes)
	fs, err := v.FileSystem(1)
	require.NoError(t, err)
	require.Equal(t, uint64(200), fs.FreeBytes)
}

func TestGroupsInSpace(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.UpsertSpace(&types.Space{Name: "default", GroupNames: []string{"default.0", "default.1"}}))
	require.ElementsMatch(t, []string{"default.0", "default.1"}, v.GroupsInSpace("default"))
}
