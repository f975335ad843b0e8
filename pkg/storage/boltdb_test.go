package storage

import (
	"testing"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFileSystemPutGetList(t *testing.T) {
	s := openTestStore(t)

	fs := &types.FileSystem{ID: 1, Host: "fst01", Group: "default.0"}
	require.NoError(t, s.PutFileSystem(fs))

	got, err := s.GetFileSystem(1)
	require.NoError(t, err)
	require.Equal(t, "fst01", got.Host)

	all, err := s.ListFileSystems()
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, s.DeleteFileSystem(1))
	_, err = s.GetFileSystem(1)
	require.Error(t, err)
}

func TestNodeGroupSpaceRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutNode(&types.Node{Name: "/eos/fst01"}))
	n, err := s.GetNode("/eos/fst01")
	require.NoError(t, err)
	require.Equal(t, "/eos/fst01", n.Name)

	require.NoError(t, s.PutGroup(&types.Group{Name: "default.0", SpaceName: "default"}))
	g, err := s.GetGroup("default.0")
	require.NoError(t, err)
	require.Equal(t, "default", g.SpaceName)

	require.NoError(t, s.PutSpace(&types.Space{Name: "default", GroupNames: []string{"default.0"}}))
	sp, err := s.GetSpace("default")
	require.NoError(t, err)
	require.Len(t, sp.GroupNames, 1)
}
