package fsm

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"
)

func openTestFSM(t *testing.T) (*MgmFSM, *namespace.Store, *clusterview.View) {
	t.Helper()
	dir := t.TempDir()
	s, err := namespace.Open(filepath.Join(dir, "containers.log"), filepath.Join(dir, "files.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	v := clusterview.New(nil)
	return New(s, v), s, v
}

func applyCmd(t *testing.T, f *MgmFSM, op string, payload interface{}) interface{} {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	cmd := Command{Op: op, Data: data}
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	return f.Apply(&raft.Log{Data: raw})
}

func TestApplyCreateContainerAndFile(t *testing.T) {
	f, s, _ := openTestFSM(t)

	res := applyCmd(t, f, OpCreateContainer, CreateContainerRequest{Path: "/a", Mode: 0755, Recursive: true})
	require.Nil(t, res)

	res = applyCmd(t, f, OpCreateFile, CreateFileRequest{Path: "/a/file.dat"})
	require.Nil(t, res)

	got, err := s.GetFile("/a/file.dat")
	require.NoError(t, err)
	require.Equal(t, "file.dat", got.Name)
}

func TestApplyUnknownOpReturnsError(t *testing.T) {
	f, _, _ := openTestFSM(t)
	res := applyCmd(t, f, "bogus", struct{}{})
	require.Error(t, res.(error))
}

func TestApplyUpsertFileSystem(t *testing.T) {
	f, _, v := openTestFSM(t)

	res := applyCmd(t, f, OpUpsertFileSystem, &types.FileSystem{ID: 1, Host: "fst01"})
	require.Nil(t, res)

	fs, err := v.FileSystem(1)
	require.NoError(t, err)
	require.Equal(t, "fst01", fs.Host)
}

func TestSnapshotRestoreRoundTrips(t *testing.T) {
	f, s, v := openTestFSM(t)

	require.Nil(t, applyCmd(t, f, OpCreateContainer, CreateContainerRequest{Path: "/a", Mode: 0755, Recursive: true}))
	require.Nil(t, applyCmd(t, f, OpCreateFile, CreateFileRequest{Path: "/a/file.dat"}))
	require.Nil(t, applyCmd(t, f, OpUpsertFileSystem, &types.FileSystem{ID: 1, Host: "fst01", Group: "default.0"}))
	require.Nil(t, applyCmd(t, f, OpUpsertSpace, &types.Space{Name: "default", GroupNames: []string{"default.0"}}))

	snap, err := f.Snapshot()
	require.NoError(t, err)

	var buf bytes.Buffer
	sink := &fakeSink{Buffer: &buf}
	require.NoError(t, snap.Persist(sink))

	dir2 := t.TempDir()
	s2, err := namespace.Open(filepath.Join(dir2, "containers.log"), filepath.Join(dir2, "files.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })
	v2 := clusterview.New(nil)
	f2 := New(s2, v2)

	require.NoError(t, f2.Restore(&fakeReadCloser{Reader: bytes.NewReader(buf.Bytes())}))

	got, err := s2.GetFile("/a/file.dat")
	require.NoError(t, err)
	require.Equal(t, "file.dat", got.Name)

	fs, err := v2.FileSystem(1)
	require.NoError(t, err)
	require.Equal(t, "fst01", fs.Host)

	sp, err := v2.Space("default")
	require.NoError(t, err)
	require.Equal(t, []string{"default.0"}, sp.GroupNames)

	_ = s
	_ = v
}

type fakeSink struct {
	*bytes.Buffer
}

func (f *fakeSink) ID() string    { return "test" }
func (f *fakeSink) Cancel() error { return nil }
func (f *fakeSink) Close() error  { return nil }

type fakeReadCloser struct {
	*bytes.Reader
}

func (f *fakeReadCloser) Close() error { return nil }
