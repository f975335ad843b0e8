package namespace

import (
	"testing"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/stretchr/testify/require"
)

func TestCommitAddsLocationAndUpdatesSizeAndChecksum(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	f, err := s.CreateFile("/a/file.dat", 0, 0, 0)
	require.NoError(t, err)

	got, err := s.Commit(CommitRequest{
		FileID:     f.ID,
		FsID:       3,
		Size:       100,
		Checksum:   []byte{0xde, 0xad},
		CommitSize: true,
		CommitChecksum: true,
	})
	require.NoError(t, err)
	require.Contains(t, got.Locations, uint32(3))
	require.Equal(t, uint64(100), got.Size)
	require.Equal(t, 1, s.FSView().LiveCount(3))
}

func TestCommitReplicationMismatchedSizeLeavesFileUnchanged(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	f, err := s.CreateFile("/a/file.dat", 0, 0, 0)
	require.NoError(t, err)

	_, err = s.Commit(CommitRequest{
		FileID:     f.ID,
		FsID:       3,
		Size:       100,
		Checksum:   []byte{0xde, 0xad},
		CommitSize: true,
		CommitChecksum: true,
	})
	require.NoError(t, err)

	_, err = s.Commit(CommitRequest{
		FileID:         f.ID,
		FsID:           4,
		Size:           101,
		Checksum:       []byte{0xde, 0xad},
		VerifySize:     true,
		VerifyChecksum: true,
		CommitSize:     true,
		Replication:    true,
	})
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.BadSize, kind)

	got, err := s.GetFile("/a/file.dat")
	require.NoError(t, err)
	require.Equal(t, uint64(100), got.Size)
	require.NotContains(t, got.Locations, uint32(4))
}

func TestCommitReplicationMismatchedChecksumRejected(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	f, err := s.CreateFile("/a/file.dat", 0, 0, 0)
	require.NoError(t, err)

	_, err = s.Commit(CommitRequest{
		FileID:         f.ID,
		FsID:           3,
		Size:           100,
		Checksum:       []byte{0xde, 0xad},
		CommitSize:     true,
		CommitChecksum: true,
	})
	require.NoError(t, err)

	_, err = s.Commit(CommitRequest{
		FileID:         f.ID,
		FsID:           4,
		Size:           100,
		Checksum:       []byte{0xbe, 0xef},
		VerifySize:     true,
		VerifyChecksum: true,
		Replication:    true,
	})
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.BadChecksum, kind)
}

func TestCommitOnRemovedFileReturnsGone(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	f, err := s.CreateFile("/a/file.dat", 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.UnlinkFile("/a/file.dat"))

	_, err = s.Commit(CommitRequest{FileID: f.ID, FsID: 3, CommitSize: true})
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.Gone, kind)
}

func TestCommitMissingFsIDRejected(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	f, err := s.CreateFile("/a/file.dat", 0, 0, 0)
	require.NoError(t, err)

	_, err = s.Commit(CommitRequest{FileID: f.ID, FsID: 0})
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.Invalid, kind)
}

func TestCommitOnUnlinkedFileReturnsGone(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	f, err := s.CreateFile("/a/file.dat", 0, 0, 0)
	require.NoError(t, err)
	f.Locations = []uint32{3, 4}
	require.NoError(t, s.UpdateFile(f))

	require.NoError(t, s.UnlinkFile("/a/file.dat"))
	require.Contains(t, s.FSView().UnlinkedFiles(3), f.ID)

	_, err = s.Commit(CommitRequest{FileID: f.ID, FsID: 3})
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.Gone, kind)
}

func TestCommitDropFsIDRemovesStaleReplica(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	f, err := s.CreateFile("/a/file.dat", 0, 0, 0)
	require.NoError(t, err)
	f.Locations = []uint32{3}
	require.NoError(t, s.UpdateFile(f))

	got, err := s.Commit(CommitRequest{
		FileID:   f.ID,
		FsID:     5,
		DropFsID: 3,
		MTime:    time.Now(),
	})
	require.NoError(t, err)
	require.Contains(t, got.Locations, uint32(5))
	require.NotContains(t, got.Locations, uint32(3))
	require.Equal(t, 0, s.FSView().LiveCount(3))
	require.Equal(t, 1, s.FSView().LiveCount(5))
}
