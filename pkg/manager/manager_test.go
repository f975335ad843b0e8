package manager

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/client"
	"github.com/HaiboGNU/eos-sub000/pkg/config"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/transport"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{
		Node: config.NodeConfig{
			ID:            "core-test",
			BindAddr:      "127.0.0.1:0",
			TransportAddr: "127.0.0.1:0",
			DataDir:       t.TempDir(),
			Version:       "test",
		},
	}

	m, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Bootstrap())
	require.NoError(t, m.Serve())
	m.Start()

	t.Cleanup(func() { _ = m.Shutdown() })

	require.Eventually(t, m.IsLeader, 2*time.Second, 10*time.Millisecond)
	return m
}

func TestProcExecMkdirAndLsRoundTrip(t *testing.T) {
	m := newTestManager(t)

	c, err := client.Dial(m.listener.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	identity := types.Identity{UID: 0, GID: 0, Sudoer: true}

	res, err := c.Exec(ctx, identity, "/proc/admin/", url.Values{
		"mgm.cmd":    {"mkdir"},
		"mgm.path":   {"/eos/test"},
		"mgm.option": {"p"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Retc)

	res, err = c.Exec(ctx, identity, "/proc/admin/", url.Values{
		"mgm.cmd": {"whoami"},
	})
	require.NoError(t, err)
	require.Contains(t, res.Stdout, "uid=0")
}

func TestCommitRPCAppliesSizeToFile(t *testing.T) {
	m := newTestManager(t)

	_, err := m.store.CreateContainer("/eos/commit-test", 0, 0, 0755, true)
	require.NoError(t, err)
	file, err := m.store.CreateFile("/eos/commit-test/data", 0, 0, 0)
	require.NoError(t, err)

	fs := &types.FileSystem{ID: 1, Host: "fst-1", Port: 1095, Path: "/data"}
	require.NoError(t, m.view.UpsertFileSystem(fs))

	conn, err := transport.Dial(m.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	req := namespace.CommitRequest{
		FileID:     file.ID,
		FsID:       1,
		Size:       4096,
		MTime:      time.Now(),
		CommitSize: true,
	}
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = conn.Commit(ctx, transport.Envelope{Payload: payload})
	require.NoError(t, err)

	updated, err := m.store.GetFile("/eos/commit-test/data")
	require.NoError(t, err)
	require.Equal(t, uint64(4096), updated.Size)
}
