package replication

import (
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/fsm"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func newTestNode(t *testing.T, id string) *Node {
	t.Helper()
	dir := t.TempDir()
	store, err := namespace.Open(filepath.Join(dir, "containers.log"), filepath.Join(dir, "files.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	view := clusterview.New(nil)
	f := fsm.New(store, view)

	node, err := New(Config{
		NodeID:   id,
		BindAddr: fmt.Sprintf("127.0.0.1:%d", freePort(t)),
		DataDir:  dir,
	}, f)
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Shutdown() })
	return node
}

func waitForLeader(t *testing.T, n *Node) {
	t.Helper()
	require.Eventually(t, n.IsLeader, 5*time.Second, 20*time.Millisecond)
}

func TestBootstrapBecomesLeader(t *testing.T) {
	n := newTestNode(t, "node-1")
	require.NoError(t, n.Bootstrap())
	waitForLeader(t, n)

	servers, err := n.Servers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
}

func TestApplyCommitsThroughFSM(t *testing.T) {
	n := newTestNode(t, "node-1")
	require.NoError(t, n.Bootstrap())
	waitForLeader(t, n)

	data, err := json.Marshal(fsm.CreateContainerRequest{Path: "/a", Mode: 0755, Recursive: true})
	require.NoError(t, err)

	err = n.Apply(fsm.Command{Op: fsm.OpCreateContainer, Data: data})
	require.NoError(t, err)
}

func TestApplyPropagatesFSMError(t *testing.T) {
	n := newTestNode(t, "node-1")
	require.NoError(t, n.Bootstrap())
	waitForLeader(t, n)

	err := n.Apply(fsm.Command{Op: "bogus", Data: json.RawMessage(`{}`)})
	require.Error(t, err)
}

func TestAddVoterRejectedWhenNotLeader(t *testing.T) {
	n := newTestNode(t, "node-1")
	require.NoError(t, n.start())

	err := n.AddVoter("node-2", "127.0.0.1:1")
	require.Error(t, err)
}

func TestStatsReportsLeaderState(t *testing.T) {
	n := newTestNode(t, "node-1")
	require.NoError(t, n.Bootstrap())
	waitForLeader(t, n)

	stats := n.Stats()
	require.Equal(t, "Leader", stats["state"])
}
