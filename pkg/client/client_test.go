package client

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/transport"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	gotIdentity types.Identity
	gotArgs     url.Values
	joined      chan struct {
		nodeID, raftAddr string
	}
}

func (h *fakeHandler) Open(ctx context.Context, req transport.Envelope) (transport.Envelope, error) {
	return transport.Envelope{}, nil
}

func (h *fakeHandler) Commit(ctx context.Context, req transport.Envelope) (transport.Envelope, error) {
	return transport.Envelope{}, nil
}

func (h *fakeHandler) ProcExec(ctx context.Context, req transport.Envelope) (transport.Envelope, error) {
	var pr transport.ProcExecRequest
	if err := json.Unmarshal(req.Payload, &pr); err != nil {
		return transport.Envelope{}, err
	}
	h.gotIdentity = pr.Identity
	h.gotArgs = url.Values(pr.Args)

	resp := transport.ProcExecResponse{Stdout: "ok", Retc: 0}
	payload, err := json.Marshal(resp)
	if err != nil {
		return transport.Envelope{}, err
	}
	return transport.Envelope{Payload: payload}, nil
}

func (h *fakeHandler) Join(ctx context.Context, req transport.Envelope) (transport.Envelope, error) {
	var jr struct {
		NodeID   string `json:"node_id"`
		RaftAddr string `json:"raft_addr"`
	}
	if err := json.Unmarshal(req.Payload, &jr); err != nil {
		return transport.Envelope{}, err
	}
	h.joined <- struct{ nodeID, raftAddr string }{jr.NodeID, jr.RaftAddr}
	return transport.Envelope{}, nil
}

func startFakeServer(t *testing.T, h transport.Handler) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := transport.NewServer(h)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func TestExecSendsIdentityAndArgs(t *testing.T) {
	h := &fakeHandler{joined: make(chan struct{ nodeID, raftAddr string }, 1)}
	addr := startFakeServer(t, h)

	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	args := url.Values{"mgm.cmd": {"fs"}, "mgm.subcmd": {"ls"}}
	res, err := c.Exec(ctx, types.Identity{UID: 0, Sudoer: true}, "/proc/admin/", args)
	require.NoError(t, err)
	require.Equal(t, "ok", res.Stdout)
	require.True(t, h.gotIdentity.Sudoer)
	require.Equal(t, "ls", h.gotArgs.Get("mgm.subcmd"))
}

func TestJoinClusterDeliversRequest(t *testing.T) {
	h := &fakeHandler{joined: make(chan struct{ nodeID, raftAddr string }, 1)}
	addr := startFakeServer(t, h)

	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, c.JoinCluster(ctx, "core-2", "127.0.0.1:9001"))

	select {
	case jr := <-h.joined:
		require.Equal(t, "core-2", jr.nodeID)
		require.Equal(t, "127.0.0.1:9001", jr.raftAddr)
	case <-time.After(2 * time.Second):
		t.Fatal("join request never delivered")
	}
}
