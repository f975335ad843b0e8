package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/transport"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// DefaultTimeout bounds a single admin command round trip.
const DefaultTimeout = 10 * time.Second

// Client is the CLI-facing wrapper over pkg/transport, the thing
// cmd/eos-admin's cobra commands dial once and reuse for every proc
// command the operator issues (spec §6's proc-open command surface is
// the entire admin API this CORE exposes).
type Client struct {
	conn *transport.Client
}

// Dial connects to a CORE node's transport listener.
func Dial(addr string) (*Client, error) {
	c, err := transport.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{conn: c}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Result mirrors pkg/proc.Result, the stdout/stderr/retc triple every
// proc command returns (spec §6).
type Result struct {
	Stdout string
	Stderr string
	Retc   int
}

// Exec runs one proc command against the CORE, as the identity the
// caller asserts (the CORE still applies its own authorization check
// against the transport-level identity; spec §6 does not trust a
// client-asserted identity over an authenticated connection's own
// credentials, but this CORE's transport has no credential binding yet
// — see pkg/transport's package doc).
func (c *Client) Exec(ctx context.Context, identity types.Identity, path string, args url.Values) (Result, error) {
	req := transport.ProcExecRequest{
		Identity: identity,
		Path:     path,
		Args:     map[string][]string(args),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}

	envelope, err := c.conn.ProcExec(ctx, transport.Envelope{Op: args.Get("mgm.cmd"), Payload: payload})
	if err != nil {
		return Result{}, err
	}

	var resp transport.ProcExecResponse
	if err := json.Unmarshal(envelope.Payload, &resp); err != nil {
		return Result{}, err
	}
	if resp.Err != "" {
		return Result{Stdout: resp.Stdout, Stderr: resp.Stderr, Retc: resp.Retc}, fmt.Errorf("%s", resp.Err)
	}
	return Result{Stdout: resp.Stdout, Stderr: resp.Stderr, Retc: resp.Retc}, nil
}

// JoinCluster asks the CORE node dialed by c to add nodeID/raftAddr as
// a new voter, the RPC a new node's replication bootstrap calls once
// it has a leader address to join.
func (c *Client) JoinCluster(ctx context.Context, nodeID, raftAddr string) error {
	return c.conn.JoinCluster(ctx, nodeID, raftAddr)
}
