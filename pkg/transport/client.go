package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a thin grpc connection bound to the hand-written
// ServiceDesc; since there is no generated stub, each RPC spells out
// its own conn.Invoke call against the same four method names the
// server registers.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a CORE node's transport listener.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, req Envelope) (Envelope, error) {
	var resp Envelope
	err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, &resp)
	return resp, err
}

func (c *Client) Open(ctx context.Context, req Envelope) (Envelope, error) {
	return c.call(ctx, "Open", req)
}

func (c *Client) Commit(ctx context.Context, req Envelope) (Envelope, error) {
	return c.call(ctx, "Commit", req)
}

func (c *Client) ProcExec(ctx context.Context, req Envelope) (Envelope, error) {
	return c.call(ctx, "ProcExec", req)
}

func (c *Client) Join(ctx context.Context, req Envelope) (Envelope, error) {
	return c.call(ctx, "Join", req)
}

// JoinCluster marshals a join request and sends it as the Join RPC's
// payload, matching the shape pkg/replication.JoinFunc expects so it
// can be passed straight through as the callback.
func (c *Client) JoinCluster(ctx context.Context, nodeID, raftAddr string) error {
	payload, err := json.Marshal(joinRequest{NodeID: nodeID, RaftAddr: raftAddr})
	if err != nil {
		return err
	}
	_, err = c.Join(ctx, Envelope{Payload: payload})
	return err
}
