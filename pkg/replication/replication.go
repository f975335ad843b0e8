// Package replication wraps hashicorp/raft to turn the single-node
// CORE into a replicated cluster (spec §4.10): every mutation goes
// through Apply, which raft fans out to every voter's pkg/fsm.MgmFSM
// before it is considered committed. Grounded on the teacher's
// pkg/manager/manager.go raft wiring, stripped of everything that
// wired raft to Warren-specific concerns (DNS, ingress, ACME, the
// certificate authority, the secrets manager) that have no EOS
// counterpart.
package replication

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/fsm"
	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/metrics"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
)

// Config names one node's identity within the raft cluster.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Node owns a raft.Raft instance and the MgmFSM it drives.
type Node struct {
	cfg           Config
	fsm           *fsm.MgmFSM
	raft          *raft.Raft
	transportAddr raft.ServerAddress
	logger        zerolog.Logger
}

// New constructs a Node bound to fsm but does not start raft; call
// Bootstrap to form a new single-node cluster or Join to join one
// that already exists.
func New(cfg Config, f *fsm.MgmFSM) (*Node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("replication: create data dir: %w", err)
	}
	return &Node{cfg: cfg, fsm: f, logger: log.WithComponent("replication")}, nil
}

// raftConfig returns the tuned raft.Config the teacher arrived at for
// sub-10s LAN failover: 500ms heartbeat/election timeouts and a 250ms
// leader lease, all well below hashicorp/raft's WAN-oriented defaults.
func (n *Node) raftConfig() *raft.Config {
	c := raft.DefaultConfig()
	c.LocalID = raft.ServerID(n.cfg.NodeID)
	c.HeartbeatTimeout = 500 * time.Millisecond
	c.ElectionTimeout = 500 * time.Millisecond
	c.CommitTimeout = 50 * time.Millisecond
	c.LeaderLeaseTimeout = 250 * time.Millisecond
	return c
}

// start builds the transport, snapshot store, and BoltDB-backed
// log/stable stores, then constructs the raft.Raft instance. Shared
// by Bootstrap and Join, which differ only in what happens after.
func (n *Node) start() error {
	addr, err := net.ResolveTCPAddr("tcp", n.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("replication: resolve bind addr: %w", err)
	}

	transport, err := raft.NewTCPTransport(n.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("replication: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(n.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return fmt.Errorf("replication: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(n.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("replication: create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(n.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("replication: create stable store: %w", err)
	}

	r, err := raft.NewRaft(n.raftConfig(), n.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("replication: create raft: %w", err)
	}
	n.raft = r
	n.transportAddr = transport.LocalAddr()
	return nil
}

// Bootstrap forms a brand new single-voter cluster with this node as
// the only member. Used exactly once, by whichever node starts first.
func (n *Node) Bootstrap() error {
	if err := n.start(); err != nil {
		return err
	}

	cfg := raft.Configuration{
		Servers: []raft.Server{
			{ID: raft.ServerID(n.cfg.NodeID), Address: n.transportAddr},
		},
	}
	future := n.raft.BootstrapCluster(cfg)
	if err := future.Error(); err != nil {
		return fmt.Errorf("replication: bootstrap cluster: %w", err)
	}
	n.logger.Info().Str("node_id", n.cfg.NodeID).Msg("bootstrapped single-node cluster")
	return nil
}

// JoinFunc asks an already-running leader to add this node as a
// voter. Left as a caller-supplied callback rather than a concrete
// RPC client so pkg/replication stays independent of pkg/transport's
// wire format; pkg/manager wires the two together.
type JoinFunc func(nodeID, raftAddr string) error

// Join starts raft without bootstrapping a new configuration, then
// invokes joinLeader so the existing leader can AddVoter this node.
// The node remains a non-voting raft instance until that call
// succeeds and the leader's AddVoter future resolves.
func (n *Node) Join(joinLeader JoinFunc) error {
	if err := n.start(); err != nil {
		return err
	}
	if err := joinLeader(n.cfg.NodeID, string(n.transportAddr)); err != nil {
		return fmt.Errorf("replication: join cluster: %w", err)
	}
	n.logger.Info().Str("node_id", n.cfg.NodeID).Msg("joined existing cluster")
	return nil
}

// AddVoter is the leader-side half of Join: it adds nodeID at addr as
// a full voting member. Only the current leader may call this
// successfully; pkg/transport's join RPC handler calls it on whatever
// node receives the request.
func (n *Node) AddVoter(nodeID, addr string) error {
	if n.raft == nil {
		return fmt.Errorf("replication: raft not started")
	}
	if !n.IsLeader() {
		return fmt.Errorf("replication: not leader, current leader is %s", n.LeaderAddr())
	}
	future := n.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second)
	return future.Error()
}

// RemoveServer removes nodeID from the cluster's voter set.
func (n *Node) RemoveServer(nodeID string) error {
	if n.raft == nil {
		return fmt.Errorf("replication: raft not started")
	}
	if !n.IsLeader() {
		return fmt.Errorf("replication: not leader")
	}
	future := n.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	return future.Error()
}

// Servers lists the current raft configuration's member set.
func (n *Node) Servers() ([]raft.Server, error) {
	if n.raft == nil {
		return nil, fmt.Errorf("replication: raft not started")
	}
	future := n.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, err
	}
	return future.Configuration().Servers, nil
}

// IsLeader reports whether this node currently holds raft leadership.
func (n *Node) IsLeader() bool {
	return n.raft != nil && n.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's raft bind address, or "" if
// none is known (typically mid-election).
func (n *Node) LeaderAddr() string {
	if n.raft == nil {
		return ""
	}
	return string(n.raft.Leader())
}

// Stats reports a small snapshot of raft's internal state and
// refreshes the mgm_raft_* gauges.
func (n *Node) Stats() map[string]interface{} {
	if n.raft == nil {
		return nil
	}
	stats := map[string]interface{}{
		"state":          n.raft.State().String(),
		"last_log_index": n.raft.LastIndex(),
		"applied_index":  n.raft.AppliedIndex(),
		"leader":         string(n.raft.Leader()),
	}
	if servers, err := n.Servers(); err == nil {
		stats["peers"] = uint64(len(servers))
	}

	leaderGauge := float64(0)
	if n.IsLeader() {
		leaderGauge = 1
	}
	metrics.RaftLeader.Set(leaderGauge)
	metrics.RaftAppliedIndex.Set(float64(n.raft.AppliedIndex()))

	return stats
}

// Apply submits cmd to the replicated log and blocks until it has
// been committed and applied on this node. The FSM's own return value
// (an error or nil) is propagated back to the caller.
func (n *Node) Apply(cmd fsm.Command) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReplicationApplyDuration)

	if n.raft == nil {
		return fmt.Errorf("replication: raft not started")
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("replication: marshal command: %w", err)
	}

	future := n.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("replication: apply: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops the raft instance, releasing its log/stable/snapshot
// store file handles.
func (n *Node) Shutdown() error {
	if n.raft == nil {
		return nil
	}
	return n.raft.Shutdown().Error()
}
