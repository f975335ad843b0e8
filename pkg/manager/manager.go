// Package manager wires every CORE component into one running node:
// namespace store, cluster view, scheduler, rules, capability engine,
// the redirecting open front-end, the proc dispatcher, the background
// engine set, the raft-backed FSM and replication node, and the grpc
// transport that exposes all of it as the Open/Commit/ProcExec/Join
// service (spec §1, §4.9, §4.10). Grounded on the teacher's
// pkg/manager/manager.go, which performed the equivalent assembly for
// Warren's BoltDB store, WarrenFSM, token manager, secrets manager,
// certificate authority, event broker, and DNS server — everything
// Warren-specific (DNS, ingress, ACME, the CA, the secrets manager,
// join tokens) has no EOS counterpart and was dropped rather than
// carried along; see DESIGN.md for the per-dependency justification.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/capability"
	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/config"
	"github.com/HaiboGNU/eos-sub000/pkg/engines"
	"github.com/HaiboGNU/eos-sub000/pkg/events"
	"github.com/HaiboGNU/eos-sub000/pkg/fsm"
	"github.com/HaiboGNU/eos-sub000/pkg/health"
	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/metrics"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/openfront"
	"github.com/HaiboGNU/eos-sub000/pkg/proc"
	"github.com/HaiboGNU/eos-sub000/pkg/replication"
	"github.com/HaiboGNU/eos-sub000/pkg/rules"
	"github.com/HaiboGNU/eos-sub000/pkg/scheduler"
	"github.com/HaiboGNU/eos-sub000/pkg/storage"
	"github.com/HaiboGNU/eos-sub000/pkg/transport"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// DefaultCapabilityValidity is how long a minted capability stays good
// for when the config file does not set one (spec §4.7).
const DefaultCapabilityValidity = 5 * time.Minute

// DefaultHealthStaleAfter is how long a file system may go without a
// heartbeat before pkg/health.Monitor reports it as anything but
// active/online (spec §4.4's active-status axis).
const DefaultHealthStaleAfter = 30 * time.Second

// Manager owns every in-process component of one CORE node and
// implements transport.Handler so pkg/transport can dispatch straight
// into it.
type Manager struct {
	cfg *config.Config

	store *namespace.Store
	view  *clusterview.View
	sched *scheduler.Scheduler
	rules *rules.Store

	keys   *capability.KeyStore
	capEng *capability.Engine
	front  *openfront.Front
	dsp    *proc.Dispatcher

	broker     *events.Broker
	health     *health.Monitor
	collector  *metrics.Collector
	fsm        *fsm.MgmFSM
	repl       *replication.Node
	engineMgr  *engines.Manager
	fsckEngine *engines.Fsck

	boltStore *storage.Store

	srv      *grpc.Server
	listener net.Listener

	logger zerolog.Logger
}

// New assembles a Manager from a parsed config document but does not
// start raft or the background engines or bind the transport listener
// — call Bootstrap or JoinCluster, then Serve, then Start.
func New(cfg *config.Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("manager: create data dir: %w", err)
	}

	store, err := namespace.Open(
		filepath.Join(cfg.Node.DataDir, "containers.log"),
		filepath.Join(cfg.Node.DataDir, "files.log"),
	)
	if err != nil {
		return nil, fmt.Errorf("manager: open namespace: %w", err)
	}

	boltStore, err := storage.Open(cfg.Node.DataDir)
	if err != nil {
		return nil, fmt.Errorf("manager: open secondary index: %w", err)
	}

	view := clusterview.New(boltStore)
	if err := view.LoadFromStore(); err != nil {
		return nil, fmt.Errorf("manager: load cluster view: %w", err)
	}
	for _, sp := range cfg.Spaces() {
		sp := sp
		if err := view.UpsertSpace(&sp); err != nil {
			return nil, fmt.Errorf("manager: seed space %s: %w", sp.Name, err)
		}
	}

	sched := scheduler.New(view, store.Quota())

	rs := rules.NewStore()
	for _, r := range cfg.AccessRules() {
		rs.Add(r)
	}

	keys, err := capability.NewKeyStore()
	if err != nil {
		return nil, fmt.Errorf("manager: init capability keys: %w", err)
	}
	capEng := capability.NewEngine(keys, DefaultCapabilityValidity)

	broker := events.NewBroker()

	staleAfter := cfg.Health.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultHealthStaleAfter
	}
	healthMon := health.NewMonitor(staleAfter)

	dsp := proc.New(store, view, sched, rs, cfg.Node.AdminGID, cfg.Node.DaemonUID, cfg.Node.Version)
	dsp.WithHealth(healthMon)

	front := openfront.New(store, view, sched, rs, dsp, capEng, cfg.Node.ID)

	f := fsm.New(store, view).WithBroker(broker)

	repl, err := replication.New(replication.Config{
		NodeID:   cfg.Node.ID,
		BindAddr: cfg.Node.BindAddr,
		DataDir:  filepath.Join(cfg.Node.DataDir, "raft"),
	}, f)
	if err != nil {
		return nil, fmt.Errorf("manager: init replication: %w", err)
	}

	balancer := engines.NewBalancer(store, view)
	compactor := engines.NewCompactor(store)
	deletion := engines.NewDeletionDispatcher(store, view)
	drain := engines.NewDrainCoordinator(store, view).WithBroker(broker)
	fsck := engines.NewFsck(store, view)
	lru := engines.NewLRU(store).WithBroker(broker)
	dsp.AttachFsck(fsck.Report)

	em := engines.NewManager(repl.IsLeader,
		withInterval(balancer, cfg.Engines.Balancer),
		withInterval(compactor, cfg.Engines.Compactor),
		withInterval(deletion, cfg.Engines.Deletion),
		withInterval(drain, cfg.Engines.Drain),
		withInterval(fsck, cfg.Engines.Fsck),
		withInterval(lru, cfg.Engines.LRU),
	)

	collector := metrics.NewCollector(view)

	return &Manager{
		cfg:        cfg,
		store:      store,
		view:       view,
		sched:      sched,
		rules:      rs,
		keys:       keys,
		capEng:     capEng,
		front:      front,
		dsp:        dsp,
		broker:     broker,
		health:     healthMon,
		collector:  collector,
		fsm:        f,
		repl:       repl,
		engineMgr:  em,
		fsckEngine: fsck,
		boltStore:  boltStore,
		logger:     log.WithComponent("manager"),
	}, nil
}

// overriddenEngine wraps an engines.Engine to report a config-supplied
// tick period instead of its compiled-in default.
type overriddenEngine struct {
	engines.Engine
	interval time.Duration
}

func (o overriddenEngine) Interval() time.Duration { return o.interval }

func (o overriddenEngine) RequiresLeader() bool {
	if lo, ok := o.Engine.(engines.LeaderOnly); ok {
		return lo.RequiresLeader()
	}
	return false
}

func withInterval(e engines.Engine, d time.Duration) engines.Engine {
	if d <= 0 {
		return e
	}
	return overriddenEngine{Engine: e, interval: d}
}

// Bootstrap forms a brand new single-voter raft cluster with this node
// as the only member, for whichever node starts first.
func (m *Manager) Bootstrap() error {
	return m.repl.Bootstrap()
}

// JoinCluster starts raft and asks the leader reachable at leaderAddr to
// add this node as a voter, dialing leaderAddr over pkg/transport. Named
// distinctly from the transport.Handler method below, which answers an
// incoming Join RPC rather than initiating one.
func (m *Manager) JoinCluster(leaderAddr string) error {
	return m.repl.Join(func(nodeID, raftAddr string) error {
		c, err := transport.Dial(leaderAddr)
		if err != nil {
			return fmt.Errorf("manager: dial leader %s: %w", leaderAddr, err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.JoinCluster(ctx, nodeID, raftAddr)
	})
}

// Serve binds the transport listener and starts serving RPCs in the
// background. Call Start afterward to begin the background engines and
// event broker.
func (m *Manager) Serve() error {
	lis, err := net.Listen("tcp", m.cfg.Node.TransportAddr)
	if err != nil {
		return fmt.Errorf("manager: listen on %s: %w", m.cfg.Node.TransportAddr, err)
	}
	m.listener = lis
	m.srv = transport.NewServer(m)

	go func() {
		if err := m.srv.Serve(lis); err != nil {
			m.logger.Error().Err(err).Msg("transport server stopped")
		}
	}()
	m.logger.Info().Str("addr", m.cfg.Node.TransportAddr).Msg("transport listening")
	return nil
}

// Start launches the event broker, the background engine set, and the
// metrics collector.
func (m *Manager) Start() {
	m.broker.Start()
	m.engineMgr.Start()
	m.collector.Start()
}

// Shutdown stops every started component and releases file handles.
func (m *Manager) Shutdown() error {
	m.engineMgr.Stop()
	m.collector.Stop()
	m.broker.Stop()
	if m.srv != nil {
		m.srv.GracefulStop()
	}
	if err := m.repl.Shutdown(); err != nil {
		return fmt.Errorf("manager: shutdown raft: %w", err)
	}
	return m.boltStore.Close()
}

// IsLeader reports whether this node currently holds raft leadership.
func (m *Manager) IsLeader() bool {
	return m.repl.IsLeader()
}

// Open implements transport.Handler, decoding an OpenRequestWire and
// running it through the redirecting open front-end (spec §4.6).
func (m *Manager) Open(ctx context.Context, req transport.Envelope) (transport.Envelope, error) {
	var wire transport.OpenRequestWire
	if err := json.Unmarshal(req.Payload, &wire); err != nil {
		return transport.Envelope{}, fmt.Errorf("manager: decode open request: %w", err)
	}

	res := m.front.Open(ctx, openfront.OpenRequest{
		Path:     wire.Path,
		Identity: wire.Identity,
		Create:   wire.Create,
		Truncate: wire.Truncate,
		Write:    wire.Write,
		Space:    wire.Space,
		LayoutID: wire.LayoutID,
		PinFSID:  wire.PinFSID,
		Opaque:   wire.Opaque,
	})

	out := transport.OpenResponseWire{
		Kind:         string(res.Kind),
		Host:         res.Host,
		Port:         res.Port,
		Opaque:       res.Opaque,
		ReplicaIndex: res.ReplicaIndex,
		ReplicaHead:  res.ReplicaHead,
		LogID:        res.LogID,
		StallSeconds: res.StallSeconds,
		Message:      res.Message,
		Errno:        res.Errno,
	}
	if res.Err != nil {
		out.Err = res.Err.Error()
	}
	if res.Proc != nil {
		out.ProcStdout = res.Proc.Stdout
		out.ProcStderr = res.Proc.Stderr
		out.ProcRetc = res.Proc.Retc
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return transport.Envelope{}, err
	}
	return transport.Envelope{Payload: payload}, nil
}

// Commit implements transport.Handler, applying a file system's
// post-write callback (spec §4.8) directly against the namespace
// store. Proc commands and Open already mutate the store in-process
// rather than submitting through raft (see pkg/fsm's "Deferred" note
// in DESIGN.md); Commit follows the same, already-documented shortcut
// rather than diverging from it.
func (m *Manager) Commit(ctx context.Context, req transport.Envelope) (transport.Envelope, error) {
	var creq namespace.CommitRequest
	if err := json.Unmarshal(req.Payload, &creq); err != nil {
		return transport.Envelope{}, fmt.Errorf("manager: decode commit request: %w", err)
	}

	file, err := m.store.Commit(creq)
	if err != nil {
		if kind, ok := mgmerr.KindOf(err); ok {
			metrics.CommitFailuresTotal.WithLabelValues(string(kind)).Inc()
		}
		return transport.Envelope{}, err
	}
	m.publish(events.EventFileCommitted, "file committed", map[string]string{"file_id": fmt.Sprint(file.ID)})

	payload, err := json.Marshal(file)
	if err != nil {
		return transport.Envelope{}, err
	}
	return transport.Envelope{Payload: payload}, nil
}

// ProcExec implements transport.Handler, forwarding straight into
// pkg/proc.Dispatcher.Execute (spec §4.9, §6).
func (m *Manager) ProcExec(ctx context.Context, req transport.Envelope) (transport.Envelope, error) {
	var pr transport.ProcExecRequest
	if err := json.Unmarshal(req.Payload, &pr); err != nil {
		return transport.Envelope{}, fmt.Errorf("manager: decode proc request: %w", err)
	}

	res, err := m.dsp.Execute(ctx, pr.Identity, pr.Path, pr.Args)
	resp := transport.ProcExecResponse{Stdout: res.Stdout, Stderr: res.Stderr, Retc: res.Retc}
	if err != nil {
		resp.Err = err.Error()
	}

	payload, merr := json.Marshal(resp)
	if merr != nil {
		return transport.Envelope{}, merr
	}
	return transport.Envelope{Payload: payload}, nil
}

// Join implements transport.Handler for cluster membership: only the
// current raft leader may admit a new voter.
func (m *Manager) Join(ctx context.Context, req transport.Envelope) (transport.Envelope, error) {
	var jr struct {
		NodeID   string `json:"node_id"`
		RaftAddr string `json:"raft_addr"`
	}
	if err := json.Unmarshal(req.Payload, &jr); err != nil {
		return transport.Envelope{}, fmt.Errorf("manager: decode join request: %w", err)
	}
	if err := m.repl.AddVoter(jr.NodeID, jr.RaftAddr); err != nil {
		return transport.Envelope{}, err
	}
	return transport.Envelope{}, nil
}

func (m *Manager) publish(typ events.EventType, msg string, meta map[string]string) {
	m.broker.Publish(&events.Event{Type: typ, Message: msg, Metadata: meta})
}
