package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/transport"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultHeartbeatInterval paces how often an FST reports its free
// and used space to the CORE (spec §4.4's balancer and the drain
// coordinator's fault listener both key off a file system's most
// recent reported state, so a stale FST looks idle, not offline).
const DefaultHeartbeatInterval = 5 * time.Second

// DefaultPullInterval paces how often an FST polls its own queues for
// an outstanding transfer job (spec §4.4 drain, §4.6 step 9 adjust,
// and the balancer's move jobs all ride the same queues).
const DefaultPullInterval = 3 * time.Second

// Config holds the parameters of one FST agent: the file system it
// executes jobs on behalf of, and how to reach the CORE it reports to.
type Config struct {
	NodeID      string
	FsID        uint32
	ManagerAddr string
	DataDir     string

	HeartbeatInterval time.Duration
	PullInterval      time.Duration
}

// Worker is an FST-stub agent: it holds no container runtime and no
// data plane of its own (spec's non-goal on actual byte movement), it
// only keeps a file system's reported state current and drains that
// file system's transfer queues by completing the commit-protocol
// side of each job. Real byte movement between source and target FST
// is outside this CORE's scope; what remains for an FST to do is the
// queue bookkeeping this agent performs.
type Worker struct {
	cfg    Config
	client *transport.Client
	logger zerolog.Logger

	stopCh chan struct{}
}

// New dials the CORE's transport listener and returns a Worker ready
// to Run. It does not start any loop by itself.
func New(cfg Config) (*Worker, error) {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.PullInterval == 0 {
		cfg.PullInterval = DefaultPullInterval
	}

	c, err := transport.Dial(cfg.ManagerAddr)
	if err != nil {
		return nil, fmt.Errorf("worker: dial %s: %w", cfg.ManagerAddr, err)
	}

	return &Worker{
		cfg:    cfg,
		client: c,
		logger: log.WithComponent("worker").With().Uint32("fsid", cfg.FsID).Logger(),
		stopCh: make(chan struct{}),
	}, nil
}

// Close tears down the worker's connection to the CORE.
func (w *Worker) Close() error {
	return w.client.Close()
}

// Run drives the heartbeat and job-pull loops until ctx is cancelled
// or Stop is called.
func (w *Worker) Run(ctx context.Context) error {
	heartbeat := time.NewTicker(w.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	pull := time.NewTicker(w.cfg.PullInterval)
	defer pull.Stop()

	w.logger.Info().Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-heartbeat.C:
			if err := w.sendHeartbeat(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("heartbeat failed")
			}
		case <-pull.C:
			if err := w.pullAndExecute(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("job pull failed")
			}
		}
	}
}

// Stop ends a Run loop from another goroutine.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// sendHeartbeat reports this FST's free/used bytes through the
// "fs heartbeat" proc command. A worker running against an actual
// storage backend would stat its mount point here; this stub reports
// the zero values, leaving space accounting to whatever test harness
// or simulator drives the worker in this CORE's scope.
func (w *Worker) sendHeartbeat(ctx context.Context) error {
	args := url.Values{
		"mgm.cmd":          {"fs"},
		"mgm.subcmd":       {"heartbeat"},
		"mgm.fs.id":        {fmt.Sprint(w.cfg.FsID)},
		"mgm.fs.freebytes": {"0"},
		"mgm.fs.usedbytes": {"0"},
	}
	res, err := w.procExec(ctx, args)
	if err != nil {
		return err
	}
	if res.Retc != 0 {
		return fmt.Errorf("worker: heartbeat returned retc=%d: %s", res.Retc, res.Stderr)
	}
	return nil
}

// pullAndExecute claims one outstanding job from this file system's
// queues and applies its commit-protocol side effect. A drain or
// balance job's real work (copying bytes to the target FST) is out of
// scope; what this CORE tracks is the replica bookkeeping a commit
// performs once that copy is presumed done.
func (w *Worker) pullAndExecute(ctx context.Context) error {
	args := url.Values{
		"mgm.cmd":    {"transfer"},
		"mgm.subcmd": {"pull"},
		"mgm.fs.id":  {fmt.Sprint(w.cfg.FsID)},
	}
	res, err := w.procExec(ctx, args)
	if err != nil {
		return err
	}
	if res.Retc != 0 {
		return fmt.Errorf("worker: pull returned retc=%d: %s", res.Retc, res.Stderr)
	}
	if res.Stdout == "" {
		return nil
	}

	var job types.TransferJob
	if err := json.Unmarshal([]byte(res.Stdout), &job); err != nil {
		return fmt.Errorf("worker: decode pulled job: %w", err)
	}
	w.logger.Info().Str("job", job.ID).Str("kind", string(job.Kind)).Msg("claimed transfer job")

	return w.commitJob(ctx, job)
}

// commitJob applies the replica-arrival side of a transfer job by
// calling the Commit RPC against the job's target, the same open-fid
// commit protocol a real FST runs at the end of a write (spec §4.3).
func (w *Worker) commitJob(ctx context.Context, job types.TransferJob) error {
	target := job.TargetFsID
	if target == 0 {
		target = job.SourceFsID
	}
	req := namespace.CommitRequest{
		FileID:     job.FileID,
		FsID:       target,
		MTime:      time.Now(),
		CommitSize: true,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = w.client.Commit(ctx, transport.Envelope{Op: "commit", Payload: payload})
	return err
}

func (w *Worker) procExec(ctx context.Context, args url.Values) (transport.ProcExecResponse, error) {
	req := transport.ProcExecRequest{
		Identity: types.Identity{Host: w.cfg.NodeID},
		Path:     "/proc/admin/",
		Args:     map[string][]string(args),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return transport.ProcExecResponse{}, err
	}
	envelope, err := w.client.ProcExec(ctx, transport.Envelope{Op: args.Get("mgm.cmd"), Payload: payload})
	if err != nil {
		return transport.ProcExecResponse{}, err
	}
	var resp transport.ProcExecResponse
	if err := json.Unmarshal(envelope.Payload, &resp); err != nil {
		return transport.ProcExecResponse{}, err
	}
	if resp.Err != "" {
		return resp, fmt.Errorf("worker: proc exec: %s", resp.Err)
	}
	return resp, nil
}
