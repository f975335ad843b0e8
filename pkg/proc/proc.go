// Package proc implements /proc/admin and /proc/user command execution
// (spec §4.9, §6): the redirecting open front-end delegates any open
// under those two path prefixes here, turning an "open" into a command
// execution and a "read" into streaming back the {stdout, stderr,
// retc} result.
package proc

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/health"
	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/rules"
	"github.com/HaiboGNU/eos-sub000/pkg/scheduler"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/rs/zerolog"
)

// Result is the triple every proc command returns, serialized by the
// caller as mgm.proc.stdout/stderr/retc (spec §6).
type Result struct {
	Stdout string
	Stderr string
	Retc   int
}

// Args is the parsed query-string of a proc open: mgm.cmd, mgm.subcmd,
// mgm.option, plus command-specific keys (spec §6).
type Args = url.Values

// HandlerFunc executes one proc command.
type HandlerFunc func(ctx context.Context, id types.Identity, args Args) (Result, error)

const (
	AdminPrefix = "/proc/admin/"
	UserPrefix  = "/proc/user/"

	// DefaultFindDepthLimit bounds a recursive find for every caller,
	// admins included (spec §9 Open Question, resolved in DESIGN.md).
	DefaultFindDepthLimit = 32

	rtlogCapacity = 256
)

// Dispatcher owns the command table and the small pieces of mutable
// proc-only state (motd, path remap table, rtlog ring buffer, vid
// mappings) that have no other natural home.
type Dispatcher struct {
	store *namespace.Store
	view  *clusterview.View
	sched *scheduler.Scheduler
	rules *rules.Store

	adminGID       uint32
	daemonUID      uint32
	findDepthLimit int
	startedAt      time.Time
	version        string

	handlers map[string]HandlerFunc

	mu        sync.Mutex
	motd      string
	remap     map[string]string
	vid       map[string]string
	rtlog     []string

	fsckReport func() string

	health *health.Monitor

	logger zerolog.Logger
}

// AttachFsck wires a live fsck scanner's report function into the
// "fsck" proc command. Until this is called (e.g. before pkg/engines
// is started), cmdFsck reports that no scan is attached.
func (d *Dispatcher) AttachFsck(report func() string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fsckReport = report
}

// WithHealth attaches a heartbeat-age monitor; "fs heartbeat" records
// into it and derives the file system's Active status from it instead
// of unconditionally marking it online. A nil monitor (the default)
// keeps the previous unconditional-online behavior, useful for tests
// that never expect a file system to go stale mid-run.
func (d *Dispatcher) WithHealth(h *health.Monitor) *Dispatcher {
	d.health = h
	return d
}

// New builds a Dispatcher and registers every command named in spec §6.
func New(store *namespace.Store, view *clusterview.View, sched *scheduler.Scheduler, rs *rules.Store, adminGID, daemonUID uint32, version string) *Dispatcher {
	d := &Dispatcher{
		store:          store,
		view:           view,
		sched:          sched,
		rules:          rs,
		adminGID:       adminGID,
		daemonUID:      daemonUID,
		findDepthLimit: DefaultFindDepthLimit,
		startedAt:      time.Now(),
		version:        version,
		remap:          make(map[string]string),
		vid:            make(map[string]string),
		logger:         log.WithComponent("proc"),
	}
	d.register()
	return d
}

func (d *Dispatcher) register() {
	d.handlers = map[string]HandlerFunc{
		"access":   d.cmdAccess,
		"config":   d.cmdConfig,
		"node":     d.cmdNode,
		"space":    d.cmdSpace,
		"group":    d.cmdGroup,
		"fs":       d.cmdFs,
		"ns":       d.cmdNs,
		"io":       d.cmdIo,
		"fsck":     d.cmdFsck,
		"quota":    d.cmdQuota,
		"transfer": d.cmdTransfer,
		"debug":    d.cmdDebug,
		"vid":      d.cmdVid,
		"rtlog":    d.cmdRtlog,
		"chown":    d.cmdChown,
		"motd":     d.cmdMotd,
		"version":  d.cmdVersion,
		"who":      d.cmdWho,
		"fuse":     d.cmdFuse,
		"file":     d.cmdFileinfo,
		"fileinfo": d.cmdFileinfo,
		"mkdir":    d.cmdMkdir,
		"rmdir":    d.cmdRmdir,
		"cd":       d.cmdCd,
		"ls":       d.cmdLs,
		"rm":       d.cmdRm,
		"whoami":   d.cmdWhoami,
		"find":     d.cmdFind,
		"map":      d.cmdMap,
		"attr":     d.cmdAttr,
		"chmod":    d.cmdChmod,
	}
}

// IsAdminPath reports whether p falls under the admin prefix, as
// opposed to the user prefix (spec §6).
func IsAdminPath(p string) bool {
	return len(p) >= len(AdminPrefix) && p[:len(AdminPrefix)] == AdminPrefix
}

// Execute runs the command named by args["mgm.cmd"] against path p on
// behalf of id (spec §4.6 step 4, spec §6's authorization rule).
func (d *Dispatcher) Execute(ctx context.Context, id types.Identity, p string, args Args) (Result, error) {
	if IsAdminPath(p) && !id.IsAdmin(d.adminGID, d.daemonUID) {
		return Result{}, mgmerr.New(mgmerr.PermissionDenied, "uid %d is not authorized for /proc/admin", id.UID)
	}

	cmd := args.Get("mgm.cmd")
	h, ok := d.handlers[cmd]
	if !ok {
		return Result{}, mgmerr.New(mgmerr.Invalid, "unknown proc command %q", cmd)
	}

	res, err := h(ctx, id, args)
	d.appendRtlog(id, cmd, args.Get("mgm.subcmd"), res, err)
	if err != nil {
		if res.Retc == 0 {
			if kind, ok := mgmerr.KindOf(err); ok {
				res.Retc = mgmerr.Errno[kind]
			} else {
				res.Retc = 22 // EINVAL
			}
		}
		if res.Stderr == "" {
			res.Stderr = err.Error()
		}
		return res, err
	}
	return res, nil
}

// ResolvePath applies the global path-remap table (spec §6), returning
// the target path if a remap rule's source is a prefix of p.
func (d *Dispatcher) ResolvePath(p string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	for src, dst := range d.remap {
		if len(p) >= len(src) && p[:len(src)] == src {
			return dst + p[len(src):]
		}
	}
	return p
}

func (d *Dispatcher) appendRtlog(id types.Identity, cmd, subcmd string, res Result, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	line := fmt.Sprintf("uid=%d cmd=%s subcmd=%s retc=%d", id.UID, cmd, subcmd, res.Retc)
	if err != nil {
		line += " err=" + err.Error()
	}
	d.rtlog = append(d.rtlog, line)
	if len(d.rtlog) > rtlogCapacity {
		d.rtlog = d.rtlog[len(d.rtlog)-rtlogCapacity:]
	}
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
