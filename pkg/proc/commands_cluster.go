package proc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

func (d *Dispatcher) cmdAccess(ctx context.Context, id types.Identity, args Args) (Result, error) {
	switch args.Get("mgm.subcmd") {
	case "ban", "allow", "stall", "redirect":
		kind := map[string]types.AccessRuleKind{
			"ban":      types.RuleBan,
			"allow":    types.RuleAllow,
			"stall":    types.RuleStall,
			"redirect": types.RuleRedirect,
		}[args.Get("mgm.subcmd")]
		target := args.Get("mgm.access.target")
		if target == "" {
			target = "*"
		}
		seconds, _ := strconv.Atoi(args.Get("mgm.access.seconds"))
		d.rules.Add(types.AccessRule{
			Kind:    kind,
			Target:  target,
			Seconds: seconds,
			Message: args.Get("mgm.access.message"),
			Host:    args.Get("mgm.access.host"),
			Port:    atoiSafe(args.Get("mgm.access.port")),
		})
		return Result{Stdout: fmt.Sprintf("added %s rule for %s", args.Get("mgm.subcmd"), target)}, nil
	case "rm":
		kind := types.AccessRuleKind(args.Get("mgm.access.kind"))
		target := args.Get("mgm.access.target")
		if !d.rules.Remove(kind, target) {
			return Result{}, mgmerr.New(mgmerr.MissingEntry, "no %s rule for %q", kind, target)
		}
		return Result{Stdout: "removed"}, nil
	case "ls", "":
		var b strings.Builder
		for _, r := range d.rules.List() {
			fmt.Fprintf(&b, "%s target=%s\n", r.Kind, r.Target)
		}
		return Result{Stdout: b.String()}, nil
	default:
		return Result{}, mgmerr.New(mgmerr.Invalid, "unknown access subcommand %q", args.Get("mgm.subcmd"))
	}
}

// cmdConfig mirrors the "config save/load" admin command from the
// original; this CORE's configuration documents live in pkg/config, so
// the proc command here just reports the version and uptime.
func (d *Dispatcher) cmdConfig(ctx context.Context, id types.Identity, args Args) (Result, error) {
	return Result{Stdout: fmt.Sprintf("version=%s uptime=%s", d.version, timeSince(d.startedAt))}, nil
}

func (d *Dispatcher) cmdNode(ctx context.Context, id types.Identity, args Args) (Result, error) {
	switch args.Get("mgm.subcmd") {
	case "ls", "":
		var b strings.Builder
		for _, n := range d.view.ListNodes() {
			fmt.Fprintf(&b, "%s host=%s fs=%d\n", n.Name, n.Host, len(n.FileSystemIDs))
		}
		return Result{Stdout: b.String()}, nil
	case "set":
		name := args.Get("mgm.node.name")
		n, err := d.view.Node(name)
		if err != nil {
			n = &types.Node{Name: name}
		}
		if v := args.Get("mgm.node.ratelimit"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				n.RateLimitMBPerSec = f
			}
		}
		if err := d.view.UpsertNode(n); err != nil {
			return Result{}, err
		}
		return Result{Stdout: "updated " + name}, nil
	default:
		return Result{}, mgmerr.New(mgmerr.Invalid, "unknown node subcommand")
	}
}

func (d *Dispatcher) cmdSpace(ctx context.Context, id types.Identity, args Args) (Result, error) {
	switch args.Get("mgm.subcmd") {
	case "ls", "":
		var b strings.Builder
		for _, sp := range d.view.ListSpaces() {
			fmt.Fprintf(&b, "%s groups=%d headroom=%d\n", sp.Name, len(sp.GroupNames), sp.Headroom)
		}
		return Result{Stdout: b.String()}, nil
	case "set":
		name := args.Get("mgm.space.name")
		sp, err := d.view.Space(name)
		if err != nil {
			sp = &types.Space{Name: name}
		}
		if v := args.Get("mgm.space.headroom"); v != "" {
			sp.Headroom, _ = strconv.ParseUint(v, 10, 64)
		}
		if err := d.view.UpsertSpace(sp); err != nil {
			return Result{}, err
		}
		return Result{Stdout: "updated " + name}, nil
	default:
		return Result{}, mgmerr.New(mgmerr.Invalid, "unknown space subcommand")
	}
}

func (d *Dispatcher) cmdGroup(ctx context.Context, id types.Identity, args Args) (Result, error) {
	var b strings.Builder
	for _, g := range d.view.ListGroups() {
		fmt.Fprintf(&b, "%s space=%s fs=%d balancing=%v\n", g.Name, g.SpaceName, len(g.FileSystemIDs), g.BalancerState.Running)
	}
	return Result{Stdout: b.String()}, nil
}

func (d *Dispatcher) cmdFs(ctx context.Context, id types.Identity, args Args) (Result, error) {
	switch args.Get("mgm.subcmd") {
	case "ls", "":
		var b strings.Builder
		for _, fs := range d.view.ListFileSystems() {
			fmt.Fprintf(&b, "%d host=%s group=%s boot=%s config=%s active=%s free=%d\n",
				fs.ID, fs.Host, fs.Group, fs.Boot, fs.Config, fs.Active, fs.FreeBytes)
		}
		return Result{Stdout: b.String()}, nil
	case "config":
		fsid, err := parseUint32(args.Get("mgm.fs.id"))
		if err != nil {
			return Result{}, mgmerr.New(mgmerr.Invalid, "bad fs id")
		}
		fs, err := d.view.FileSystem(fsid)
		if err != nil {
			return Result{}, err
		}
		if v := args.Get("mgm.fs.configstatus"); v != "" {
			fs.Config = types.ConfigStatus(v)
		}
		if err := d.view.UpsertFileSystem(fs); err != nil {
			return Result{}, err
		}
		return Result{Stdout: fmt.Sprintf("fs %d now %s", fsid, fs.Config)}, nil
	case "rm":
		fsid, err := parseUint32(args.Get("mgm.fs.id"))
		if err != nil {
			return Result{}, mgmerr.New(mgmerr.Invalid, "bad fs id")
		}
		if err := d.view.RemoveFileSystem(fsid); err != nil {
			return Result{}, err
		}
		return Result{Stdout: "removed"}, nil
	case "heartbeat":
		return d.cmdFsHeartbeat(ctx, id, args)
	default:
		return Result{}, mgmerr.New(mgmerr.Invalid, "unknown fs subcommand")
	}
}

// cmdFsHeartbeat is the FST-facing counterpart of "fs config": an
// FST reports its current free/used bytes on every heartbeat tick
// (pkg/worker), refreshing the values the scheduler and balancer engine
// read rather than requiring an admin to poll. The Active status is set
// here, from the attached health monitor or to online when none is
// attached.
func (d *Dispatcher) cmdFsHeartbeat(ctx context.Context, id types.Identity, args Args) (Result, error) {
	fsid, err := parseUint32(args.Get("mgm.fs.id"))
	if err != nil {
		return Result{}, mgmerr.New(mgmerr.Invalid, "bad fs id")
	}
	fs, err := d.view.FileSystem(fsid)
	if err != nil {
		return Result{}, err
	}
	if v := args.Get("mgm.fs.freebytes"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			fs.FreeBytes = n
		}
	}
	if v := args.Get("mgm.fs.usedbytes"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			fs.UsedBytes = n
		}
	}

	now := time.Now()
	if d.health != nil {
		d.health.Heartbeat(fsid, now)
		fs.Active = d.health.Status(fsid, now)
	} else {
		fs.Active = types.ActiveOnline
	}

	if err := d.view.UpsertFileSystem(fs); err != nil {
		return Result{}, err
	}
	return Result{Stdout: fmt.Sprintf("fs %d heartbeat ok", fsid)}, nil
}

func (d *Dispatcher) cmdNs(ctx context.Context, id types.Identity, args Args) (Result, error) {
	stats := d.store.Stats()
	return Result{Stdout: fmt.Sprintf("containers=%d files=%d", stats.Containers, stats.Files)}, nil
}

func (d *Dispatcher) cmdIo(ctx context.Context, id types.Identity, args Args) (Result, error) {
	var total, free uint64
	for _, fs := range d.view.ListFileSystems() {
		total += fs.Capacity
		free += fs.FreeBytes
	}
	return Result{Stdout: fmt.Sprintf("capacity=%d free=%d", total, free)}, nil
}

// cmdFsck reports the outstanding scan findings from whichever fsck
// engine called AttachFsck, or a placeholder if none has.
func (d *Dispatcher) cmdFsck(ctx context.Context, id types.Identity, args Args) (Result, error) {
	d.mu.Lock()
	report := d.fsckReport
	d.mu.Unlock()
	if report == nil {
		return Result{Stdout: "fsck report: 0 inconsistencies (no scan attached)"}, nil
	}
	return Result{Stdout: report()}, nil
}

func (d *Dispatcher) cmdQuota(ctx context.Context, id types.Identity, args Args) (Result, error) {
	path := args.Get("mgm.quota.path")
	c, err := d.store.GetContainer(path)
	if err != nil {
		return Result{}, err
	}
	switch args.Get("mgm.subcmd") {
	case "set":
		if !c.QuotaNode {
			c.QuotaNode = true
			if err := d.store.UpdateContainer(c); err != nil {
				return Result{}, err
			}
		}
		uid, _ := parseUint32(args.Get("mgm.quota.uid"))
		bytesLimit, _ := strconv.ParseUint(args.Get("mgm.quota.maxbytes"), 10, 64)
		filesLimit, _ := strconv.ParseUint(args.Get("mgm.quota.maxfiles"), 10, 64)
		node := d.store.Quota().NodeFor(c.ID)
		node.UIDLimitBytes[uid] = bytesLimit
		node.UIDLimitFiles[uid] = filesLimit
		return Result{Stdout: fmt.Sprintf("set uid=%d maxbytes=%d maxfiles=%d on %s", uid, bytesLimit, filesLimit, path)}, nil
	case "ls", "":
		node := d.store.Quota().NodeFor(c.ID)
		var b strings.Builder
		for uid, c := range node.ByUID {
			fmt.Fprintf(&b, "uid=%d bytes=%d files=%d bytelimit=%d filelimit=%d\n", uid, c.PhysicalBytes, c.Files, node.UIDLimitBytes[uid], node.UIDLimitFiles[uid])
		}
		for uid, limit := range node.UIDLimitBytes {
			if _, seen := node.ByUID[uid]; !seen {
				fmt.Fprintf(&b, "uid=%d bytes=0 files=0 bytelimit=%d filelimit=%d\n", uid, limit, node.UIDLimitFiles[uid])
			}
		}
		return Result{Stdout: b.String()}, nil
	default:
		return Result{}, mgmerr.New(mgmerr.Invalid, "unknown quota subcommand")
	}
}

func (d *Dispatcher) cmdTransfer(ctx context.Context, id types.Identity, args Args) (Result, error) {
	switch args.Get("mgm.subcmd") {
	case "adjust":
		return d.cmdTransferAdjust(ctx, id, args)
	case "pull":
		return d.cmdTransferPull(ctx, id, args)
	default:
		var b strings.Builder
		for _, fs := range d.view.ListFileSystems() {
			for _, q := range []struct {
				name string
				tq   types.TransferQueue
			}{{"drain", fs.DrainQueue}, {"balance", fs.BalanceQueue}, {"extern", fs.ExternQueue}} {
				if len(q.tq.Jobs) > 0 {
					fmt.Fprintf(&b, "fs=%d queue=%s jobs=%d\n", fs.ID, q.name, len(q.tq.Jobs))
				}
			}
		}
		return Result{Stdout: b.String()}, nil
	}
}

// cmdTransferAdjust queues an adjust-replica job for a file whose
// current replica set needs repair (spec §4.6 step 9's bounded
// self-healing retry is the only caller). The job rides the source
// fs's extern queue, the same queue kind used for any MGM-initiated
// move that isn't a drain or a balance.
func (d *Dispatcher) cmdTransferAdjust(ctx context.Context, id types.Identity, args Args) (Result, error) {
	fid, err := strconv.ParseUint(args.Get("mgm.transfer.fid"), 16, 64)
	if err != nil {
		return Result{}, mgmerr.New(mgmerr.Invalid, "bad mgm.transfer.fid %q", args.Get("mgm.transfer.fid"))
	}
	f, err := d.store.GetFileByID(types.ID(fid))
	if err != nil {
		return Result{}, err
	}
	if len(f.Locations) == 0 {
		return Result{}, mgmerr.New(mgmerr.NoEntry, "file %d has no surviving replica to adjust from", f.ID)
	}
	srcFsID := f.Locations[0]
	srcFS, err := d.view.FileSystem(srcFsID)
	if err != nil {
		return Result{}, err
	}

	job := &types.TransferJob{
		ID:         fmt.Sprintf("adjust-%d-%d", f.ID, time.Now().UnixNano()),
		FileID:     f.ID,
		SourceFsID: srcFsID,
		Kind:       types.TransferAdjust,
		CreatedAt:  time.Now(),
	}
	srcFS.ExternQueue.Jobs = append(srcFS.ExternQueue.Jobs, job)
	if err := d.view.UpsertFileSystem(srcFS); err != nil {
		return Result{}, err
	}
	return Result{Stdout: fmt.Sprintf("queued adjust-replica %s for file %d from fs %d", job.ID, f.ID, srcFsID)}, nil
}

// cmdTransferPull lets an FST claim the next outstanding job queued
// against its own file system (pkg/engines always enqueues onto the
// source fs's queue, so the fs identified by mgm.fs.id is always the
// job's source/executor). The job is popped, not merely peeked: a
// claimed job is this FST's responsibility to execute and there is no
// separate "complete" step, matching the at-most-once, re-queue-on-
// failure contract the drain and balancer engines already assume for
// jobs that silently vanish from a crashed FST.
func (d *Dispatcher) cmdTransferPull(ctx context.Context, id types.Identity, args Args) (Result, error) {
	fsid, err := parseUint32(args.Get("mgm.fs.id"))
	if err != nil {
		return Result{}, mgmerr.New(mgmerr.Invalid, "bad fs id")
	}
	fs, err := d.view.FileSystem(fsid)
	if err != nil {
		return Result{}, err
	}

	job, ok := popJob(&fs.DrainQueue)
	if !ok {
		job, ok = popJob(&fs.BalanceQueue)
	}
	if !ok {
		job, ok = popJob(&fs.ExternQueue)
	}
	if !ok {
		return Result{Stdout: ""}, nil
	}
	if err := d.view.UpsertFileSystem(fs); err != nil {
		return Result{}, err
	}
	out, err := json.Marshal(job)
	if err != nil {
		return Result{}, err
	}
	return Result{Stdout: string(out)}, nil
}

// popJob removes and returns the oldest job in q, reporting whether
// one was present.
func popJob(q *types.TransferQueue) (*types.TransferJob, bool) {
	if len(q.Jobs) == 0 {
		return nil, false
	}
	job := q.Jobs[0]
	q.Jobs = q.Jobs[1:]
	return job, true
}

func (d *Dispatcher) cmdDebug(ctx context.Context, id types.Identity, args Args) (Result, error) {
	level := args.Get("mgm.debug.level")
	return Result{Stdout: "debug level request noted: " + level}, nil
}

func (d *Dispatcher) cmdVid(ctx context.Context, id types.Identity, args Args) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch args.Get("mgm.subcmd") {
	case "add":
		from, to := args.Get("mgm.vid.from"), args.Get("mgm.vid.to")
		d.vid[from] = to
		return Result{Stdout: fmt.Sprintf("mapped %s -> %s", from, to)}, nil
	case "rm":
		delete(d.vid, args.Get("mgm.vid.from"))
		return Result{Stdout: "removed"}, nil
	default:
		var b strings.Builder
		for from, to := range d.vid {
			fmt.Fprintf(&b, "%s -> %s\n", from, to)
		}
		return Result{Stdout: b.String()}, nil
	}
}

func (d *Dispatcher) cmdRtlog(ctx context.Context, id types.Identity, args Args) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Result{Stdout: strings.Join(d.rtlog, "\n")}, nil
}

func (d *Dispatcher) cmdMotd(ctx context.Context, id types.Identity, args Args) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := args["mgm.motd.text"]; ok && len(v) > 0 {
		if !id.IsAdmin(d.adminGID, d.daemonUID) {
			return Result{}, mgmerr.New(mgmerr.PermissionDenied, "only admins set the motd")
		}
		d.motd = v[0]
		return Result{Stdout: "motd updated"}, nil
	}
	return Result{Stdout: d.motd}, nil
}

func (d *Dispatcher) cmdVersion(ctx context.Context, id types.Identity, args Args) (Result, error) {
	return Result{Stdout: d.version}, nil
}

// cmdWho reports the caller's own identity; there is no server-side
// session table (spec carries no session-list entity), so this mirrors
// what a client can already see about itself rather than inventing one.
func (d *Dispatcher) cmdWho(ctx context.Context, id types.Identity, args Args) (Result, error) {
	return Result{Stdout: fmt.Sprintf("uid=%d gid=%d auth=%s host=%s since=%s", id.UID, id.GID, id.AuthMethod, id.Host, timeSince(d.startedAt))}, nil
}

// cmdFuse is a stub: FUSE client session management is out of scope
// (spec's front-end only ever produces a redirect; a FUSE client is
// just another caller of that surface).
func (d *Dispatcher) cmdFuse(ctx context.Context, id types.Identity, args Args) (Result, error) {
	return Result{Stdout: "fuse session management is not modeled by this CORE"}, nil
}

func (d *Dispatcher) cmdMap(ctx context.Context, id types.Identity, args Args) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch args.Get("mgm.subcmd") {
	case "add":
		src, dst := args.Get("mgm.map.src"), args.Get("mgm.map.dst")
		if err := validateRemapEndpoint(src); err != nil {
			return Result{}, err
		}
		if err := validateRemapEndpoint(dst); err != nil {
			return Result{}, err
		}
		d.remap[src] = dst
		return Result{Stdout: fmt.Sprintf("mapped %s -> %s", src, dst)}, nil
	case "rm":
		delete(d.remap, args.Get("mgm.map.src"))
		return Result{Stdout: "removed"}, nil
	default:
		var b strings.Builder
		for src, dst := range d.remap {
			fmt.Fprintf(&b, "%s -> %s\n", src, dst)
		}
		return Result{Stdout: b.String()}, nil
	}
}

// validateRemapEndpoint enforces spec §6's path-remap table shape: must
// start and end with '/', no ".." traversal, no "//", no whitespace.
func validateRemapEndpoint(p string) error {
	if !strings.HasPrefix(p, "/") || !strings.HasSuffix(p, "/") {
		return mgmerr.New(mgmerr.Invalid, "remap endpoint %q must start and end with /", p)
	}
	if strings.Contains(p, "..") || strings.Contains(p, "//") || strings.ContainsAny(p, " \t\n") {
		return mgmerr.New(mgmerr.Invalid, "remap endpoint %q is malformed", p)
	}
	return nil
}

func (d *Dispatcher) cmdChown(ctx context.Context, id types.Identity, args Args) (Result, error) {
	path := args.Get("mgm.path")
	uid, _ := parseUint32(args.Get("mgm.chown.uid"))
	gid, _ := parseUint32(args.Get("mgm.chown.gid"))

	if c, err := d.store.GetContainer(path); err == nil {
		c.UID, c.GID = uid, gid
		if err := d.store.UpdateContainer(c); err != nil {
			return Result{}, err
		}
		return Result{Stdout: "chowned " + path}, nil
	}
	f, err := d.store.GetFile(path)
	if err != nil {
		return Result{}, err
	}
	f.UID, f.GID = uid, gid
	if err := d.store.UpdateFile(f); err != nil {
		return Result{}, err
	}
	return Result{Stdout: "chowned " + path}, nil
}

func atoiSafe(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func timeSince(t time.Time) string {
	return time.Since(t).Round(time.Second).String()
}
