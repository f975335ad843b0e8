package openfront

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/capability"
	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/proc"
	"github.com/HaiboGNU/eos-sub000/pkg/rules"
	"github.com/HaiboGNU/eos-sub000/pkg/scheduler"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultHealStallSeconds is the stall duration handed back to a
// client while an adjust-replica job submitted during self-healing is
// outstanding (spec §4.6 step 9).
const DefaultHealStallSeconds = 30

// DefaultSpace is used when neither the request nor the parent
// container names one.
const DefaultSpace = "default"

// Kind discriminates the three shapes spec §6 allows an Open call to
// return: Redirect, Stall, Error — plus Proc for a request that
// resolved to command execution under /proc.
type Kind string

const (
	KindRedirect Kind = "redirect"
	KindStall    Kind = "stall"
	KindError    Kind = "error"
	KindProc     Kind = "proc"
)

// Result is the single structured outcome an Open call produces. The
// front-end never performs the actual read or write itself.
type Result struct {
	Kind Kind

	Host         string
	Port         int
	Opaque       string
	ReplicaIndex int
	ReplicaHead  int
	LogID        string

	StallSeconds int
	Message      string

	Errno int
	Err   error

	Proc *proc.Result
}

// OpenRequest describes a single open(path, flags, mode, client) call
// (spec §4.6).
type OpenRequest struct {
	Path     string
	Identity types.Identity

	Create   bool
	Truncate bool
	Write    bool // open for write; false means read-only

	// Space and LayoutID, when nonzero, override the parent's forced
	// attributes for this one request.
	Space    string
	LayoutID uint32
	PinFSID  uint32

	// Opaque carries the request's CGI-style query string (mgm.cmd=...
	// etc), consulted only when Path falls under a proc prefix.
	Opaque string
}

// Front is the redirecting open front-end.
type Front struct {
	store   *namespace.Store
	view    *clusterview.View
	sched   *scheduler.Scheduler
	rules   *rules.Store
	proc    *proc.Dispatcher
	capEng  *capability.Engine
	manager string

	mu           sync.Mutex
	healAttempts map[types.ID]int

	logger zerolog.Logger
}

// New builds a Front. manager is this MGM instance's own identity
// string, embedded in every minted capability's mgm.manager field.
func New(store *namespace.Store, view *clusterview.View, sched *scheduler.Scheduler, rs *rules.Store, pd *proc.Dispatcher, capEng *capability.Engine, manager string) *Front {
	return &Front{
		store:        store,
		view:         view,
		sched:        sched,
		rules:        rs,
		proc:         pd,
		capEng:       capEng,
		manager:      manager,
		healAttempts: make(map[types.ID]int),
		logger:       log.WithComponent("openfront"),
	}
}

// Open runs the full redirecting open algorithm (spec §4.6 steps
// 1-14). Step 1, credential translation, is assumed already done by
// the caller: req.Identity is the internal form, not raw transport
// auth.
func (f *Front) Open(ctx context.Context, req OpenRequest) Result {
	id := req.Identity

	if f.rules.Banned(id) {
		return f.errorResult(mgmerr.New(mgmerr.PermissionDenied, "uid %d is banned", id.UID))
	}
	if rule, ok := f.rules.Stall(id); ok {
		return stallResult(rule.Seconds, rule.Message)
	}
	if rule, ok := f.rules.Redirect(id); ok {
		return Result{Kind: KindRedirect, Host: rule.Host, Port: rule.Port}
	}

	if proc.IsAdminPath(req.Path) || strings.HasPrefix(req.Path, proc.UserPrefix) {
		args, err := url.ParseQuery(req.Opaque)
		if err != nil {
			return f.errorResult(mgmerr.New(mgmerr.Invalid, "malformed proc opaque info: %v", err))
		}
		res, err := f.proc.Execute(ctx, id, req.Path, args)
		return Result{Kind: KindProc, Proc: &res, Err: err}
	}

	parentPath := path.Dir(req.Path)
	parent, err := f.store.GetContainer(parentPath)
	if err != nil {
		return f.errorResult(err)
	}
	attrs := types.ExtAttrs(parent.Xattrs)

	op := OpRead
	if req.Write || req.Create {
		op = OpWrite
	}
	if !Allowed(parent, id, op) {
		return f.errorResult(mgmerr.New(mgmerr.PermissionDenied, "uid %d denied on %q", id.UID, parentPath))
	}

	file, err := f.store.GetFile(req.Path)
	if err != nil {
		kind, _ := mgmerr.KindOf(err)
		if kind != mgmerr.MissingEntry {
			return f.errorResult(err)
		}
		return f.openMissing(req, id, parent, attrs)
	}

	if req.Write && req.Truncate {
		return f.openTruncate(req, id, file, parent, attrs)
	}
	if req.Write {
		return f.openExisting(file, parent, types.AccessUpdate, req)
	}
	return f.openExisting(file, parent, types.AccessRead, req)
}

// openMissing handles spec §4.6 step 7: create-if-requested, or
// ENOENT/redirect otherwise.
func (f *Front) openMissing(req OpenRequest, id types.Identity, parent *types.Container, attrs types.ExtAttrs) Result {
	if !req.Create {
		if host, port, ok := attrs.RedirectENOENT(); ok {
			return Result{Kind: KindRedirect, Host: host, Port: port}
		}
		return f.errorResult(mgmerr.New(mgmerr.NoEntry, "no such file %q", req.Path))
	}

	layoutID := req.LayoutID
	if layoutID == 0 {
		if fl, ok := attrs.ForcedLayout(); ok {
			layoutID = fl
		}
	}
	file, err := f.store.CreateFile(req.Path, id.UID, id.GID, layoutID)
	if err != nil {
		return f.errorResult(err)
	}
	return f.place(req, file, parent, attrs)
}

// openTruncate handles spec §4.6 step 8: a truncating write against an
// existing file is a drop-and-recreate, unless write-once forbids it.
func (f *Front) openTruncate(req OpenRequest, id types.Identity, existing *types.File, parent *types.Container, attrs types.ExtAttrs) Result {
	if attrs.WriteOnce() {
		return f.errorResult(mgmerr.New(mgmerr.PermissionDenied, "write-once: overwrite of %q forbidden", req.Path))
	}
	if err := f.store.UnlinkFile(req.Path); err != nil {
		return f.errorResult(err)
	}

	layoutID := req.LayoutID
	if layoutID == 0 {
		if fl, ok := attrs.ForcedLayout(); ok {
			layoutID = fl
		} else {
			layoutID = existing.LayoutID
		}
	}
	file, err := f.store.CreateFile(req.Path, id.UID, id.GID, layoutID)
	if err != nil {
		return f.errorResult(err)
	}
	return f.place(req, file, parent, attrs)
}

// place runs Placement for a freshly booked file and mints the
// redirect (spec §4.6 steps 7/10-14 for the write path).
func (f *Front) place(req OpenRequest, file *types.File, parent *types.Container, attrs types.ExtAttrs) Result {
	space := req.Space
	if space == "" {
		if sp, ok := attrs.ForcedSpace(); ok {
			space = sp
		} else {
			space = DefaultSpace
		}
	}

	var booking uint64
	if bs, ok := attrs.ForcedBookingSize(); ok {
		booking = bs
	}

	quotaNodeID, _ := f.store.QuotaNodeAncestor(parent.ID)

	placement, err := f.sched.Placement(scheduler.PlacementRequest{
		Space:       space,
		LayoutID:    file.LayoutID,
		BookingSize: booking,
		UID:         file.UID,
		GID:         file.GID,
		QuotaNodeID: quotaNodeID,
		FileID:      file.ID,
	})
	if err != nil {
		return f.errorResult(err)
	}

	file.Locations = placement.FileSystemIDs
	if err := f.store.UpdateFile(file); err != nil {
		return f.errorResult(err)
	}

	return f.mintRedirect(req.Identity, file, parent, placement.FileSystemIDs, placement.FileSystemIDs[0], types.AccessCreate, booking, file.LayoutID)
}

// openExisting runs Access for a read (or in-place update) against an
// already-placed file, including the bounded self-healing retry (spec
// §4.6 steps 9-14).
func (f *Front) openExisting(file *types.File, parent *types.Container, access types.CapabilityAccess, req OpenRequest) Result {
	res, err := f.sched.Access(scheduler.AccessRequest{
		Locations:   file.Locations,
		PinFSID:     req.PinFSID,
		PreferGroup: "",
		FileID:      file.ID,
	})
	if err != nil {
		kind, _ := mgmerr.KindOf(err)
		if kind == mgmerr.NoNetwork {
			attrs := types.ExtAttrs(parent.Xattrs)
			if n, ok := attrs.HealUnavailable(); ok {
				return f.heal(file, n)
			}
			if seconds, ok := attrs.StallUnavailable(); ok {
				return stallResult(seconds, "replica temporarily unavailable")
			}
			if host, port, ok := attrs.RedirectENONET(); ok {
				return Result{Kind: KindRedirect, Host: host, Port: port}
			}
		}
		return f.errorResult(err)
	}
	f.healReset(file.ID)

	layout := types.DecodeLayout(file.LayoutID)
	layout.Stripes = len(res.FileSystemIDs)
	effectiveLID := layout.Encode()

	return f.mintRedirect(req.Identity, file, parent, res.FileSystemIDs, res.Entry, access, 0, effectiveLID)
}

// heal implements spec §4.6 step 9's bounded self-healing retry: up to
// n adjust-replica submissions total for this file, one per call,
// each followed by a stall; the (n+1)th call surrenders with the
// original NoNetwork error.
func (f *Front) heal(file *types.File, n int) Result {
	f.mu.Lock()
	attempts := f.healAttempts[file.ID]
	if attempts >= n {
		delete(f.healAttempts, file.ID)
		f.mu.Unlock()
		return f.errorResult(mgmerr.New(mgmerr.NoNetwork, "no reachable replica for file %d after %d heal attempts", file.ID, n))
	}
	f.healAttempts[file.ID] = attempts + 1
	f.mu.Unlock()

	args := url.Values{}
	args.Set("mgm.cmd", "transfer")
	args.Set("mgm.subcmd", "adjust")
	args.Set("mgm.transfer.fid", fmt.Sprintf("%x", file.ID))
	if _, err := f.proc.Execute(context.Background(), types.Identity{UID: 0}, proc.AdminPrefix, args); err != nil {
		f.logger.Warn().Err(err).Uint64("fid", uint64(file.ID)).Msg("adjust-replica submission failed")
	}
	return stallResult(DefaultHealStallSeconds, "healing unavailable replica")
}

func (f *Front) healReset(fileID types.ID) {
	f.mu.Lock()
	delete(f.healAttempts, fileID)
	f.mu.Unlock()
}

// mintRedirect implements spec §4.6 steps 11-14: mint and sign a
// capability for the chosen entry plus one url entry per surviving
// replica, touch the parent's directory mtime cache, and return the
// redirect.
func (f *Front) mintRedirect(id types.Identity, file *types.File, parent *types.Container, fsids []uint32, primary uint32, access types.CapabilityAccess, bookingSize uint64, layoutID uint32) Result {
	primaryFS, err := f.view.FileSystem(primary)
	if err != nil {
		return f.errorResult(err)
	}

	entryIndex := 0
	urls := make([]types.CapabilityReplica, 0, len(fsids))
	for i, fsid := range fsids {
		fs, err := f.view.FileSystem(fsid)
		if err != nil {
			continue
		}
		urls = append(urls, types.CapabilityReplica{FsID: fsid, Host: fs.Host, Port: fs.Port, LocalPrefix: fs.Path})
		if fsid == primary {
			entryIndex = i
		}
	}

	filePath, err := f.store.PathOf(file.ID)
	if err != nil {
		filePath = file.Name
	}

	cap := types.Capability{
		Access:      access,
		FileID:      file.ID,
		LayoutID:    layoutID,
		RUID:        id.UID,
		RGID:        id.GID,
		UID:         file.UID,
		GID:         file.GID,
		Path:        filePath,
		Manager:     f.manager,
		BookingSize: bookingSize,
		FsID:        primary,
		LocalPrefix: primaryFS.Path,
		URLs:        urls,
	}

	token, err := f.capEng.Sign(cap)
	if err != nil {
		return f.errorResult(err)
	}

	f.store.TouchDirMTime(parent.ID, time.Now())

	return Result{
		Kind:         KindRedirect,
		Host:         primaryFS.Host,
		Port:         primaryFS.Port,
		Opaque:       token,
		ReplicaIndex: entryIndex,
		ReplicaHead:  0,
		LogID:        fmt.Sprintf("%x", file.ID),
	}
}

func stallResult(seconds int, message string) Result {
	return Result{Kind: KindStall, StallSeconds: seconds, Message: message}
}

func (f *Front) errorResult(err error) Result {
	errno := 22
	if kind, ok := mgmerr.KindOf(err); ok {
		errno = mgmerr.Errno[kind]
	}
	return Result{Kind: KindError, Err: err, Errno: errno, Message: err.Error()}
}
