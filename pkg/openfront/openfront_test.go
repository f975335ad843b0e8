package openfront

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/capability"
	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/proc"
	"github.com/HaiboGNU/eos-sub000/pkg/rules"
	"github.com/HaiboGNU/eos-sub000/pkg/scheduler"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

type testRig struct {
	store *namespace.Store
	view  *clusterview.View
	sched *scheduler.Scheduler
	rules *rules.Store
	proc  *proc.Dispatcher
	front *Front
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	dir := t.TempDir()
	store, err := namespace.Open(filepath.Join(dir, "containers.log"), filepath.Join(dir, "files.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	view := clusterview.New(nil)
	sched := scheduler.New(view, store.Quota())
	rs := rules.NewStore()
	pd := proc.New(store, view, sched, rs, 999, 0, "eos-mgm-test")

	keys, err := capability.NewKeyStore()
	require.NoError(t, err)
	eng := capability.NewEngine(keys, time.Minute)

	front := New(store, view, sched, rs, pd, eng, "mgm1.cern.ch")
	return &testRig{store: store, view: view, sched: sched, rules: rs, proc: pd, front: front}
}

func writableFS(t *testing.T, view *clusterview.View, id uint32, group string) {
	t.Helper()
	require.NoError(t, view.UpsertFileSystem(&types.FileSystem{
		ID: id, Host: "fst" + group, Port: 1094, Path: "/data",
		Group: group, Boot: types.BootBooted, Config: types.ConfigReadWrite,
		Active: types.ActiveOnline, Capacity: 1 << 40, FreeBytes: 1 << 40,
	}))
}

func setupSpace(t *testing.T, view *clusterview.View, groups map[string][]uint32) {
	t.Helper()
	var names []string
	for g, fsids := range groups {
		names = append(names, g)
		require.NoError(t, view.UpsertGroup(&types.Group{Name: g, SpaceName: "default", FileSystemIDs: fsids}))
		for _, id := range fsids {
			writableFS(t, view, id, g)
		}
	}
	require.NoError(t, view.UpsertSpace(&types.Space{Name: "default", GroupNames: names}))
}

func rootID(t *testing.T, r *testRig) types.ID {
	t.Helper()
	c, err := r.store.GetContainer("/")
	require.NoError(t, err)
	return c.ID
}

func TestOpenCreateRedirectsAndPlacesAcrossDistinctGroups(t *testing.T) {
	r := newRig(t)
	setupSpace(t, r.view, map[string][]uint32{
		"group.0": {1},
		"group.1": {2},
		"group.2": {3},
	})
	_, err := r.store.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)

	layout := types.Layout{Type: types.LayoutReplica, Stripes: 2}
	res := r.front.Open(context.Background(), OpenRequest{
		Path:     "/a/file",
		Identity: types.Identity{UID: 0},
		Create:   true,
		Write:    true,
		LayoutID: layout.Encode(),
	})
	require.Equal(t, KindRedirect, res.Kind)
	require.NotEmpty(t, res.Opaque)

	f, err := r.store.GetFile("/a/file")
	require.NoError(t, err)
	require.Len(t, f.Locations, 2)

	groupOf := map[uint32]string{1: "group.0", 2: "group.1", 3: "group.2"}
	require.NotEqual(t, groupOf[f.Locations[0]], groupOf[f.Locations[1]])
}

func TestOpenReadHealsBoundedlyThenErrorsENONET(t *testing.T) {
	r := newRig(t)
	// Two locations that exist in the namespace but were never
	// registered in the cluster view: Access treats an unknown fs-id
	// as unreachable, producing NoNetwork on every attempt.
	_, err := r.store.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	f, err := r.store.CreateFile("/a/file", 0, 0, 0)
	require.NoError(t, err)
	f.Locations = []uint32{10, 11}
	require.NoError(t, r.store.UpdateFile(f))

	parent, err := r.store.GetContainer("/a")
	require.NoError(t, err)
	parent.Xattrs["sys.heal.unavailable"] = "2"
	require.NoError(t, r.store.UpdateContainer(parent))

	req := OpenRequest{Path: "/a/file", Identity: types.Identity{UID: 0}}

	res1 := r.front.Open(context.Background(), req)
	require.Equal(t, KindStall, res1.Kind)
	require.Equal(t, DefaultHealStallSeconds, res1.StallSeconds)

	res2 := r.front.Open(context.Background(), req)
	require.Equal(t, KindStall, res2.Kind)

	res3 := r.front.Open(context.Background(), req)
	require.Equal(t, KindError, res3.Kind)
	kind, ok := mgmerr.KindOf(res3.Err)
	require.True(t, ok)
	require.Equal(t, mgmerr.NoNetwork, kind)
	require.Equal(t, mgmerr.Errno[mgmerr.NoNetwork], res3.Errno)
}

func TestOpenMissingWithoutCreateHonorsRedirectENOENT(t *testing.T) {
	r := newRig(t)
	_, err := r.store.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	parent, err := r.store.GetContainer("/a")
	require.NoError(t, err)
	parent.Xattrs["sys.redirect.enoent"] = "other.cern.ch:1094"
	require.NoError(t, r.store.UpdateContainer(parent))

	res := r.front.Open(context.Background(), OpenRequest{Path: "/a/missing", Identity: types.Identity{UID: 7}})
	require.Equal(t, KindRedirect, res.Kind)
	require.Equal(t, "other.cern.ch", res.Host)
	require.Equal(t, 1094, res.Port)
}

func TestOpenMissingWithoutCreateOrRedirectReturnsNoEntry(t *testing.T) {
	r := newRig(t)
	_, err := r.store.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)

	res := r.front.Open(context.Background(), OpenRequest{Path: "/a/missing", Identity: types.Identity{UID: 7}})
	require.Equal(t, KindError, res.Kind)
	kind, ok := mgmerr.KindOf(res.Err)
	require.True(t, ok)
	require.Equal(t, mgmerr.NoEntry, kind)
}

func TestOpenTruncateRejectedByWriteOnce(t *testing.T) {
	r := newRig(t)
	setupSpace(t, r.view, map[string][]uint32{"group.0": {1}})
	_, err := r.store.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	parent, err := r.store.GetContainer("/a")
	require.NoError(t, err)
	parent.Xattrs["sys.acl.writeonce"] = "1"
	require.NoError(t, r.store.UpdateContainer(parent))

	res := r.front.Open(context.Background(), OpenRequest{Path: "/a/file", Identity: types.Identity{UID: 0}, Create: true, Write: true})
	require.Equal(t, KindRedirect, res.Kind)

	res2 := r.front.Open(context.Background(), OpenRequest{Path: "/a/file", Identity: types.Identity{UID: 0}, Write: true, Truncate: true})
	require.Equal(t, KindError, res2.Kind)
	kind, ok := mgmerr.KindOf(res2.Err)
	require.True(t, ok)
	require.Equal(t, mgmerr.PermissionDenied, kind)
}

func TestOpenBannedUserRejected(t *testing.T) {
	r := newRig(t)
	_, err := r.store.CreateContainer("/a", 0, 0, 0755, true)
	require.NoError(t, err)
	r.rules.Add(types.AccessRule{Kind: types.RuleBan, Target: "uid:13"})

	res := r.front.Open(context.Background(), OpenRequest{Path: "/a/file", Identity: types.Identity{UID: 13}})
	require.Equal(t, KindError, res.Kind)
	kind, ok := mgmerr.KindOf(res.Err)
	require.True(t, ok)
	require.Equal(t, mgmerr.PermissionDenied, kind)
}

func TestOpenStallRuleShortCircuits(t *testing.T) {
	r := newRig(t)
	r.rules.Add(types.AccessRule{Kind: types.RuleStall, Target: "*", Seconds: 5, Message: "maintenance"})

	res := r.front.Open(context.Background(), OpenRequest{Path: "/a/file", Identity: types.Identity{UID: 1}})
	require.Equal(t, KindStall, res.Kind)
	require.Equal(t, 5, res.StallSeconds)
	require.Equal(t, "maintenance", res.Message)
}

func TestOpenDelegatesProcPaths(t *testing.T) {
	r := newRig(t)
	res := r.front.Open(context.Background(), OpenRequest{
		Path:     "/proc/admin/",
		Identity: types.Identity{UID: 0},
		Opaque:   "mgm.cmd=version",
	})
	require.Equal(t, KindProc, res.Kind)
	require.NoError(t, res.Err)
	require.Equal(t, "eos-mgm-test", res.Proc.Stdout)
}

func TestOpenPermissionDeniedWithoutWriteBitOnParent(t *testing.T) {
	r := newRig(t)
	_, err := r.store.CreateContainer("/a", 0, 0, 0500, true)
	require.NoError(t, err)

	res := r.front.Open(context.Background(), OpenRequest{Path: "/a/file", Identity: types.Identity{UID: 99}, Create: true, Write: true})
	require.Equal(t, KindError, res.Kind)
	kind, ok := mgmerr.KindOf(res.Err)
	require.True(t, ok)
	require.Equal(t, mgmerr.PermissionDenied, kind)
}
