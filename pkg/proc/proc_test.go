package proc

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/rules"
	"github.com/HaiboGNU/eos-sub000/pkg/scheduler"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

const adminGID = 999

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dir := t.TempDir()
	store, err := namespace.Open(filepath.Join(dir, "containers.log"), filepath.Join(dir, "files.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	view := clusterview.New(nil)
	sched := scheduler.New(view, store.Quota())
	rs := rules.NewStore()

	return New(store, view, sched, rs, adminGID, 0, "eos-mgm-test")
}

func adminIdentity() types.Identity {
	return types.Identity{UID: 0, GID: 0}
}

func args(pairs ...string) Args {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return v
}

func TestMkdirThenLsShowsChild(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Execute(ctx, adminIdentity(), "/proc/admin/", args("mgm.cmd", "mkdir", "mgm.path", "/a/b", "mgm.option", "p"))
	require.NoError(t, err)

	res, err := d.Execute(ctx, adminIdentity(), "/proc/admin/", args("mgm.cmd", "ls", "mgm.path", "/a"))
	require.NoError(t, err)
	require.Contains(t, res.Stdout, "d b")
}

func TestNonAdminRejectedOnAdminPrefix(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Execute(ctx, types.Identity{UID: 1000}, "/proc/admin/", args("mgm.cmd", "mkdir", "mgm.path", "/a"))
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.PermissionDenied, kind)
}

func TestFindRespectsDepthLimitForAllCallers(t *testing.T) {
	d := newTestDispatcher(t)
	d.findDepthLimit = 1
	ctx := context.Background()

	_, err := d.Execute(ctx, adminIdentity(), "/proc/admin/", args("mgm.cmd", "mkdir", "mgm.path", "/a/b/c", "mgm.option", "p"))
	require.NoError(t, err)

	_, err = d.Execute(ctx, adminIdentity(), "/proc/admin/", args("mgm.cmd", "find", "mgm.path", "/a"))
	require.Error(t, err)
}

func TestQuotaSetAndLsRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Execute(ctx, adminIdentity(), "/proc/admin/", args("mgm.cmd", "mkdir", "mgm.path", "/q"))
	require.NoError(t, err)
	_, err = d.Execute(ctx, adminIdentity(), "/proc/admin/", args(
		"mgm.cmd", "quota", "mgm.subcmd", "set", "mgm.quota.path", "/q", "mgm.quota.uid", "7", "mgm.quota.maxbytes", "1000"))
	require.NoError(t, err)

	res, err := d.Execute(ctx, adminIdentity(), "/proc/admin/", args("mgm.cmd", "quota", "mgm.subcmd", "ls", "mgm.quota.path", "/q"))
	require.NoError(t, err)
	require.Contains(t, res.Stdout, "limit=1000")
}

func TestAttrSetAndGetRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Execute(ctx, adminIdentity(), "/proc/admin/", args("mgm.cmd", "mkdir", "mgm.path", "/a"))
	require.NoError(t, err)
	_, err = d.Execute(ctx, adminIdentity(), "/proc/admin/", args(
		"mgm.cmd", "attr", "mgm.subcmd", "set", "mgm.path", "/a", "mgm.attr.key", "sys.forced.layout", "mgm.attr.value", "33"))
	require.NoError(t, err)

	res, err := d.Execute(ctx, adminIdentity(), "/proc/admin/", args("mgm.cmd", "attr", "mgm.subcmd", "ls", "mgm.path", "/a"))
	require.NoError(t, err)
	require.Contains(t, res.Stdout, "sys.forced.layout=33")
}

func TestMotdRejectsNonAdminWrite(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Execute(ctx, types.Identity{UID: 1000}, "/proc/user/", args("mgm.cmd", "motd", "mgm.motd.text", "hacked"))
	require.Error(t, err)
}

func TestUnknownCommandReturnsInvalid(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Execute(ctx, adminIdentity(), "/proc/user/", args("mgm.cmd", "bogus"))
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.Invalid, kind)
}

func TestMapValidatesEndpointShape(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Execute(ctx, adminIdentity(), "/proc/admin/", args(
		"mgm.cmd", "map", "mgm.subcmd", "add", "mgm.map.src", "no-leading-slash/", "mgm.map.dst", "/ok/"))
	require.Error(t, err)

	_, err = d.Execute(ctx, adminIdentity(), "/proc/admin/", args(
		"mgm.cmd", "map", "mgm.subcmd", "add", "mgm.map.src", "/old/", "mgm.map.dst", "/new/"))
	require.NoError(t, err)
	require.Equal(t, "/new/file", d.ResolvePath("/old/file"))
}
