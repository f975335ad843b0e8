package scheduler

import (
	"testing"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/mgmerr"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

func writableFS(id uint32, group string, free uint64) *types.FileSystem {
	return &types.FileSystem{
		ID:        id,
		Group:     group,
		Boot:      types.BootBooted,
		Config:    types.ConfigReadWrite,
		Active:    types.ActiveOnline,
		Capacity:  1 << 40,
		FreeBytes: free,
		Headroom:  0,
	}
}

func newTestView(t *testing.T, spaceName string, groupFS map[string][]uint32) *clusterview.View {
	t.Helper()
	view := clusterview.New(nil)

	var groupNames []string
	for group, fsids := range groupFS {
		groupNames = append(groupNames, group)
		require.NoError(t, view.UpsertGroup(&types.Group{Name: group, SpaceName: spaceName, FileSystemIDs: fsids}))
		for _, id := range fsids {
			require.NoError(t, view.UpsertFileSystem(writableFS(id, group, 1<<30)))
		}
	}
	require.NoError(t, view.UpsertSpace(&types.Space{Name: spaceName, GroupNames: groupNames}))
	return view
}

func TestPlacementPicksOneFsPerGroupAcrossDistinctGroups(t *testing.T) {
	view := newTestView(t, "default", map[string][]uint32{
		"group.0": {1, 2},
		"group.1": {3, 4},
		"group.2": {5, 6},
	})
	sched := New(view, nil)

	layout := types.Layout{Type: types.LayoutReplica, Stripes: 2}
	res, err := sched.Placement(PlacementRequest{
		Space:       "default",
		LayoutID:    layout.Encode(),
		BookingSize: 1024,
		FileID:      42,
	})
	require.NoError(t, err)
	require.Len(t, res.FileSystemIDs, 2)

	groupOf := map[uint32]string{1: "group.0", 2: "group.0", 3: "group.1", 4: "group.1", 5: "group.2", 6: "group.2"}
	g0, g1 := groupOf[res.FileSystemIDs[0]], groupOf[res.FileSystemIDs[1]]
	require.NotEqual(t, g0, g1, "placement confinement: no two entries from the same group")
}

func TestPlacementFallsBackToRelaxedCrossGroupPass(t *testing.T) {
	view := newTestView(t, "default", map[string][]uint32{
		"group.0": {1, 2, 3},
	})
	sched := New(view, nil)

	layout := types.Layout{Type: types.LayoutReplica, Stripes: 2}
	res, err := sched.Placement(PlacementRequest{Space: "default", LayoutID: layout.Encode(), BookingSize: 1, FileID: 7})
	require.NoError(t, err)
	require.Len(t, res.FileSystemIDs, 2)
}

func TestPlacementReturnsNoSpaceWhenCapacityInsufficient(t *testing.T) {
	view := clusterview.New(nil)
	require.NoError(t, view.UpsertGroup(&types.Group{Name: "group.0", SpaceName: "default", FileSystemIDs: []uint32{1}}))
	require.NoError(t, view.UpsertFileSystem(writableFS(1, "group.0", 10)))
	require.NoError(t, view.UpsertSpace(&types.Space{Name: "default", GroupNames: []string{"group.0"}}))

	sched := New(view, nil)
	layout := types.Layout{Type: types.LayoutPlain, Stripes: 1}
	_, err := sched.Placement(PlacementRequest{Space: "default", LayoutID: layout.Encode(), BookingSize: 1 << 20, FileID: 1})
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.NoSpace, kind)
}

func TestPlacementReturnsNoQuotaWhenOwnerOverLimit(t *testing.T) {
	view := newTestView(t, "default", map[string][]uint32{"group.0": {1}})
	quota := namespace.NewQuotaIndex()
	node := quota.NodeFor(99)
	node.UIDLimitBytes[7] = 100
	node.ByUID[7] = &types.QuotaCounters{PhysicalBytes: 100}

	sched := New(view, quota)
	layout := types.Layout{Type: types.LayoutPlain, Stripes: 1}
	_, err := sched.Placement(PlacementRequest{
		Space:       "default",
		LayoutID:    layout.Encode(),
		BookingSize: 1,
		UID:         7,
		QuotaNodeID: 99,
		FileID:      1,
	})
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.NoQuota, kind)
}

func TestAccessFiltersOfflineAndBelowDrain(t *testing.T) {
	view := clusterview.New(nil)
	online := writableFS(1, "group.0", 1<<30)
	offline := writableFS(2, "group.0", 1<<30)
	offline.Active = types.ActiveOffline
	draining := writableFS(3, "group.0", 1<<30)
	draining.Config = types.ConfigDrain
	require.NoError(t, view.UpsertFileSystem(online))
	require.NoError(t, view.UpsertFileSystem(offline))
	require.NoError(t, view.UpsertFileSystem(draining))

	sched := New(view, nil)
	res, err := sched.Access(AccessRequest{Locations: []uint32{1, 2, 3}, FileID: 1})
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, res.FileSystemIDs)
	require.Equal(t, uint32(1), res.Entry)
}

func TestAccessReturnsNoNetworkWhenAllUnreachable(t *testing.T) {
	view := clusterview.New(nil)
	offline := writableFS(1, "group.0", 1<<30)
	offline.Active = types.ActiveOffline
	require.NoError(t, view.UpsertFileSystem(offline))

	sched := New(view, nil)
	_, err := sched.Access(AccessRequest{Locations: []uint32{1}, FileID: 1})
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.NoNetwork, kind)
}

func TestAccessReturnsNoEntryWhenLocationsEmpty(t *testing.T) {
	sched := New(clusterview.New(nil), nil)
	_, err := sched.Access(AccessRequest{FileID: 1})
	require.Error(t, err)
	kind, ok := mgmerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mgmerr.NoEntry, kind)
}

func TestAccessHonorsPin(t *testing.T) {
	view := clusterview.New(nil)
	require.NoError(t, view.UpsertFileSystem(writableFS(1, "group.0", 1<<30)))
	require.NoError(t, view.UpsertFileSystem(writableFS(2, "group.0", 1<<30)))

	sched := New(view, nil)
	res, err := sched.Access(AccessRequest{Locations: []uint32{1, 2}, PinFSID: 2, FileID: 1})
	require.NoError(t, err)
	require.Equal(t, uint32(2), res.Entry)
}
