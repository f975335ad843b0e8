package openfront

import (
	"testing"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

func container(mode uint32, uid, gid uint32, acl string) *types.Container {
	xattrs := map[string]string{}
	if acl != "" {
		xattrs["sys.acl"] = acl
	}
	return &types.Container{UID: uid, GID: gid, Mode: mode, Xattrs: xattrs}
}

func TestAllowedRootAlwaysPasses(t *testing.T) {
	c := container(0000, 1, 1, "")
	require.True(t, Allowed(c, types.Identity{UID: 0}, OpWrite))
}

func TestAllowedFallsBackToPosixModeWithoutACL(t *testing.T) {
	c := container(0644, 5, 5, "")
	require.True(t, Allowed(c, types.Identity{UID: 5}, OpWrite))
	require.False(t, Allowed(c, types.Identity{UID: 6}, OpWrite))
	require.True(t, Allowed(c, types.Identity{UID: 6}, OpRead))
}

func TestAllowedACLGrantBeyondPosixMode(t *testing.T) {
	c := container(0644, 5, 5, "")
	require.False(t, Allowed(c, types.Identity{UID: 9}, OpWrite), "posix other bits are read-only")
	c.Xattrs["sys.acl"] = "u:9:rw"
	require.True(t, Allowed(c, types.Identity{UID: 9}, OpWrite))
}

func TestAllowedACLDenyOverridesPosixGrant(t *testing.T) {
	c := container(0666, 1000, 1000, "!u:1000:w")
	require.False(t, Allowed(c, types.Identity{UID: 1000}, OpWrite))
	require.True(t, Allowed(c, types.Identity{UID: 1000}, OpRead))
}

func TestAllowedGroupACLEntryMatchesSecondaryGroup(t *testing.T) {
	c := container(0600, 1000, 1000, "g:500:rwx")
	id := types.Identity{UID: 42, GID: 42, Groups: []uint32{500}}
	require.True(t, Allowed(c, id, OpWrite))
}

func TestAllowedZClauseMatchesEveryone(t *testing.T) {
	c := container(0600, 1000, 1000, "z:r")
	require.True(t, Allowed(c, types.Identity{UID: 77}, OpRead))
	require.False(t, Allowed(c, types.Identity{UID: 77}, OpWrite))
}

func TestParseACLSkipsMalformedClauses(t *testing.T) {
	entries := ParseACL("u:notanumber:rw,g:500:rw,garbage,z:r")
	require.Len(t, entries, 2)
}
