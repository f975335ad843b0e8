package rules

import (
	"testing"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestBannedUserRejectedUnlessAllowed(t *testing.T) {
	s := NewStore()
	s.Add(types.AccessRule{Kind: types.RuleBan, Target: "uid:1000"})

	require.True(t, s.Banned(types.Identity{UID: 1000}))
	require.False(t, s.Banned(types.Identity{UID: 1001}))

	s.Add(types.AccessRule{Kind: types.RuleAllow, Target: "uid:1000"})
	require.False(t, s.Banned(types.Identity{UID: 1000}))
}

func TestGlobalBanMatchesEveryone(t *testing.T) {
	s := NewStore()
	s.Add(types.AccessRule{Kind: types.RuleBan, Target: "*"})
	require.True(t, s.Banned(types.Identity{UID: 42}))
}

func TestStallRuleMatchByHost(t *testing.T) {
	s := NewStore()
	s.Add(types.AccessRule{Kind: types.RuleStall, Target: "host:bad.cern.ch", Seconds: 5, Message: "overloaded"})

	r, ok := s.Stall(types.Identity{Host: "bad.cern.ch"})
	require.True(t, ok)
	require.Equal(t, 5, r.Seconds)

	_, ok = s.Stall(types.Identity{Host: "good.cern.ch"})
	require.False(t, ok)
}

func TestRedirectRuleMatchByGroup(t *testing.T) {
	s := NewStore()
	s.Add(types.AccessRule{Kind: types.RuleRedirect, Target: "gid:500", Host: "other.cern.ch", Port: 1094})

	r, ok := s.Redirect(types.Identity{GID: 100, Groups: []uint32{500}})
	require.True(t, ok)
	require.Equal(t, "other.cern.ch", r.Host)
}

func TestAddReplacesExistingRuleSameKindAndTarget(t *testing.T) {
	s := NewStore()
	s.Add(types.AccessRule{Kind: types.RuleStall, Target: "*", Seconds: 5})
	s.Add(types.AccessRule{Kind: types.RuleStall, Target: "*", Seconds: 10})

	require.Len(t, s.List(), 1)
	r, ok := s.Stall(types.Identity{})
	require.True(t, ok)
	require.Equal(t, 10, r.Seconds)
}

func TestRemoveDeletesMatchingRule(t *testing.T) {
	s := NewStore()
	s.Add(types.AccessRule{Kind: types.RuleBan, Target: "uid:7"})
	require.True(t, s.Remove(types.RuleBan, "uid:7"))
	require.False(t, s.Banned(types.Identity{UID: 7}))
	require.False(t, s.Remove(types.RuleBan, "uid:7"))
}
