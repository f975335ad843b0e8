// Package rules implements the access-rules store the redirecting open
// front-end consults before anything else (spec §4.6 steps 2-3): banned
// and allowed users/groups/hosts, global stall rules, and global
// redirect rules. It is also the backing store for the proc "access"
// command (spec §6), which is the only writer.
package rules

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// Store holds the current set of access rules in memory, guarded by a
// single mutex in the same style as the namespace store's index maps —
// the rule set is small and consulted on every open, so a read-heavy
// RWMutex outperforms anything fancier.
type Store struct {
	mu    sync.RWMutex
	rules []types.AccessRule
}

func NewStore() *Store {
	return &Store{}
}

// Add appends r, replacing any existing rule of the same kind and
// target.
func (s *Store) Add(r types.AccessRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.rules {
		if existing.Kind == r.Kind && existing.Target == r.Target {
			s.rules[i] = r
			return
		}
	}
	s.rules = append(s.rules, r)
}

// Remove deletes the rule matching kind and target, reporting whether
// one was found.
func (s *Store) Remove(kind types.AccessRuleKind, target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.Kind == kind && r.Target == target {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a snapshot of every configured rule.
func (s *Store) List() []types.AccessRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.AccessRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Stall reports the first matching stall rule for id, if any (spec
// §4.6 step 2: "apply stall rules ... first").
func (s *Store) Stall(id types.Identity) (types.AccessRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.Kind == types.RuleStall && matches(r, id) {
			return r, true
		}
	}
	return types.AccessRule{}, false
}

// Redirect reports the first matching global redirect rule for id, if
// any (spec §4.6 step 3).
func (s *Store) Redirect(id types.Identity) (types.AccessRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.Kind == types.RuleRedirect && matches(r, id) {
			return r, true
		}
	}
	return types.AccessRule{}, false
}

// Banned reports whether id is currently banned: a matching Ban rule
// with no matching Allow rule overriding it.
func (s *Store) Banned(id types.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	banned := false
	for _, r := range s.rules {
		switch r.Kind {
		case types.RuleBan:
			if matches(r, id) {
				banned = true
			}
		case types.RuleAllow:
			if matches(r, id) {
				return false
			}
		}
	}
	return banned
}

func matches(r types.AccessRule, id types.Identity) bool {
	if r.Target == "*" {
		return true
	}
	if r.Target == "host:"+id.Host {
		return true
	}
	if r.Target == "uid:"+strconv.FormatUint(uint64(id.UID), 10) {
		return true
	}
	gidTarget := fmt.Sprintf("gid:%d", id.GID)
	if r.Target == gidTarget {
		return true
	}
	for _, g := range id.Groups {
		if r.Target == fmt.Sprintf("gid:%d", g) {
			return true
		}
	}
	return false
}
