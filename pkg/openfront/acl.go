// Package openfront implements the redirecting open front-end (spec
// §4.6): the single control path every client open, read, write, and
// proc command passes through before anything else happens.
package openfront

import (
	"strconv"
	"strings"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// Op is one of the permission bits an ACL entry or a POSIX mode grants.
type Op uint8

const (
	OpRead Op = 1 << iota
	OpWrite
	OpBrowse
)

// ACLEntry is one parsed "u:<uid>:<flags>", "g:<gid>:<flags>", or
// "z:<flags>" clause from a sys.acl attribute. No dedicated ACL parser
// was retrieved for this codebase's original implementation (only
// call sites reading sys.acl/user.acl as opaque strings), so the
// concrete entry syntax here is this package's own design, chosen to
// mirror the rwx-letter convention the rest of the CORE already uses
// for POSIX mode bits.
type ACLEntry struct {
	Deny  bool
	All   bool // "z:" entry, matches every identity
	UID   uint32
	GID   uint32
	IsUID bool // true for "u:", false for "g:" (ignored when All)
	Bits  Op
}

// ParseACL parses a comma-separated sys.acl value. Malformed clauses
// are skipped rather than failing the whole attribute, matching the
// tolerant parsing the rest of this package applies to extended
// attributes.
func ParseACL(s string) []ACLEntry {
	if s == "" {
		return nil
	}
	var entries []ACLEntry
	for _, clause := range strings.Split(s, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		deny := strings.HasPrefix(clause, "!")
		clause = strings.TrimPrefix(clause, "!")

		parts := strings.Split(clause, ":")
		var e ACLEntry
		e.Deny = deny
		switch {
		case len(parts) == 2 && parts[0] == "z":
			e.All = true
			e.Bits = parseBits(parts[1])
		case len(parts) == 3 && parts[0] == "u":
			v, err := strconv.ParseUint(parts[1], 10, 32)
			if err != nil {
				continue
			}
			e.IsUID = true
			e.UID = uint32(v)
			e.Bits = parseBits(parts[2])
		case len(parts) == 3 && parts[0] == "g":
			v, err := strconv.ParseUint(parts[1], 10, 32)
			if err != nil {
				continue
			}
			e.GID = uint32(v)
			e.Bits = parseBits(parts[2])
		default:
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func parseBits(s string) Op {
	var b Op
	for _, c := range s {
		switch c {
		case 'r':
			b |= OpRead
		case 'w':
			b |= OpWrite
		case 'x':
			b |= OpBrowse
		}
	}
	return b
}

func (e ACLEntry) matches(id types.Identity) bool {
	if e.All {
		return true
	}
	if e.IsUID {
		return id.UID == e.UID
	}
	if id.GID == e.GID {
		return true
	}
	for _, g := range id.Groups {
		if g == e.GID {
			return true
		}
	}
	return false
}

// Allowed combines a container's sys.acl with its POSIX mode (spec
// §4.6 step 6). uid 0 always passes. An explicit deny clause matching
// the caller and the requested op always wins, even over a POSIX mode
// that would otherwise grant it; absent a deny, either a matching
// grant clause or the POSIX mode bits are enough.
func Allowed(c *types.Container, id types.Identity, op Op) bool {
	if id.UID == 0 {
		return true
	}
	attrs := types.ExtAttrs(c.Xattrs)
	aclStr, _ := attrs.ACL()
	entries := ParseACL(aclStr)

	for _, e := range entries {
		if e.Deny && e.matches(id) && e.Bits&op != 0 {
			return false
		}
	}
	for _, e := range entries {
		if !e.Deny && e.matches(id) && e.Bits&op == op {
			return true
		}
	}
	return posixAllowed(c, id, op)
}

// posixAllowed generalizes the namespace package's owner/group/other
// mode check to all three op bits, not just the write+execute pair
// CreateContainer needs.
func posixAllowed(c *types.Container, id types.Identity, op Op) bool {
	mode := c.Mode
	var bits uint32
	switch {
	case c.UID == id.UID:
		bits = (mode >> 6) & 07
	case matchesGID(c.GID, id):
		bits = (mode >> 3) & 07
	default:
		bits = mode & 07
	}
	var want uint32
	if op&OpRead != 0 {
		want |= 04
	}
	if op&OpWrite != 0 {
		want |= 02
	}
	if op&OpBrowse != 0 {
		want |= 01
	}
	return bits&want == want
}

func matchesGID(gid uint32, id types.Identity) bool {
	if id.GID == gid {
		return true
	}
	for _, g := range id.Groups {
		if g == gid {
			return true
		}
	}
	return false
}
