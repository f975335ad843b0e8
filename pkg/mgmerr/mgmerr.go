// Package mgmerr implements the CORE's closed error taxonomy (spec §7):
// every fallible operation returns one of these kinds, carrying a
// POSIX errno and a human message, instead of an ad-hoc sentinel.
package mgmerr

import "fmt"

// Kind is one of the closed set of error kinds spec §7 enumerates.
type Kind string

const (
	MissingEntry    Kind = "MissingEntry"
	ExistingEntry   Kind = "ExistingEntry"
	PermissionDenied Kind = "PermissionDenied"
	NotADirectory   Kind = "NotADirectory"
	IsADirectory    Kind = "IsADirectory"
	NoSpace         Kind = "NoSpace"
	NoQuota         Kind = "NoQuota"
	NoNetwork       Kind = "NoNetwork"
	NoEntry         Kind = "NoEntry"
	BadSize         Kind = "BadSize"
	BadChecksum     Kind = "BadChecksum"
	Gone            Kind = "Gone"
	Invalid         Kind = "Invalid"
	TokenExpired    Kind = "TokenExpired"
	ServiceBusy     Kind = "ServiceBusy"
)

// Errno is the POSIX errno each Kind is surfaced as (spec §7 table).
var Errno = map[Kind]int{
	MissingEntry:     2,  // ENOENT
	ExistingEntry:    17, // EEXIST
	PermissionDenied: 13, // EACCES
	NotADirectory:    20, // ENOTDIR
	IsADirectory:     21, // EISDIR
	NoSpace:          28, // ENOSPC
	NoQuota:          28, // ENOSPC
	NoNetwork:        64, // ENONET
	NoEntry:          19, // ENODEV
	BadSize:          52, // EBADE
	BadChecksum:      53, // EBADR
	Gone:             43, // EIDRM
	Invalid:          22, // EINVAL
	TokenExpired:     1,  // EPERM
	ServiceBusy:      0,  // not an errno; surfaced as a stall
}

// Error is the uniform result type carrying a Kind, its errno, and a
// message. It implements the standard error interface plus Is so
// callers can `errors.Is(err, mgmerr.New(mgmerr.NoSpace, ""))`-style
// match on Kind alone.
type Error struct {
	Kind    Kind
	Errno   int
	Message string
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Errno: Errno[kind], Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (errno %d): %s", e.Kind, e.Errno, e.Message)
}

// Is matches on Kind only, ignoring Message, so sentinel-style checks
// work: errors.Is(err, &Error{Kind: mgmerr.Gone}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err, returning ok=false if err is not
// (or does not wrap) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if err == nil {
		return "", false
	}
	if as, ok := err.(*Error); ok {
		e = as
	} else if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return KindOf(unwrapper.Unwrap())
	} else {
		return "", false
	}
	return e.Kind, true
}
