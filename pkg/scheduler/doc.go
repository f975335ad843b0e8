// Package scheduler implements the Placement and Access operations
// (spec §4.5): given a layout, a space, and a file, it chooses the
// ordered list of file systems for a new write (Placement) or for
// reading an existing one (Access).
//
// Both operations read a consistent view of cluster topology under
// the cluster view's own read lock and never mutate it; Placement
// additionally consults the quota index to reject candidates that
// would push an owner over its byte limit. Tie-breaks are deterministic
// given a request's file id and do not depend on wall-clock entropy;
// the same file id always yields the same rotation, so a retry of the
// same request picks the same file systems again.
package scheduler
