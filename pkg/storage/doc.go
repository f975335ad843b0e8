// Package storage persists the cluster-view's file systems, nodes,
// groups, and spaces to a local bbolt database, one bucket per entity
// kind, keyed by id/name, values JSON-encoded.
//
// It is written through by pkg/fsm's Apply, never read by raft itself
// — raft's own log and snapshot store (raft-boltdb) are a separate
// database. This one exists purely so a restarted process (or a
// non-voting read replica) can answer cluster-view queries before or
// without a raft snapshot restore.
package storage
