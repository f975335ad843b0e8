/*
Package client provides the Go client used by cmd/eos-admin's CLI to
talk to a CORE node: dial once, then issue proc commands and, for
cluster bootstrap, ask a node to admit a new voter.

	┌──────────────────── cmd/eos-admin (CLI) ────────────────────┐
	│                                                               │
	│  c, _ := client.Dial("core-1:9000")                          │
	│  res, _ := c.Exec(ctx, identity, "/proc/admin/", args)       │
	│  c.JoinCluster(ctx, "core-2", "core-2:9001")                 │
	│                                                               │
	└──────────────────────────┬────────────────────────────────────┘
	                           │
	                  pkg/transport.Client
	                           │
	                           ▼
	                pkg/transport.ServiceDesc (CORE)

Every admin and user operation this CORE exposes rides the proc
command surface (spec §6) rather than a method per operation, so this
client has exactly one general-purpose call (Exec) instead of the
one-method-per-RPC shape a generated stub would have produced, plus
JoinCluster for the one operation that isn't a proc command.
*/
package client
