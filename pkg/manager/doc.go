/*
Package manager assembles one CORE node: everything else in this
module is a library, and manager is the only thing that constructs all
of them together and answers the network.

	┌────────────────────────── pkg/manager ───────────────────────────┐
	│                                                                    │
	│   pkg/rules ─┐                                       pkg/capability│
	│   pkg/sched ─┼─▶ pkg/openfront ──▶ transport.Handler.Open          │
	│   pkg/ns   ──┤                                                     │
	│   pkg/view ──┼─▶ pkg/proc ────────▶ transport.Handler.ProcExec     │
	│              │                                                     │
	│              └─▶ namespace.Store.Commit ──▶ transport.Handler.Commit│
	│                                                                     │
	│   pkg/fsm ◀── pkg/replication ───▶ transport.Handler.Join          │
	│   pkg/engines (balancer, compactor, deletion, drain, fsck, lru)    │
	│   pkg/events, pkg/health, pkg/metrics.Collector                    │
	│                                                                     │
	└─────────────────────────────┬───────────────────────────────────────┘
	                              │
	                   pkg/transport.NewServer(m)
	                              │
	                              ▼
	                    grpc.Server on Config.TransportAddr

Construction order in New mirrors the teacher's NewManager: open the
durable stores first (changelog-backed namespace, bbolt secondary
index), build the in-memory structures that read them (cluster view,
scheduler, rules), then the stateless engines that sit on top
(capability, openfront, proc), then the replicated-log plumbing
(fsm, replication), then the background task set, in that order so
nothing is handed a dependency that isn't ready yet.

Bootstrap/JoinCluster/Serve/Start/Shutdown are deliberately separate
calls, not folded into New, so cmd/eos-mgm's init and join subcommands
can choose which raft entry point to use before anything starts
listening or ticking — the same split the teacher's own
Bootstrap/Join/Start sequence in cmd/warren/main.go has.
*/
package manager
