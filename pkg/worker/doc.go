/*
Package worker implements the FST-stub agent: the process a file
system transfer server runs to stay visible to the CORE and to drain
whatever jobs the CORE has queued against it.

This CORE's scope stops at metadata and scheduling (spec's non-goal on
real byte-level data movement), so the agent here is intentionally
thin compared to a production FST:

	┌────────────────────── FST-STUB AGENT ───────────────────────┐
	│                                                               │
	│   ┌───────────────────────────────────────────────┐         │
	│   │                 Worker                         │         │
	│   │  - transport.Client to the CORE                │         │
	│   │  - heartbeat loop (fs heartbeat)                │         │
	│   │  - job-pull loop (transfer pull)                │         │
	│   └──────────────┬──────────────────────────────────┘        │
	│                  │ ProcExec / Commit                          │
	└──────────────────┼───────────────────────────────────────────┘
	                   ▼
	            pkg/transport.Client

The heartbeat loop refreshes the file system's reported free and used
space so the balancer and drain coordinator see it as alive; the pull
loop claims at most one outstanding drain, balance, or adjust job per
tick from that file system's own queues (pkg/engines always enqueues a
job against its source fs, so a worker is always draining jobs where
its own fs is the source) and completes the job by calling Commit,
which is the only side effect this CORE models for a finished
transfer. Copying the underlying bytes between file systems is the
real FST's job, not this stub's.
*/
package worker
