/*
Package log provides structured logging for the EOS metadata server using
zerolog.

The log package wraps zerolog to give every component (namespace,
clusterview, scheduler, capability, openfront, proc, engines,
replication) a JSON-structured logger tagged with its component name,
plus a handful of domain-specific context helpers (WithFsid, WithFid,
WithPath) used throughout the redirecting-open path and the background
engines.

# Levels

Debug - verbose internals (lock acquisition order, snapshot contents).
Info  - steady-state events (container created, fs booted, drain started).
Warn  - recoverable anomalies (heartbeat missed, placement fell back to
        the relaxed cross-group pass).
Error - failed operations that are still handled by the caller (EBADE on
        commit, ENOSPC on placement).
Fatal - unrecoverable startup failures (raft init, changelog open).

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("scheduler")
	logger.Info().Uint32("fsid", 17).Msg("selected file system for placement")

Background engines and the FSM never log at Fatal — per spec §7 they
log and continue; only process bootstrap (raft, changelog, bbolt) may
call log.Fatal.
*/
package log
