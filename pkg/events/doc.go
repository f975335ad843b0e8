/*
Package events provides an in-memory event broker for the CORE's
pub/sub notifications.

It broadcasts namespace and cluster-view state changes to any
in-process subscriber that wants to react to a file being committed or
a file system faulting without polling the namespace or cluster view
directly. No package in this repository subscribes to it; see
"Integration points" below for the publishers.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  Publisher → Event Channel (buffer: 100)                  │
	│       ↓                                                    │
	│  Broadcast Loop                                            │
	│       ↓                                                    │
	│  Subscriber Channels (buffer: 50 each)                    │
	│                                                            │
	│  Event Types:                                              │
	│    File:       created, committed, unlinked, recycled,    │
	│                purged                                      │
	│    Container:  created, removed                            │
	│    FileSystem: faulted, drain_state                        │
	│    Node:       joined, left                                │
	│    Group/Space: updated                                    │
	└────────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Buffered publish: Publish returns at once while fewer than 100
    events are pending, and blocks (until the broker stops) once the
    buffer is full
  - Graceful shutdown via stop channel

Event:
  - ID: caller-assigned identifier, e.g. a file or file-system id
  - Type: one of the EventType constants below
  - Timestamp: set by Publish if the caller leaves it zero
  - Message: human-readable description
  - Metadata: key-value pairs for additional context (path, fs-id, ...)

Subscriber: a buffered channel returned by Broker.Subscribe and closed
by Broker.Unsubscribe. A full subscriber buffer drops events rather
than blocking the broadcast loop.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			switch event.Type {
			case events.EventFileSystemFaulted:
				log.Warn().Str("fsid", event.Metadata["fsid"]).Msg("fs fault")
			case events.EventFileSystemDrainState:
				log.Info().Msg(event.Message)
			}
		}
	}()

	broker.Publish(&events.Event{
		Type:     events.EventFileCommitted,
		Message:  "file /a/file.dat committed by fs 3",
		Metadata: map[string]string{"path": "/a/file.dat", "fsid": "3"},
	})

# Integration points

  - pkg/engines: publishes filesystem.faulted when the drain
    coordinator's fault listener fires, filesystem.drain_state as it
    advances a file system's drain state machine, and file.purged as
    the LRU engine ages out recycle-bin entries past their TTL.
  - pkg/fsm: publishes file.created/file.committed/file.unlinked as
    MgmFSM.Apply dispatches the matching namespace mutation.

A subscriber is only useful to in-process code — pkg/proc's commands
are synchronous request/response (spec §6's stdout/stderr/retc triple),
not a stream, so there is no proc command that exposes this broker
directly.
*/
package events
