// Package fsm wires raft's replicated log to the CORE's namespace
// engine and cluster view (spec §4.10). MgmFSM.Apply decodes a
// Command{Op, Data} the same shape the teacher's manager.Command used
// and dispatches it to the matching namespace.Store or
// clusterview.View method; those methods already append to
// pkg/changelog themselves, so Apply does no extra log writing beyond
// calling through.
package fsm

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/events"
	"github.com/HaiboGNU/eos-sub000/pkg/log"
	"github.com/HaiboGNU/eos-sub000/pkg/namespace"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
)

// Command is one state change submitted through raft, kept to the
// same {Op, Data} shape the teacher's manager.Command used.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// MgmFSM implements raft.FSM over a namespace store and cluster view.
type MgmFSM struct {
	mu     sync.Mutex
	store  *namespace.Store
	view   *clusterview.View
	broker *events.Broker
	logger zerolog.Logger
}

func New(store *namespace.Store, view *clusterview.View) *MgmFSM {
	return &MgmFSM{store: store, view: view, logger: log.WithComponent("fsm")}
}

// WithBroker attaches an event broker: successful Apply calls publish
// the matching events.Event after the underlying mutation succeeds.
// Optional — a nil broker (the zero value) is a silent no-op.
func (f *MgmFSM) WithBroker(b *events.Broker) *MgmFSM {
	f.broker = b
	return f
}

func (f *MgmFSM) publish(typ events.EventType, msg string, meta map[string]string) {
	if f.broker == nil {
		return
	}
	f.broker.Publish(&events.Event{Type: typ, Message: msg, Metadata: meta})
}

// Apply decodes one committed log entry and dispatches it. A non-nil
// return value is surfaced to the caller of raft.Raft.Apply via
// ApplyFuture.Response(), the same contract the teacher's FSM used.
func (f *MgmFSM) Apply(l *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return fmt.Errorf("fsm: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case OpCreateContainer:
		var req CreateContainerRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return err
		}
		_, err := f.store.CreateContainer(req.Path, req.UID, req.GID, req.Mode, req.Recursive)
		if err == nil {
			f.publish(events.EventContainerCreated, "container created: "+req.Path, map[string]string{"path": req.Path})
		}
		return err

	case OpUpdateContainer:
		var c types.Container
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return err
		}
		return f.store.UpdateContainer(&c)

	case OpRemoveContainer:
		var req RemoveContainerRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return err
		}
		err := f.store.RemoveContainer(req.Path, req.Recursive)
		if err == nil {
			f.publish(events.EventContainerRemoved, "container removed: "+req.Path, map[string]string{"path": req.Path})
		}
		return err

	case OpCreateFile:
		var req CreateFileRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return err
		}
		_, err := f.store.CreateFile(req.Path, req.UID, req.GID, req.LayoutID)
		if err == nil {
			f.publish(events.EventFileCreated, "file created: "+req.Path, map[string]string{"path": req.Path})
		}
		return err

	case OpUpdateFile:
		var file types.File
		if err := json.Unmarshal(cmd.Data, &file); err != nil {
			return err
		}
		return f.store.UpdateFile(&file)

	case OpUnlinkFile:
		var req PathRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return err
		}
		err := f.store.UnlinkFile(req.Path)
		if err == nil {
			f.publish(events.EventFileUnlinked, "file unlinked: "+req.Path, map[string]string{"path": req.Path})
		}
		return err

	case OpRecycleFile:
		var req RecycleFileRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return err
		}
		err := f.store.RecycleFile(req.Path, req.UID)
		if err == nil {
			f.publish(events.EventFileRecycled, "file recycled: "+req.Path, map[string]string{"path": req.Path})
		}
		return err

	case OpRename:
		var req RenameRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return err
		}
		return f.store.Rename(req.Src, req.Dst, req.UID, req.GID)

	case OpCommit:
		var req namespace.CommitRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return err
		}
		file, err := f.store.Commit(req)
		if err == nil {
			f.publish(events.EventFileCommitted, "file committed", map[string]string{"file_id": fmt.Sprint(file.ID)})
		}
		return err

	case OpConfirmReplicaDeleted:
		var req ConfirmReplicaDeletedRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return err
		}
		return f.store.ConfirmReplicaDeleted(req.FileID, req.FsID)

	case OpUpsertFileSystem:
		var fs types.FileSystem
		if err := json.Unmarshal(cmd.Data, &fs); err != nil {
			return err
		}
		return f.view.UpsertFileSystem(&fs)

	case OpRemoveFileSystem:
		var req FsIDRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return err
		}
		return f.view.RemoveFileSystem(req.FsID)

	case OpUpsertNode:
		var n types.Node
		if err := json.Unmarshal(cmd.Data, &n); err != nil {
			return err
		}
		err := f.view.UpsertNode(&n)
		if err == nil {
			f.publish(events.EventNodeJoined, "node upserted: "+n.Name, map[string]string{"node": n.Name})
		}
		return err

	case OpUpsertGroup:
		var g types.Group
		if err := json.Unmarshal(cmd.Data, &g); err != nil {
			return err
		}
		err := f.view.UpsertGroup(&g)
		if err == nil {
			f.publish(events.EventGroupUpdated, "group updated: "+g.Name, map[string]string{"group": g.Name})
		}
		return err

	case OpUpsertSpace:
		var sp types.Space
		if err := json.Unmarshal(cmd.Data, &sp); err != nil {
			return err
		}
		err := f.view.UpsertSpace(&sp)
		if err == nil {
			f.publish(events.EventSpaceUpdated, "space updated: "+sp.Name, map[string]string{"space": sp.Name})
		}
		return err

	default:
		return fmt.Errorf("fsm: unknown op %q", cmd.Op)
	}
}

// Snapshot implements raft.FSM, delegating to the namespace/cluster
// state already held; the returned FSMSnapshot's Persist call is what
// actually walks and serializes it (spec §4.10: compaction and
// snapshotting are the same underlying operation, triggered from
// different callers — raft here, pkg/engines's compactor engine for
// the change-log-only form).
func (f *MgmFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &mgmSnapshot{
		Containers:  f.store.Containers(),
		Files:       f.store.Files(),
		FileSystems: f.view.ListFileSystems(),
		Nodes:       f.view.ListNodes(),
		Groups:      f.view.ListGroups(),
		Spaces:      f.view.ListSpaces(),
	}, nil
}

// Restore implements raft.FSM, replacing the entire namespace and
// cluster-view state from a decoded snapshot.
func (f *MgmFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap mgmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("fsm: decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.store.LoadSnapshot(snap.Containers, snap.Files); err != nil {
		return fmt.Errorf("fsm: restore namespace: %w", err)
	}
	if err := f.view.Reset(snap.FileSystems, snap.Nodes, snap.Groups, snap.Spaces); err != nil {
		return fmt.Errorf("fsm: restore cluster view: %w", err)
	}
	return nil
}
