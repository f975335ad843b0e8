package fsm

import (
	"encoding/json"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/hashicorp/raft"
)

// mgmSnapshot is the point-in-time copy raft persists and later feeds
// back to Restore, grounded on the teacher's WarrenSnapshot: one slice
// per entity kind, JSON-encoded whole.
type mgmSnapshot struct {
	Containers  []*types.Container
	Files       []*types.File
	FileSystems []*types.FileSystem
	Nodes       []*types.Node
	Groups      []*types.Group
	Spaces      []*types.Space
}

// Persist writes the snapshot to sink, closing it on success and
// cancelling it on any encode failure.
func (s *mgmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release is a no-op: the snapshot holds no resources beyond the
// slices already captured at Snapshot() time.
func (s *mgmSnapshot) Release() {}
