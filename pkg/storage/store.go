// Package storage is the bbolt-backed query-side secondary index for
// the cluster view (spec §9: "a replicated key-value hash over the
// bus" is realized here as a local store raft's FSM writes through
// to, consulted by reads that never need to go through raft). It does
// not implement replication itself; pkg/fsm calls it from Apply.
package storage

import "github.com/HaiboGNU/eos-sub000/pkg/types"

// Backend is the persistence contract clusterview.View writes through
// and reads from on startup. Store (bbolt.go) is its only
// implementation; the interface exists so tests can substitute an
// in-memory fake without opening a real database file.
type Backend interface {
	PutFileSystem(fs *types.FileSystem) error
	GetFileSystem(id uint32) (*types.FileSystem, error)
	ListFileSystems() ([]*types.FileSystem, error)
	DeleteFileSystem(id uint32) error

	PutNode(n *types.Node) error
	GetNode(name string) (*types.Node, error)
	ListNodes() ([]*types.Node, error)
	DeleteNode(name string) error

	PutGroup(g *types.Group) error
	GetGroup(name string) (*types.Group, error)
	ListGroups() ([]*types.Group, error)
	DeleteGroup(name string) error

	PutSpace(sp *types.Space) error
	GetSpace(name string) (*types.Space, error)
	ListSpaces() ([]*types.Space, error)
	DeleteSpace(name string) error

	Close() error
}
