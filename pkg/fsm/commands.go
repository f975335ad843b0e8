package fsm

import "github.com/HaiboGNU/eos-sub000/pkg/types"

// Op names every Command the FSM understands. Kept as plain strings,
// matching the teacher's "create_node"/"update_node" convention rather
// than an integer enum, since the wire payload is JSON either way.
const (
	OpCreateContainer       = "create_container"
	OpUpdateContainer       = "update_container"
	OpRemoveContainer       = "remove_container"
	OpCreateFile            = "create_file"
	OpUpdateFile            = "update_file"
	OpUnlinkFile            = "unlink_file"
	OpRecycleFile           = "recycle_file"
	OpRename                = "rename"
	OpCommit                = "commit"
	OpConfirmReplicaDeleted = "confirm_replica_deleted"
	OpUpsertFileSystem      = "upsert_filesystem"
	OpRemoveFileSystem      = "remove_filesystem"
	OpUpsertNode            = "upsert_node"
	OpUpsertGroup           = "upsert_group"
	OpUpsertSpace           = "upsert_space"
)

type CreateContainerRequest struct {
	Path      string
	UID       uint32
	GID       uint32
	Mode      uint32
	Recursive bool
}

type RemoveContainerRequest struct {
	Path      string
	Recursive bool
}

type CreateFileRequest struct {
	Path     string
	UID      uint32
	GID      uint32
	LayoutID uint32
}

type PathRequest struct {
	Path string
}

type RecycleFileRequest struct {
	Path string
	UID  uint32
}

type RenameRequest struct {
	Src string
	Dst string
	UID uint32
	GID uint32
}

type ConfirmReplicaDeletedRequest struct {
	FileID types.ID
	FsID   uint32
}

type FsIDRequest struct {
	FsID uint32
}
