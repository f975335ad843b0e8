package transport

import "github.com/HaiboGNU/eos-sub000/pkg/types"

// OpenRequestWire is the Open RPC's Envelope.Payload shape, the wire
// form of pkg/openfront.OpenRequest. Kept as a separate, dependency-free
// struct rather than importing pkg/openfront directly, the same
// decoupling ProcExecRequest/Response give pkg/proc.Result.
type OpenRequestWire struct {
	Path     string         `json:"path"`
	Identity types.Identity `json:"identity"`

	Create   bool   `json:"create,omitempty"`
	Truncate bool   `json:"truncate,omitempty"`
	Write    bool   `json:"write,omitempty"`
	Space    string `json:"space,omitempty"`
	LayoutID uint32 `json:"layout_id,omitempty"`
	PinFSID  uint32 `json:"pin_fsid,omitempty"`
	Opaque   string `json:"opaque,omitempty"`
}

// OpenResponseWire is the wire form of pkg/openfront.Result.
type OpenResponseWire struct {
	Kind string `json:"kind"`

	Host         string `json:"host,omitempty"`
	Port         int    `json:"port,omitempty"`
	Opaque       string `json:"opaque,omitempty"`
	ReplicaIndex int    `json:"replica_index,omitempty"`
	ReplicaHead  int    `json:"replica_head,omitempty"`
	LogID        string `json:"log_id,omitempty"`

	StallSeconds int    `json:"stall_seconds,omitempty"`
	Message      string `json:"message,omitempty"`

	Errno int    `json:"errno,omitempty"`
	Err   string `json:"err,omitempty"`

	ProcStdout string `json:"proc_stdout,omitempty"`
	ProcStderr string `json:"proc_stderr,omitempty"`
	ProcRetc   int    `json:"proc_retc,omitempty"`
}
