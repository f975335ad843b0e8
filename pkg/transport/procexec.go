package transport

import "github.com/HaiboGNU/eos-sub000/pkg/types"

// ProcExecRequest is the ProcExec RPC's Envelope.Payload shape: the
// same (identity, path, args) triple pkg/proc.Dispatcher.Execute takes
// directly, letting a Handler implementation forward the call without
// any translation layer.
type ProcExecRequest struct {
	Identity types.Identity      `json:"identity"`
	Path     string              `json:"path"`
	Args     map[string][]string `json:"args"`
}

// ProcExecResponse carries back pkg/proc.Result's stdout/stderr/retc
// triple plus an error string, since json.RawMessage can't carry a Go
// error across the wire directly.
type ProcExecResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Retc   int    `json:"retc"`
	Err    string `json:"err,omitempty"`
}
