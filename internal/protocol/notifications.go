package protocol

import "github.com/scripthost/enginehost/internal/types"

// The notification bodies below are type definitions only: nothing in this
// repo fills them or sends them. The one notification cmd/enginehost sends
// is a powerShell/runspaceChanged with no body, once at startup.

// ExecutionStatusChangedParams is the powerShell/executionStatusChanged
// notification body, describing the executor starting or finishing a
// task (spec.md §6, internal/events.KindExecutionStatus).
type ExecutionStatusChangedParams struct {
	Status string `json:"status"` // "running" | "completed"
}

// RunspaceChangedParams is the powerShell/runspaceChanged notification
// body, describing the frame stack's top frame after a change of kind or
// depth.
type RunspaceChangedParams struct {
	Depth int             `json:"depth"`
	Kind  types.FrameKind `json:"kind"`
}

// StartDebuggerParams is the powerShell/startDebugger notification body,
// carrying the stack frames of a debugger stop.
type StartDebuggerParams struct {
	StackFrames []types.StackFrame `json:"stackFrames"`
}
