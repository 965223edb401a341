package protocol

import (
	"go.lsp.dev/uri"

	"github.com/scripthost/enginehost/internal/types"
)

// GetVersionResult is the powerShell/getVersion result body (spec.md §6).
// It is a type definition only; no handler in this repo fills or returns it.
type GetVersionResult struct {
	Version      string `json:"version"`
	Edition      string `json:"edition"`
	Architecture string `json:"architecture"`
}

// Source identifies a script file the way the debug-adapter protocol does:
// a display name plus the URI the remote-file mirror resolves it to.
type Source struct {
	Name string  `json:"name"`
	Path uri.URI `json:"path"`
}

// SourceBreakpoint is one requested line breakpoint, mirroring
// LineBreakpointSpec but in wire shape (condition/hitCondition as raw
// strings, as the debug-adapter protocol sends them).
type SourceBreakpoint struct {
	Line          int    `json:"line"`
	Condition     string `json:"condition,omitempty"`
	HitCondition  string `json:"hitCondition,omitempty"`
}

// SetBreakpointsParams is the setBreakpoints request body: replace every
// breakpoint in Source with Breakpoints (spec.md §4.7.1's clear-then-set
// semantics).
type SetBreakpointsParams struct {
	Source      Source             `json:"source"`
	Breakpoints []SourceBreakpoint `json:"breakpoints"`
}

// SetBreakpointsResult reports verification per requested breakpoint, in
// the same order as the request.
type SetBreakpointsResult struct {
	Breakpoints []types.LineBreakpoint `json:"breakpoints"`
}

// FunctionBreakpoint is one requested command breakpoint.
type FunctionBreakpoint struct {
	Name      string `json:"name"`
	Condition string `json:"condition,omitempty"`
}

// SetFunctionBreakpointsParams is the setFunctionBreakpoints request body.
type SetFunctionBreakpointsParams struct {
	Breakpoints []FunctionBreakpoint `json:"breakpoints"`
}

// SetFunctionBreakpointsResult reports verification per requested command
// breakpoint.
type SetFunctionBreakpointsResult struct {
	Breakpoints []types.CommandBreakpoint `json:"breakpoints"`
}

// StackTraceParams is the stackTrace request body; threadID is unused (one
// runspace, one pipeline thread) but kept for debug-adapter shape parity.
type StackTraceParams struct {
	ThreadID int `json:"threadId"`
}

// StackFrameDTO is one stack frame on the wire, with Source resolved to a
// URI instead of the bare path types.StackFrame carries internally.
type StackFrameDTO struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Source    Source `json:"source"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine"`
	EndColumn int    `json:"endColumn"`
}

// StackTraceResult is the stackTrace response body.
type StackTraceResult struct {
	StackFrames []StackFrameDTO `json:"stackFrames"`
	TotalFrames int             `json:"totalFrames"`
}

// ScopesParams is the scopes request body.
type ScopesParams struct {
	FrameID int `json:"frameId"`
}

// ScopesResult is the scopes response body: Auto, Local, Script, Global in
// that order (spec.md §4.7.2 step 3).
type ScopesResult struct {
	Scopes []types.VariableContainer `json:"scopes"`
}

// VariablesParams is the variables request body.
type VariablesParams struct {
	VariablesReference int `json:"variablesReference"`
}

// VariablesResult is the variables response body.
type VariablesResult struct {
	Variables []types.VariableDetail `json:"variables"`
}

// SetVariableParams is the setVariable request body.
type SetVariableParams struct {
	VariablesReference int    `json:"variablesReference"`
	Name               string `json:"name"`
	Value              string `json:"value"`
}

// SetVariableResult is the setVariable response body.
type SetVariableResult struct {
	Value               string `json:"value"`
	VariablesReference  int    `json:"variablesReference,omitempty"`
}

// ContinueParams, NextParams, StepInParams, StepOutParams are the stepping
// request bodies; all share the same shape in the debug-adapter protocol.
type ContinueParams struct{ ThreadID int `json:"threadId"` }
type NextParams struct{ ThreadID int `json:"threadId"` }
type StepInParams struct{ ThreadID int `json:"threadId"` }
type StepOutParams struct{ ThreadID int `json:"threadId"` }

// EvaluateParams is the evaluate request body (watch/REPL expression
// evaluation against a stopped frame).
type EvaluateParams struct {
	Expression string `json:"expression"`
	FrameID    int    `json:"frameId"`
	Context    string `json:"context"` // "watch" | "repl" | "hover"
}

// EvaluateResult is the evaluate response body.
type EvaluateResult struct {
	Result              string `json:"result"`
	VariablesReference  int    `json:"variablesReference,omitempty"`
}
