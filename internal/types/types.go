// Package types holds the shared data model for the pipeline executor and
// debug service: frame kinds, execution options, task state, and the
// breakpoint/stack/variable DTOs the debug service exposes to callers.
package types

import "strings"

// FrameKind is a bitmask describing what a RunspaceFrame was pushed for.
// A frame can be more than one kind at once (e.g. Nested|Debug).
type FrameKind uint8

const (
	FrameNormal FrameKind = 1 << iota
	FrameNested
	FrameDebug
	FrameRemote
	FrameNonInteractive
	FrameRepl
)

func (k FrameKind) Has(bit FrameKind) bool { return k&bit != 0 }

func (k FrameKind) String() string {
	if k == 0 {
		return "None"
	}
	var parts []string
	for bit, name := range map[FrameKind]string{
		FrameNormal:         "Normal",
		FrameNested:         "Nested",
		FrameDebug:          "Debug",
		FrameRemote:         "Remote",
		FrameNonInteractive: "NonInteractive",
		FrameRepl:           "Repl",
	} {
		if k.Has(bit) {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Priority is the dequeue lane a task is submitted to.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityNext
)

func (p Priority) String() string {
	if p == PriorityNext {
		return "Next"
	}
	return "Normal"
}

// ExecutionOptions is the immutable record carried by every submitted task.
type ExecutionOptions struct {
	Priority                   Priority
	MustRunInForeground        bool
	InterruptCurrentForeground bool

	// Command-only flags; ignored for delegate tasks.
	WriteOutputToHost bool
	WriteInputToHost  bool
	ThrowOnError      bool
	AddToHistory      bool
}

// Validate enforces the one cross-field invariant spec.md §3 calls out:
// interrupt-current-foreground implies Next + foreground.
func (o ExecutionOptions) Validate() error {
	if o.InterruptCurrentForeground {
		if o.Priority != PriorityNext {
			return ErrInvalidOptions{Reason: "interruptCurrentForeground requires Priority=Next"}
		}
		if !o.MustRunInForeground {
			return ErrInvalidOptions{Reason: "interruptCurrentForeground requires MustRunInForeground"}
		}
	}
	return nil
}

// ErrInvalidOptions is returned by Validate and at submission time.
type ErrInvalidOptions struct{ Reason string }

func (e ErrInvalidOptions) Error() string { return "submission-invalid: " + e.Reason }

// TaskState is the lifecycle state of a Task.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskRunning
	TaskCompleted
	TaskFaulted
	TaskCanceled
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFaulted:
		return "faulted"
	case TaskCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// FailureKind classifies why a task's promise was rejected, per spec.md §7.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureSubmissionInvalid
	FailureExecutionCancelled
	FailureEngineRuntime
	FailureEngineFatal
	FailureBreakpointInvalid
	FailureExpressionInvalid
	FailureRemotePathUnmapped
)

func (k FailureKind) String() string {
	switch k {
	case FailureSubmissionInvalid:
		return "submission-invalid"
	case FailureExecutionCancelled:
		return "execution-cancelled"
	case FailureEngineRuntime:
		return "engine-runtime"
	case FailureEngineFatal:
		return "engine-fatal"
	case FailureBreakpointInvalid:
		return "breakpoint-invalid"
	case FailureExpressionInvalid:
		return "expression-invalid"
	case FailureRemotePathUnmapped:
		return "remote-path-unmapped"
	default:
		return "none"
	}
}

// ResumeAction is the stepping command delegated to the debugger (§4.7.4).
type ResumeAction int

const (
	ResumeContinue ResumeAction = iota
	ResumeStepOver
	ResumeStepIn
	ResumeStepOut
	ResumeBreak
	ResumeStop
)

func (a ResumeAction) String() string {
	switch a {
	case ResumeContinue:
		return "continue"
	case ResumeStepOver:
		return "stepOver"
	case ResumeStepIn:
		return "stepIn"
	case ResumeStepOut:
		return "stepOut"
	case ResumeBreak:
		return "break"
	case ResumeStop:
		return "stop"
	default:
		return "unknown"
	}
}

// PresentationHint is the UI hint attached to a stack frame.
type PresentationHint int

const (
	PresentationNormal PresentationHint = iota
	PresentationLabel
	PresentationSubtle
)

func (h PresentationHint) String() string {
	switch h {
	case PresentationLabel:
		return "label"
	case PresentationSubtle:
		return "subtle"
	default:
		return "normal"
	}
}

// LineBreakpoint is one breakpoint set on a specific file+line (§3).
type LineBreakpoint struct {
	ID        int
	File      string
	Line      int
	Column    int // 0 = unset
	Condition string
	HitCount  int // 0 = unset
	Verified  bool
	Message   string
}

// Key identifies a LineBreakpoint by its unique (file, line, column) tuple.
func (b LineBreakpoint) Key() string {
	return b.File + ":" + itoa(b.Line) + ":" + itoa(b.Column)
}

// CommandBreakpoint is a breakpoint on a named command, spanning all files (§3).
type CommandBreakpoint struct {
	ID        int
	Name      string
	Condition string
	HitCount  int
	Verified  bool
	Message   string
}

// StackFrame is captured only while the debugger is stopped (§3).
type StackFrame struct {
	ID               int
	ScriptPath       string
	FunctionName     string
	StartLine        int
	StartColumn      int
	EndLine          int
	EndColumn        int
	PresentationHint PresentationHint
}

// VariableContainer is a flat-indexed, monotonically id'd scope or
// expansion node (§3). Children are populated lazily on first expansion.
type VariableContainer struct {
	ID          int
	DisplayName string
	Expandable  bool
	Children    []int // ids into the owning table; nil until expanded
	expanded    bool
}

// Expanded reports whether Children has been computed at least once.
func (c *VariableContainer) Expanded() bool { return c.expanded }

// MarkExpanded records that children have been computed (possibly empty).
func (c *VariableContainer) MarkExpanded() { c.expanded = true }

// VariableDetail is one named value inside a container (§3).
type VariableDetail struct {
	ID           int
	Name         string
	ValueString  string
	IsExpandable bool
	ChildrenID   int // 0 = no child container allocated yet
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
