// Package executor implements the Pipeline Thread Executor of spec.md §4.5:
// a single dedicated goroutine, pinned to one OS thread for the process
// lifetime, that owns the engine and runs one of three loops (top-level,
// nested, debug) chosen by the current frame. All other goroutines are
// producers that submit work through Submit and never call the engine
// directly.
package executor

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/scripthost/enginehost/internal/cancelctx"
	"github.com/scripthost/enginehost/internal/deque"
	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/events"
	"github.com/scripthost/enginehost/internal/frame"
	"github.com/scripthost/enginehost/internal/task"
	"github.com/scripthost/enginehost/internal/types"
)

// pipelineOwner is the single-writer token every pipeline thread in the
// process claims; engine.SetDefault accepts exactly one owner token.
const pipelineOwner uintptr = 1

// Executor owns the pipeline thread: its frame stack, its foreground and
// background deques, and the nested cancellation-scope stack loop
// iterations and task executions enter and exit from.
type Executor struct {
	frames *frame.Stack
	bus    *events.Bus
	logger *log.Logger

	fg *deque.Deque[*task.Task]
	bg *deque.Deque[*task.Task]

	scopes *cancelctx.Stack

	ownerToken uintptr

	threadCtx    context.Context
	threadCancel context.CancelFunc

	stopped chan struct{}
	once    sync.Once
}

// New creates an Executor bound to frames and bus. bus is also used for
// log-worthy lifecycle notifications (executionStatusChanged).
func New(frames *frame.Stack, bus *events.Bus, logger *log.Logger) *Executor {
	threadCtx, cancel := context.WithCancel(context.Background())
	return &Executor{
		frames:       frames,
		bus:          bus,
		logger:       logger,
		fg:           deque.New[*task.Task](),
		bg:           deque.New[*task.Task](),
		scopes:       cancelctx.NewStack(),
		ownerToken:   pipelineOwner,
		threadCtx:    threadCtx,
		threadCancel: cancel,
		stopped:      make(chan struct{}),
	}
}

// OwnerToken is the single-writer token this executor's pipeline thread
// claims on every engine handle it touches (spec.md §9).
func (e *Executor) OwnerToken() uintptr { return e.ownerToken }

// Start pushes an initial top-level frame owning handle and spawns the
// pipeline thread goroutine, pinned to its OS thread for the process
// lifetime via runtime.LockOSThread.
func (e *Executor) Start(handle *engine.Handle) {
	handle.Claim(e.ownerToken)
	engine.SetDefault(e.ownerToken, handle)

	top := frame.NewFrame(e.threadCtx, handle, types.FrameNormal|types.FrameRepl)
	e.frames.Push(top)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(e.stopped)
		e.topLevelLoop()
	}()
}

// Stop cancels the thread-stop token; the top-level loop exits on its next
// scheduling point.
func (e *Executor) Stop() {
	e.once.Do(e.threadCancel)
}

// Stopped returns a channel closed once the pipeline thread goroutine has
// returned.
func (e *Executor) Stopped() <-chan struct{} { return e.stopped }

// Submit enqueues t per its ExecutionOptions and returns its promise.
// Invalid option combinations are rejected at submission (spec.md §7
// "Submission-invalid") without ever reaching the pipeline thread.
func (e *Executor) Submit(t *task.Task) *task.Promise {
	if err := t.Options.Validate(); err != nil {
		t.Promise().Fulfill(task.Result{Err: err, FailureKind: types.FailureSubmissionInvalid})
		return t.Promise()
	}

	if t.Options.InterruptCurrentForeground {
		e.injectPreempting(t)
		return t.Promise()
	}

	target := e.fg
	if !t.Options.MustRunInForeground {
		target = e.bg
	}
	if t.Options.Priority == types.PriorityNext {
		target.Prepend(t)
	} else {
		target.Append(t)
	}
	return t.Promise()
}

// injectPreempting implements spec.md §4.5's guarantee that an
// interrupt-current-foreground task is the very next task to run on the
// foreground lane, with no intervening task: engage the gate, cancel the
// current per-command scope, prepend, release.
func (e *Executor) injectPreempting(t *task.Task) {
	lt := e.fg.BlockConsumers()
	e.scopes.CancelCurrentTask()
	e.fg.Prepend(t)
	lt.Release()
}

// CancelCurrentTask cancels the innermost (per-command) cancellation
// scope — the console's Ctrl-C handler calls this directly.
func (e *Executor) CancelCurrentTask() { e.scopes.CancelCurrentTask() }

// CancelCurrentTaskStack cancels every scope on the executor's
// cancellation stack (loop-scope and per-command alike).
func (e *Executor) CancelCurrentTaskStack() { e.scopes.CancelCurrentTaskStack() }

// CurrentFrame returns the frame currently on top of the stack.
func (e *Executor) CurrentFrame() (*frame.Frame, bool) { return e.frames.Peek() }

// Frames exposes the underlying frame stack for callers (debug service,
// REPL) that need to push/pop nested frames themselves.
func (e *Executor) Frames() *frame.Stack { return e.frames }

// Background exposes the background deque so non-foreground submissions
// can be observed/drained by the idle loop.
func (e *Executor) Background() *deque.Deque[*task.Task] { return e.bg }

// log is a no-op-safe wrapper; Executor may be constructed with a nil
// logger in tests.
func (e *Executor) log(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// ---- loops ----

// topLevelLoop consumes foreground tasks until the thread-stop token
// fires (spec.md §4.5).
func (e *Executor) topLevelLoop() {
	for {
		if e.threadCtx.Err() != nil {
			return
		}
		cur, ok := e.frames.Peek()
		if !ok {
			return
		}
		if !e.runOneIteration(cur, e.threadCtx) {
			return
		}
	}
}

// RunNestedLoop consumes foreground tasks until f.SessionExiting is set,
// i.e. until the frame is popped with that flag (spec.md §4.6's nested
// REPL prompt loops reuse this).
func (e *Executor) RunNestedLoop(f *frame.Frame) {
	for {
		if e.threadCtx.Err() != nil || f.SessionExiting {
			return
		}
		if f.Context().Err() != nil {
			return
		}
		if !e.runOneIteration(f, e.threadCtx) {
			return
		}
	}
}

// RunDebugLoop is like RunNestedLoop, but take is additionally cancellable
// by debuggerResumed; after each task, if that token fired, the loop
// exits (spec.md §4.5). A debugger-resume never cancels the task
// currently running — only the *next* take is interrupted.
func (e *Executor) RunDebugLoop(f *frame.Frame, debuggerResumed context.Context) {
	for {
		if e.threadCtx.Err() != nil || f.Context().Err() != nil {
			return
		}
		if debuggerResumed.Err() != nil {
			return
		}
		loopParent := cancelctx.Merge(f.Context(), debuggerResumed)
		if !e.runOneIteration(f, cancelctx.Merge(e.threadCtx, loopParent)) {
			return
		}
		if debuggerResumed.Err() != nil {
			return
		}
	}
}

// IdleDrain drains the background deque without blocking, returning once
// it is empty (spec.md §4.5 "Idle" loop). Callers must have already
// pushed a non-interactive frame — background tasks are never interleaved
// with a foreground task because the idle loop runs in that frame.
func (e *Executor) IdleDrain(f *frame.Frame) {
	for {
		t, ok := e.bg.TryTake()
		if !ok {
			return
		}
		e.executeTask(f, t)
	}
}

// runOneIteration enters one loop-scope (composed of the frame's own
// cancellation and loopParent), takes one foreground task, runs it inside
// a nested per-command scope, and returns false when the loop should
// exit (take was cancelled).
func (e *Executor) runOneIteration(f *frame.Frame, loopParent context.Context) bool {
	loopScope := e.scopes.EnterScope(f.Context(), loopParent)
	defer e.scopes.ExitScope(loopScope)

	t, err := e.fg.Take(loopScope.Context())
	if err != nil {
		return false
	}
	e.executeTask(f, t)
	return true
}

// executeTask runs t inside a fresh per-command scope nested under the
// executor's current scope stack top, handling the runspace-failure
// policy if the task reports the engine handle is unusable.
func (e *Executor) executeTask(f *frame.Frame, t *task.Task) {
	cmdScope := e.scopes.EnterScope(f.Context())
	defer e.scopes.ExitScope(cmdScope)

	f.Engine.Claim(e.ownerToken)
	e.bus.Publish(events.Event{Kind: events.KindExecutionStatus, Payload: "running"})
	t.ExecuteSynchronously(cmdScope.Context(), f.Engine)
	e.bus.Publish(events.Event{Kind: events.KindExecutionStatus, Payload: "completed"})

	if t.State() == types.TaskFaulted {
		res := t.Promise().Result()
		if res.FailureKind == types.FailureEngineFatal {
			e.handleRunspaceFailure(res.Err)
		}
	}
}

// handleRunspaceFailure implements spec.md §4.5's runspace failure policy:
// pop the top frame; if that leaves the stack empty, reinitialize the engine,
// push a fresh top-level frame and log a single line to the executor's
// logger. The frames left below the popped one are not checked for
// usability.
func (e *Executor) handleRunspaceFailure(cause error) {
	target := e.frames.Depth() - 1
	if target < 0 {
		target = 0
	}
	e.frames.TryPopToDepth(target)

	if e.frames.Depth() > 0 {
		return
	}

	handle, ok := e.recoverableHandle()
	if !ok {
		return
	}
	handle.Reinit()
	engine.SetDefault(e.ownerToken, handle)
	top := frame.NewFrame(e.threadCtx, handle, types.FrameNormal|types.FrameRepl)
	e.frames.Push(top)
	e.log("enginehost: runspace became unusable (%v); reinitialized engine", cause)
}

// recoverableHandle returns the handle to reinitialize when the frame
// stack has gone empty. It is the same handle the executor was started
// with; callers that tear down a Session entirely never reach this path.
func (e *Executor) recoverableHandle() (*engine.Handle, bool) {
	h := engine.Default()
	if h == nil {
		return nil, false
	}
	return h, true
}

// String implements fmt.Stringer for debugging/log lines.
func (e *Executor) String() string {
	return fmt.Sprintf("executor{fg=%d bg=%d depth=%d}", e.fg.Len(), e.bg.Len(), e.frames.Depth())
}
