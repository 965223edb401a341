// Package task implements the Synchronous Task of spec.md §4.4: a unit of
// work in one of three shapes (engine delegate, cancellation-only delegate,
// engine-command invocation) modeled as a single tagged union with one
// execute(ctx) operation, each carrying execution options, a result
// promise, and its own cancellation token. The task runs synchronously on
// whatever goroutine calls ExecuteSynchronously — the executor guarantees
// that is always the pipeline thread.
package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/scripthost/enginehost/internal/cancelctx"
	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/types"
)

// Shape tags which of the three bodies a Task carries, for logging and
// scheduling decisions (e.g. the debugger-verb check in §4.4 step 2 only
// applies to Shape == Command).
type Shape int

const (
	ShapeEngineDelegate Shape = iota
	ShapeCancelDelegate
	ShapeCommand
)

func (s Shape) String() string {
	switch s {
	case ShapeEngineDelegate:
		return "engineDelegate"
	case ShapeCancelDelegate:
		return "cancelDelegate"
	case ShapeCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Body is the single operation every task shape reduces to.
type Body func(ctx context.Context, h *engine.Handle) (interface{}, error)

// Result is what a Task's promise is fulfilled with.
type Result struct {
	Value       interface{}
	Err         error
	FailureKind types.FailureKind
}

// Promise is fulfilled exactly once, from the pipeline thread, by whichever
// path the task's execution takes (success, cancellation, or failure).
type Promise struct {
	done   chan struct{}
	once   sync.Once
	result Result
}

// NewPromise creates an unfulfilled promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Fulfill completes the promise. Additional calls are no-ops — "fulfilled
// exactly once" (spec.md §3).
func (p *Promise) Fulfill(r Result) {
	p.once.Do(func() {
		p.result = r
		close(p.done)
	})
}

// Done returns a channel closed once the promise is fulfilled.
func (p *Promise) Done() <-chan struct{} { return p.done }

// Wait blocks until the promise is fulfilled or ctx is cancelled first.
func (p *Promise) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the fulfilled result immediately; callers must have
// already observed Done() closed.
func (p *Promise) Result() Result { return p.result }

// Task is one unit of work submitted to the pipeline thread.
type Task struct {
	Representation string
	Options        types.ExecutionOptions
	Shape          Shape
	Command        string // non-empty only for ShapeCommand

	state   atomic.Int32 // types.TaskState
	promise *Promise
	ownCtx  context.Context
	cancel  context.CancelFunc
	body    Body
}

func newTask(repr string, opts types.ExecutionOptions, shape Shape, command string, body Body) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		Representation: repr,
		Options:        opts,
		Shape:          shape,
		Command:        command,
		promise:        NewPromise(),
		ownCtx:         ctx,
		cancel:         cancel,
		body:           body,
	}
	t.state.Store(int32(types.TaskPending))
	return t
}

// NewEngineDelegate creates a task whose body receives the current engine
// handle directly.
func NewEngineDelegate(repr string, opts types.ExecutionOptions, fn func(ctx context.Context, h *engine.Handle) (interface{}, error)) *Task {
	return newTask(repr, opts, ShapeEngineDelegate, "", Body(fn))
}

// NewCancelDelegate creates a task whose body only needs a cancellation
// token, not the engine handle (e.g. a pure wait/sleep helper).
func NewCancelDelegate(repr string, opts types.ExecutionOptions, fn func(ctx context.Context) (interface{}, error)) *Task {
	return newTask(repr, opts, ShapeCancelDelegate, "", func(ctx context.Context, _ *engine.Handle) (interface{}, error) {
		return fn(ctx)
	})
}

// NewCommand creates an engine-command invocation task. fn is supplied by
// the executor/REPL layer and implements §4.4 steps 1–5 (push frame,
// debugger-verb routing, invoke, error handling, pop frame) — the task
// package itself stays free of frame-stack and debug-service dependencies.
func NewCommand(repr string, opts types.ExecutionOptions, command string, fn func(ctx context.Context, h *engine.Handle, command string) (interface{}, error)) *Task {
	return newTask(repr, opts, ShapeCommand, command, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		return fn(ctx, h, command)
	})
}

// Promise returns the task's result promise.
func (t *Task) Promise() *Promise { return t.promise }

// State returns the task's current lifecycle state.
func (t *Task) State() types.TaskState { return types.TaskState(t.state.Load()) }

// CancelToken returns the task's own caller-supplied cancellation context.
func (t *Task) CancelToken() context.Context { return t.ownCtx }

// Cancel cancels the task's own token. If the task has not yet been
// dequeued, ExecuteSynchronously will observe it already cancelled and
// drop it without touching the engine (spec.md §5 "cancellation before
// dequeue").
func (t *Task) Cancel() { t.cancel() }

// ExecuteSynchronously composes the task's own token with threadCt, runs
// the body, and fulfills the promise with success, cancellation, or
// failure. Must only ever be called from the pipeline thread.
func (t *Task) ExecuteSynchronously(threadCt context.Context, h *engine.Handle) {
	if t.ownCtx.Err() != nil {
		t.state.Store(int32(types.TaskCanceled))
		t.promise.Fulfill(Result{Err: t.ownCtx.Err(), FailureKind: types.FailureExecutionCancelled})
		return
	}

	t.state.Store(int32(types.TaskRunning))
	runCtx := cancelctx.Merge(t.ownCtx, threadCt)

	value, err := t.runBodyRecovered(runCtx, h)

	if err != nil {
		if runCtx.Err() != nil {
			t.state.Store(int32(types.TaskCanceled))
			t.promise.Fulfill(Result{Err: err, FailureKind: types.FailureExecutionCancelled})
			return
		}
		if fatal, ok := err.(*FatalEngineError); ok {
			t.state.Store(int32(types.TaskFaulted))
			t.promise.Fulfill(Result{Err: fatal.Err, FailureKind: types.FailureEngineFatal})
			return
		}
		t.state.Store(int32(types.TaskFaulted))
		t.promise.Fulfill(Result{Err: err, FailureKind: types.FailureEngineRuntime})
		return
	}

	t.state.Store(int32(types.TaskCompleted))
	t.promise.Fulfill(Result{Value: value})
}

// runBodyRecovered guards against a panicking body (foreign engine code)
// taking the pipeline thread down with it (spec.md §5 ambient safety net).
func (t *Task) runBodyRecovered(ctx context.Context, h *engine.Handle) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Recovered: r}
		}
	}()
	return t.body(ctx, h)
}

// FatalEngineError marks a task failure as runspace-fatal: the engine
// handle is unusable and the executor must run its recovery policy
// (spec.md §4.5, §7 "Engine-fatal").
type FatalEngineError struct{ Err error }

func (e *FatalEngineError) Error() string { return "engine-fatal: " + e.Err.Error() }
func (e *FatalEngineError) Unwrap() error { return e.Err }

// PanicError wraps a recovered panic from a task body as an Engine-runtime
// failure rather than crashing the pipeline thread.
type PanicError struct{ Recovered interface{} }

func (e *PanicError) Error() string {
	return "task body panicked: " + formatPanic(e.Recovered)
}

func formatPanic(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "non-string panic value"
}
