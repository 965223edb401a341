// Package repl implements the REPL Coordinator of spec.md §4.6: the
// prompt -> read-line -> evaluate cycle, run as a stack of REPL tasks
// (one per nested prompt depth), Ctrl-C handling, and the idle-drain
// hookup that lets background tasks run while a REPL task blocks on
// user input.
package repl

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/scripthost/enginehost/internal/debug"
	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/executor"
	"github.com/scripthost/enginehost/internal/frame"
	"github.com/scripthost/enginehost/internal/task"
	"github.com/scripthost/enginehost/internal/types"
)

// intrinsicDebuggerVerbs is the exact token set spec.md §4.4 step 2
// names: when the debugger is stopped, a command matching one of these
// (case-insensitively) is routed through the debugger command channel
// instead of run as a plain script.
var intrinsicDebuggerVerbs = map[string]bool{
	"continue": true, "c": true,
	"k": true, "h": true, "?": true,
	"list": true, "l": true,
	"stepinto": true, "s": true,
	"stepout": true, "o": true,
	"stepover": true, "v": true,
	"quit": true, "q": true,
	"detach": true, "d": true,
}

// Coordinator runs the REPL loop described by spec.md §4.6. One
// Coordinator exists per Session; RunLoop is called once per nested
// prompt depth (top-level, nested prompt, debug prompt), each time
// against the frame the caller has already pushed.
type Coordinator struct {
	ex       *executor.Executor
	debugSvc *debug.Service
	host     *Host
	hist     *History
	provider Provider
	remote   bool

	lastCtrlC atomic.Bool
}

// New creates a Coordinator. remote marks whether the current runspace is
// remote, which (per spec.md §4.4 step 2) routes *every* command through
// the debugger channel while stopped, not just the intrinsic verbs.
func New(ex *executor.Executor, debugSvc *debug.Service, host *Host, hist *History, provider Provider, remote bool) *Coordinator {
	c := &Coordinator{ex: ex, debugSvc: debugSvc, host: host, hist: hist, provider: provider, remote: remote}
	provider.OverrideReadKey(func(key rune) {
		c.lastCtrlC.Store(key == 3) // ASCII ETX, Ctrl-C
	})
	if !provider.TryOverrideIdleHandler(c.onIdle) {
		// Provider blocks in an uninterruptible read and never calls onIdle,
		// so the REPL drains no background tasks with this provider.
	}
	return c
}

// onIdle implements spec.md §4.6's idle hookup: push a non-interactive
// frame over the current one and drain the background deque without
// blocking, then pop.
func (c *Coordinator) onIdle() {
	cur, ok := c.ex.CurrentFrame()
	if !ok {
		return
	}
	idle := frame.NewFrame(context.Background(), cur.Engine, types.FrameNonInteractive)
	c.ex.Frames().Push(idle)
	c.ex.IdleDrain(idle)
	c.ex.Frames().Pop()
}

// RunLoop runs the prompt/read-line/evaluate cycle against f until f is
// flagged session-exiting, ctx is cancelled, or a command's cancellation
// breaks the loop (spec.md §4.6's "if REPL task is cancelled: break").
func (c *Coordinator) RunLoop(ctx context.Context, f *frame.Frame) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if f.SessionExiting {
			return nil
		}

		promptText := c.runPrompt(ctx)
		c.host.WritePrompt(promptText)
		if tp, ok := c.provider.(*TerminalProvider); ok {
			tp.SetPrompt("")
		}

		line, err := c.provider.ReadLine(ctx)
		if errors.Is(err, ErrCtrlC) {
			if strings.TrimSpace(line) == "" {
				c.host.WriteBlankLine()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cancelled := c.runLine(ctx, line)
		if cancelled {
			return context.Canceled
		}
	}
}

// runPrompt executes the engine's `prompt` command as a task and returns
// its text, falling back to a plain prompt if the command errors —
// prompt failures must never stop the REPL.
func (c *Coordinator) runPrompt(ctx context.Context) string {
	res := c.submit(ctx, "prompt()", types.ExecutionOptions{MustRunInForeground: true})
	if res.Err != nil {
		return "> "
	}
	if s, ok := res.Value.(string); ok && s != "" {
		return s
	}
	return "> "
}

// runLine executes one user-entered line with write-output-to-host and
// add-to-history set (spec.md §4.6), records it to history, and reports
// whether the REPL task was cancelled.
func (c *Coordinator) runLine(ctx context.Context, line string) (cancelled bool) {
	opts := types.ExecutionOptions{MustRunInForeground: true, WriteOutputToHost: true, AddToHistory: true}
	res := c.submit(ctx, line, opts)

	status := "completed"
	switch {
	case res.FailureKind == types.FailureExecutionCancelled:
		status = "canceled"
		cancelled = true
	case res.Err != nil:
		status = "faulted"
	}
	if opts.AddToHistory {
		c.hist.Record(line, status, res.Err)
	}

	if res.Err != nil {
		if !opts.ThrowOnError {
			c.host.WriteError(res.Err.Error())
		}
		return cancelled
	}
	if opts.WriteOutputToHost {
		if s, ok := res.Value.(string); ok && s != "" {
			c.host.WriteOutput(s)
		}
	}
	return cancelled
}

// submit wraps command in a command task, submits it to the executor, and
// waits for its promise.
func (c *Coordinator) submit(ctx context.Context, command string, opts types.ExecutionOptions) task.Result {
	t := task.NewCommand(command, opts, command, c.executeCommand)
	c.ex.Submit(t)
	res, waitErr := t.Promise().Wait(ctx)
	if waitErr != nil {
		return task.Result{Err: waitErr, FailureKind: types.FailureExecutionCancelled}
	}
	return res
}

// executeCommand is the command task body, implementing spec.md §4.4
// steps 1-5. It runs on the pipeline thread.
func (c *Coordinator) executeCommand(ctx context.Context, h *engine.Handle, command string) (interface{}, error) {
	child := frame.NewFrame(ctx, h, types.FrameNormal)
	c.ex.Frames().Push(child)
	defer c.ex.Frames().Pop()

	verb := strings.ToLower(strings.TrimSpace(command))
	if c.debugSvc.IsStopped() && (intrinsicDebuggerVerbs[verb] || c.remote) {
		return c.invokeDebuggerVerb(verb, h, command)
	}

	val, err := h.RunScript(command)
	if err != nil && ctx.Err() != nil {
		_ = c.debugSvc.HandleCancelWhileStopped(c.remote, func() bool { return c.stillInBreakpoint(h) })
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return engine.ValueString(val), nil
}

// invokeDebuggerVerb routes an intrinsic debugger command (or, on a
// remote runspace, any command while stopped) through the debug service
// so the resume-action result is observable (spec.md §4.4 step 2).
func (c *Coordinator) invokeDebuggerVerb(verb string, h *engine.Handle, command string) (interface{}, error) {
	switch verb {
	case "continue", "c":
		return nil, c.debugSvc.Continue()
	case "stepover", "v":
		return nil, c.debugSvc.StepOver()
	case "stepinto", "s":
		return nil, c.debugSvc.StepIn()
	case "stepout", "o":
		return nil, c.debugSvc.StepOut()
	case "quit", "q", "detach", "d":
		return nil, c.debugSvc.Abort()
	case "list", "l", "k", "h", "?":
		val, err := h.RunScript(command)
		if err != nil {
			return nil, err
		}
		return engine.ValueString(val), nil
	default:
		// Remote session, non-intrinsic command while stopped: the engine
		// evaluates it in the debugger's scope; this repo's simulated
		// engine has no separate debugger scope, so it runs normally.
		val, err := h.RunScript(command)
		if err != nil {
			return nil, err
		}
		return engine.ValueString(val), nil
	}
}

// stillInBreakpoint implements the reentrant "still in breakpoint?" probe
// of spec.md §4.4 step 4 / §9: read the __inBreakpoint marker the debug
// loop sets true on entry and clears on exit (internal/session/
// breakpoints.go's stopAndWaitForResume).
func (c *Coordinator) stillInBreakpoint(h *engine.Handle) bool {
	v, ok := h.GlobalRaw("__inBreakpoint")
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
