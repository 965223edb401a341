package session

import (
	"context"

	"github.com/scripthost/enginehost/internal/debug"
	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/executor"
	"github.com/scripthost/enginehost/internal/frame"
	"github.com/scripthost/enginehost/internal/types"
)

// breakpointCheckGlobal is the name a compiled action block's `__break()`
// call reaches through a running script to report "stop here" back to Go.
// installBreakCheck binds it on h so any script this session runs can
// report a breakpoint hit the way the debug service's action compiler
// expects (internal/debug/breakpoints.go's ShouldBreak installs the
// per-call `__break` flag; this is the outer hook a script calls with the
// breakpoint's id to ask whether to stop at all).
const breakpointCheckGlobal = "__checkBreakpoint"

// scriptPathGlobal is the reserved global a running script sets before
// calling __checkBreakpoint so the captured stop can report a ScriptPath.
const scriptPathGlobal = "__scriptPath"

// installBreakCheck binds __checkBreakpoint(id) on h: evaluate the
// breakpoint's compiled condition/hit-count action, and if it signals a
// stop, capture the current (script-level) frame and run a nested debug
// loop on the pipeline thread until a stepping command resumes it. The
// call happens synchronously from inside whatever task is running h.RunScript
// — since that call is already running on the pipeline thread, entering
// RunDebugLoop here just continues the same thread's loop one level
// deeper, exactly like the nested-prompt case spec.md §4.6 describes.
func installBreakCheck(ex *executor.Executor, dbg *debug.Service, h *engine.Handle) {
	h.SetGlobal(breakpointCheckGlobal, func(id int) {
		if !dbg.Breakpoints.ShouldBreak(h, id) {
			return
		}
		stopAndWaitForResume(ex, dbg, h)
	})
}

// stopAndWaitForResume implements the breakpoint-hit half of spec.md
// §4.7.2/§4.7.4: capture the stop, push a Debug frame, block the pipeline
// thread in a nested loop until resumed, then unwind.
func stopAndWaitForResume(ex *executor.Executor, dbg *debug.Service, h *engine.Handle) {
	cur, ok := ex.CurrentFrame()
	if !ok {
		return
	}

	scriptPath, _ := h.GlobalRaw(scriptPathGlobal)
	path, _ := scriptPath.(string)

	dbg.CaptureStop(h, []debug.FrameSnapshot{{
		ScriptPath:   path,
		FunctionName: "<script>",
		Locals:       globalLocals(h),
	}})

	h.SetGlobal("__inBreakpoint", true)
	debugFrame := frame.NewFrame(cur.Context(), h, types.FrameDebug)
	ex.Frames().Push(debugFrame)

	resumedCtx, resumeCancel := context.WithCancel(context.Background())
	dbg.SetResumeFunc(func(types.ResumeAction) error {
		resumeCancel()
		return nil
	})

	ex.RunDebugLoop(debugFrame, resumedCtx)

	ex.Frames().Pop()
	h.ClearGlobal("__inBreakpoint")
	dbg.SetResumeFunc(func(action types.ResumeAction) error { return defaultResume(ex, action) })
}

// globalLocals snapshots every user-visible global as the single script-
// level frame's locals — this repo's simulated engine has no per-function
// call stack, so "the current frame" is always the top-level script scope.
func globalLocals(h *engine.Handle) map[string]interface{} {
	out := make(map[string]interface{})
	for _, name := range h.GlobalNames() {
		if v, ok := h.GlobalRaw(name); ok {
			out[name] = v
		}
	}
	return out
}

// defaultResume is the session-wide stepping delegate installed outside of
// an active breakpoint stop: stepping commands just unblock whatever
// foreground task is currently running (spec.md §4.7.4's "delegates to the
// frame's debugger" when there is no nested debug loop to resume).
func defaultResume(ex *executor.Executor, action types.ResumeAction) error {
	if action == types.ResumeStop || action == types.ResumeBreak {
		return nil
	}
	ex.CancelCurrentTask()
	return nil
}
