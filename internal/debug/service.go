// Package debug implements the Debug Service of spec.md §4.7: breakpoint
// registry, stack-frame and variable capture on stop, variable
// expansion/assignment, stepping, and the remote-file mirroring a stop
// needs when the engine reports no script name.
package debug

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/events"
	"github.com/scripthost/enginehost/internal/remotefs"
	"github.com/scripthost/enginehost/internal/types"
)

// Reserved container ids below the monotonic floor (spec.md §4.7.2 step 2):
// 0 is the dummy slot, 1/2 are the process-wide global/script scopes, and
// 3..3+N-1 are the per-frame auto scopes of the N frames captured at this
// stop.
const (
	idDummy  = 0
	idGlobal = 1
	idScript = 2
	autoBase = 3
)

// ScriptListingHost names the host in the temporary "Script Listing" file
// pattern (spec.md §6 "Persisted state").
const ScriptListingHost = "enginehost"

// EngineExtension is this repo's engine file extension for the temporary
// listing name pattern.
const EngineExtension = ".eng"

// debugContextVar is the literal $PSDebugContext name, always excluded from
// the auto-variable view (spec.md §4.7.2 step 4). The engine's own
// equivalent global, engine.DebugContextName, is skipped as a reserved name.
const debugContextVar = "$PSDebugContext"

// FrameSnapshot is what the executor hands the debug service when the
// engine reports a debugger stop: one entry per call-stack frame, deepest
// first is not required — frame 0 is the top (current) frame.
type FrameSnapshot struct {
	ScriptPath   string // "" if the engine has no script name for this frame
	FunctionName string
	StartLine    int
	StartColumn  int
	EndLine      int
	EndColumn    int
	Locals       map[string]interface{} // name (e.g. "$i") -> raw value
}

type frameScopes struct {
	Auto, Local, Script, Global int
}

// Service is the process-wide debug service: one Registry of breakpoints,
// plus the variable table and stack frames captured at the most recent
// stop (nil/empty while the engine is running).
type Service struct {
	Breakpoints *Registry

	mirror        *remotefs.Mirror
	bus           *events.Bus
	logger        *log.Logger
	workspaceRoot string
	runspaceID    string

	// ListingFn produces the source text materialized into the temporary
	// "Script Listing" file when a stop has no script name (spec.md §4.7.2
	// step 1). Defaults to a fixed placeholder if nil.
	ListingFn func(h *engine.Handle) string

	// resumeFn delegates a stepping command to the frame's debugger
	// (spec.md §4.7.4); wired by the session composition root.
	resumeFn func(types.ResumeAction) error

	mu            sync.Mutex
	table         *Table
	stackFrames   []types.StackFrame
	scopesByFrame map[int]frameScopes
}

// NewService creates a Service. workspaceRoot is used to compute the
// Subtle presentation hint (spec.md §4.7.2 step 5); runspaceID scopes the
// remote-file mirror.
func NewService(mirror *remotefs.Mirror, bus *events.Bus, logger *log.Logger, workspaceRoot, runspaceID string) *Service {
	return &Service{
		Breakpoints:   NewRegistry(bus, mirror, logger),
		mirror:        mirror,
		bus:           bus,
		logger:        logger,
		workspaceRoot: workspaceRoot,
		runspaceID:    runspaceID,
	}
}

// SetResumeFunc wires the stepping commands to the frame's debugger.
func (s *Service) SetResumeFunc(fn func(types.ResumeAction) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeFn = fn
}

func (s *Service) log(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// CaptureStop implements spec.md §4.7.2: resets the variable table,
// allocates the reserved/auto/local containers for every frame, and
// returns the resulting stack frames. Must only be called from the
// pipeline thread (it reads h's live scope maps directly).
func (s *Service) CaptureStop(h *engine.Handle, frames []FrameSnapshot) []types.StackFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	floor := autoBase + len(frames)
	table := NewTable(floor)
	globalRaw := h.GlobalScope()
	table.RegisterReserved(idGlobal, "Global", globalRaw)
	table.RegisterReserved(idScript, "Script", h.ScriptScope())

	var listingPath string
	stackFrames := make([]types.StackFrame, 0, len(frames))
	scopes := make(map[int]frameScopes, len(frames))

	for i, snap := range frames {
		scriptPath := snap.ScriptPath
		if scriptPath == "" {
			if listingPath == "" {
				listingPath = s.materializeListing(h)
			}
			scriptPath = listingPath
		}

		autoRaw := classifyAuto(snap.Locals, globalRaw)
		table.RegisterReserved(autoBase+i, "Auto", autoRaw)
		localID := table.NewContainer("Local", snap.Locals)
		scopes[i] = frameScopes{Auto: autoBase + i, Local: localID, Script: idScript, Global: idGlobal}

		hint := types.PresentationNormal
		if s.workspaceRoot != "" && scriptPath != "" && !strings.HasPrefix(scriptPath, s.workspaceRoot) {
			hint = types.PresentationSubtle
		}
		stackFrames = append(stackFrames, types.StackFrame{
			ID:               i,
			ScriptPath:       scriptPath,
			FunctionName:     snap.FunctionName,
			StartLine:        snap.StartLine,
			StartColumn:      snap.StartColumn,
			EndLine:          snap.EndLine,
			EndColumn:        snap.EndColumn,
			PresentationHint: hint,
		})
	}

	s.table = table
	s.stackFrames = stackFrames
	s.scopesByFrame = scopes

	s.bus.Publish(events.Event{Kind: events.KindDebuggerStop, Payload: len(stackFrames)})
	return append([]types.StackFrame(nil), stackFrames...)
}

// materializeListing implements spec.md §4.7.2 step 1: run the engine's
// `list` equivalent and write it to the remote-file mirror under the
// "[<host>] Script Listing.<ext>" name pattern. Must be called with mu
// held.
func (s *Service) materializeListing(h *engine.Handle) string {
	content := "<no source available>\n"
	if s.ListingFn != nil {
		content = s.ListingFn(h)
	}
	if s.mirror == nil {
		return ""
	}
	name := fmt.Sprintf("[%s] Script Listing%s", ScriptListingHost, EngineExtension)
	path, err := s.mirror.CreateTemporaryFile(name, content, s.runspaceID)
	if err != nil {
		s.log("debug: could not materialize script listing: %v", err)
		return ""
	}
	return path
}

// IsStopped reports whether a debug stop is currently captured.
func (s *Service) IsStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table != nil
}

// GetStackFrames returns the frames captured at the current stop.
func (s *Service) GetStackFrames() []types.StackFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.StackFrame(nil), s.stackFrames...)
}

// GetVariableScopes returns the four named scopes for frameIndex (spec.md
// §8 S3: "Auto", "Local", "Script", "Global").
func (s *Service) GetVariableScopes(frameIndex int) ([]types.VariableContainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scopesByFrame[frameIndex]
	if !ok {
		return nil, fmt.Errorf("debug: no frame at index %d", frameIndex)
	}
	return []types.VariableContainer{
		{ID: sc.Auto, DisplayName: "Auto", Expandable: true},
		{ID: sc.Local, DisplayName: "Local", Expandable: true},
		{ID: sc.Script, DisplayName: "Script", Expandable: true},
		{ID: sc.Global, DisplayName: "Global", Expandable: true},
	}, nil
}

// GetVariables returns containerID's children (spec.md §4.7.3).
func (s *Service) GetVariables(containerID int) ([]types.VariableDetail, error) {
	s.mu.Lock()
	table := s.table
	s.mu.Unlock()
	if table == nil {
		return nil, fmt.Errorf("debug: not stopped")
	}
	children, err := table.GetVariables(containerID)
	if err != nil {
		return nil, err
	}
	out := make([]types.VariableDetail, 0, len(children))
	for _, d := range children {
		out = append(out, toDTO(d))
	}
	return out, nil
}

func toDTO(d varDetail) types.VariableDetail {
	return types.VariableDetail{ID: d.id, Name: d.name, ValueString: d.valueString, IsExpandable: d.isExpandable, ChildrenID: d.childrenID}
}

// GetVariableFromExpression splits expr on '.' and walks containers by
// case-insensitive name match, descending on expandable children, per
// spec.md §4.7.3. Returns (nil, nil) — not an error — if no match is
// found, mirroring the "returns null if not found" contract.
func (s *Service) GetVariableFromExpression(expr string, frameIndex int) (*types.VariableDetail, error) {
	s.mu.Lock()
	table := s.table
	sc, ok := s.scopesByFrame[frameIndex]
	s.mu.Unlock()
	if table == nil || !ok {
		return nil, fmt.Errorf("debug: not stopped")
	}

	parts := strings.Split(expr, ".")
	if len(parts) == 0 {
		return nil, nil
	}

	var cur varDetail
	found := false
	for _, containerID := range []int{sc.Local, sc.Auto, sc.Script, sc.Global} {
		if d, ok := table.FindByName(containerID, parts[0]); ok {
			cur = d
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}

	for _, seg := range parts[1:] {
		if !cur.isExpandable {
			return nil, nil
		}
		d, ok := table.FindByName(cur.childrenID, seg)
		if !ok {
			return nil, nil
		}
		cur = d
	}

	dto := toDTO(cur)
	return &dto, nil
}

// SetVariable evaluates valueExpr via the engine and assigns the result
// into containerID's backing scope under name, per spec.md §4.7.3. The
// engine-side type-converter-attribute transform PowerShell performs has
// no counterpart in this repo's JS-backed engine; the exported value is
// assigned directly.
func (s *Service) SetVariable(h *engine.Handle, containerID int, name, valueExpr string) (*types.VariableDetail, error) {
	v, err := h.RunScript(valueExpr)
	if err != nil {
		return nil, fmt.Errorf("debug: expression-invalid: %w", err)
	}

	s.mu.Lock()
	table := s.table
	s.mu.Unlock()
	if table == nil {
		return nil, fmt.Errorf("debug: not stopped")
	}

	raw := v.Export()
	if err := table.SetRaw(containerID, name, raw); err != nil {
		return nil, err
	}
	d, ok := table.FindByName(containerID, name)
	if !ok {
		return nil, fmt.Errorf("debug: variable %q not found after assignment", name)
	}
	dto := toDTO(d)
	return &dto, nil
}

// --- stepping (spec.md §4.7.4) ---

// Continue resumes execution.
func (s *Service) Continue() error { return s.doResume(types.ResumeContinue) }

// StepOver executes the current line without entering called functions.
func (s *Service) StepOver() error { return s.doResume(types.ResumeStepOver) }

// StepIn enters the next called function.
func (s *Service) StepIn() error { return s.doResume(types.ResumeStepIn) }

// StepOut runs until the current function returns.
func (s *Service) StepOut() error { return s.doResume(types.ResumeStepOut) }

// Abort ends the debug session (resume = Stop).
func (s *Service) Abort() error { return s.doResume(types.ResumeStop) }

// Break requests the engine stop at the next statement; unlike the other
// stepping commands this does not discard the current stop's captured
// state (there may not be one yet).
func (s *Service) Break() error {
	s.mu.Lock()
	fn := s.resumeFn
	s.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(types.ResumeBreak)
}

// doResume discards the current stop's captured state and delegates
// action to the frame's debugger.
func (s *Service) doResume(action types.ResumeAction) error {
	s.mu.Lock()
	fn := s.resumeFn
	s.table = nil
	s.stackFrames = nil
	s.scopesByFrame = nil
	s.mu.Unlock()

	s.bus.Publish(events.Event{Kind: events.KindDebuggerResume, Payload: action})
	if fn == nil {
		return nil
	}
	return fn(action)
}

// HandleCancelWhileStopped implements spec.md §4.4 step 4 / §4.7.5: when a
// task is cancelled while the engine is stopped at a breakpoint on a
// remote runspace, verify via stillInBreakpoint (the reentrant "still in
// breakpoint?" probe) whether the remote is truly cancelled; if not,
// force a resume = Stop to end the debug session.
func (s *Service) HandleCancelWhileStopped(remote bool, stillInBreakpoint func() bool) error {
	if !s.IsStopped() || !remote {
		return nil
	}
	if stillInBreakpoint != nil && stillInBreakpoint() {
		return nil
	}
	return s.Abort()
}

// classifyAuto implements spec.md §4.7.2 step 4's auto-variable filter.
func classifyAuto(locals map[string]interface{}, globalRaw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for name, val := range locals {
		if isReservedLocalName(name) {
			continue
		}
		if name == debugContextVar {
			continue
		}
		if name == "$args" {
			if arr, ok := val.([]interface{}); !ok || len(arr) == 0 {
				continue
			}
		} else if name != "$_" {
			if gv, ok := globalRaw[name]; ok && valuesEqual(gv, val) {
				continue
			}
		}
		out[name] = val
	}
	return out
}

func isReservedLocalName(name string) bool {
	return engine.IsReservedName(strings.TrimPrefix(name, "$"))
}
