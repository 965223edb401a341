// Breakpoint lifecycle: registration, compilation, and the per-file index
// engine breakpoint-updated events feed, per spec.md §4.7.1.
package debug

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/events"
	"github.com/scripthost/enginehost/internal/remotefs"
	"github.com/scripthost/enginehost/internal/types"
)

// LineBreakpointSpec is one breakpoint request for setLineBreakpoints.
type LineBreakpointSpec struct {
	Line      int
	Column    int
	Condition string
	HitCount  int
}

// CommandBreakpointSpec is one breakpoint request for setCommandBreakpoints.
type CommandBreakpointSpec struct {
	Name      string
	Condition string
	HitCount  int
}

// compiledAction is the engine program a breakpoint's condition was
// compiled to, plus the engine global its hit counter lives in.
type compiledAction struct {
	program    *goja.Program
	counterVar string
}

// Registry owns line and command breakpoints, their compiled action
// blocks, and the breakpointsPerFile index used by "clear all in file"
// (spec.md §4.7.1). It is only ever touched from the pipeline thread or
// from debug-event callbacks that themselves run there (spec.md §5).
type Registry struct {
	mu sync.Mutex

	lineByFile map[string][]*types.LineBreakpoint
	commands   map[string]*types.CommandBreakpoint
	actions    map[int]compiledAction // breakpoint ID -> compiled action
	nextID     int

	bus    *events.Bus
	mirror *remotefs.Mirror
	logger *log.Logger
}

// NewRegistry creates an empty breakpoint registry. bus receives
// BreakpointUpdated events on every mutation; mirror resolves remote file
// paths (may be nil when remote sessions are never exercised).
func NewRegistry(bus *events.Bus, mirror *remotefs.Mirror, logger *log.Logger) *Registry {
	return &Registry{
		lineByFile: make(map[string][]*types.LineBreakpoint),
		commands:   make(map[string]*types.CommandBreakpoint),
		actions:    make(map[int]compiledAction),
		bus:        bus,
		mirror:     mirror,
		logger:     logger,
	}
}

func (r *Registry) log(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

// EscapeWildcardChars escapes PowerShell wildcard-significant characters
// (*, ?, [, ]) and the backtick itself with the backtick escape the engine's breakpoint API
// requires before a literal file path is passed to it (spec.md §4.7.1).
func EscapeWildcardChars(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch r {
		case '*', '?', '[', ']', '`':
			b.WriteByte('`')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SetLineBreakpoints installs specs as the line breakpoints for file, per
// spec.md §4.7.1. If clearExisting, every existing line breakpoint in file
// is removed first. When remote is true the file path is translated via
// the mirror for runspaceID; if translation fails,
// it returns an empty slice and logs (spec.md §7 "Remote-path-unmapped").
func (r *Registry) SetLineBreakpoints(h *engine.Handle, file string, specs []LineBreakpointSpec, clearExisting bool, remote bool, runspaceID string) []*types.LineBreakpoint {
	resolved := file
	if remote {
		local, ok := r.mirror.Map(file, runspaceID)
		if !ok {
			r.log("debug: no remote mapping for %s in runspace %s; breakpoint dropped", file, runspaceID)
			return nil
		}
		resolved = local
	}
	// EscapeWildcardChars mirrors the literal-path escaping the engine's
	// breakpoint API requires; the simulated engine in this repo has no
	// such API, so the escaped form is only used as the index key to keep
	// the invariant testable end to end.
	key := EscapeWildcardChars(resolved)

	r.mu.Lock()
	if clearExisting {
		for _, bp := range r.lineByFile[key] {
			delete(r.actions, bp.ID)
		}
		delete(r.lineByFile, key)
	}

	out := make([]*types.LineBreakpoint, 0, len(specs))
	for _, spec := range specs {
		bp := &types.LineBreakpoint{
			ID:        r.allocID(),
			File:      resolved,
			Line:      spec.Line,
			Column:    spec.Column,
			Condition: spec.Condition,
			HitCount:  spec.HitCount,
		}
		r.compile(h, bp.ID, spec.Condition, spec.HitCount, bp)
		r.lineByFile[key] = append(r.lineByFile[key], bp)
		out = append(out, bp)
	}
	r.mu.Unlock()

	r.bus.Publish(events.Event{Kind: events.KindBreakpointUpdated, Payload: resolved})
	return out
}

// SetCommandBreakpoints installs specs as the command breakpoints
// spanning all files, mirroring SetLineBreakpoints (spec.md §4.7.1).
func (r *Registry) SetCommandBreakpoints(h *engine.Handle, specs []CommandBreakpointSpec, clearExisting bool) []*types.CommandBreakpoint {
	r.mu.Lock()
	if clearExisting {
		for _, bp := range r.commands {
			delete(r.actions, bp.ID)
		}
		r.commands = make(map[string]*types.CommandBreakpoint)
	}

	out := make([]*types.CommandBreakpoint, 0, len(specs))
	for _, spec := range specs {
		bp := &types.CommandBreakpoint{
			ID:        r.allocID(),
			Name:      spec.Name,
			Condition: spec.Condition,
			HitCount:  spec.HitCount,
		}
		r.compileCommand(h, bp.ID, spec.Condition, spec.HitCount, bp)
		r.commands[spec.Name] = bp
		out = append(out, bp)
	}
	r.mu.Unlock()

	r.bus.Publish(events.Event{Kind: events.KindBreakpointUpdated, Payload: "*"})
	return out
}

// allocID must be called with mu held.
func (r *Registry) allocID() int {
	r.nextID++
	return r.nextID
}

// compile validates and compiles bp's condition, setting Verified and
// Message per spec.md §4.7.5's failure semantics. Must be called with mu
// held.
func (r *Registry) compile(h *engine.Handle, id int, condition string, hitCount int, bp *types.LineBreakpoint) {
	verified, message, action := compileCondition(h, id, condition, hitCount)
	bp.Verified = verified
	bp.Message = message
	if verified {
		r.actions[id] = action
	}
}

func (r *Registry) compileCommand(h *engine.Handle, id int, condition string, hitCount int, bp *types.CommandBreakpoint) {
	verified, message, action := compileCondition(h, id, condition, hitCount)
	bp.Verified = verified
	bp.Message = message
	if verified {
		r.actions[id] = action
	}
}

// compileCondition implements spec.md §4.7.1/§4.7.5: an empty condition is
// always verified (unconditional breakpoint); a non-empty one is checked
// for common C-style-operator mistakes first (cheap, human-readable), then
// compiled by the engine, with any ParseException scrubbed the same way.
func compileCondition(h *engine.Handle, id int, condition string, hitCount int) (verified bool, message string, action compiledAction) {
	if condition == "" && hitCount <= 0 {
		return true, "", compiledAction{}
	}
	if hint, bad := checkCommonMistakes(condition); bad {
		return false, hint, compiledAction{}
	}

	counterVar := fmt.Sprintf("__hit_%d", id)
	src := buildActionSource(condition, hitCount, counterVar)
	program, err := h.Compile(fmt.Sprintf("<breakpoint %d>", id), src)
	if err != nil {
		return false, scrubParseError(err), compiledAction{}
	}
	return true, "", compiledAction{program: program, counterVar: counterVar}
}

// RemoveAllInFile drops every line breakpoint registered for file's
// (possibly remote-resolved) key.
func (r *Registry) RemoveAllInFile(file string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := EscapeWildcardChars(file)
	for _, bp := range r.lineByFile[key] {
		delete(r.actions, bp.ID)
	}
	delete(r.lineByFile, key)
}

// LineBreakpointsInFile returns the breakpoints currently registered for
// file, for the executor's line-hit check.
func (r *Registry) LineBreakpointsInFile(file string) []*types.LineBreakpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := EscapeWildcardChars(file)
	out := append([]*types.LineBreakpoint(nil), r.lineByFile[key]...)
	return out
}

// CommandBreakpoint returns the breakpoint registered for name, if any.
func (r *Registry) CommandBreakpoint(name string) (*types.CommandBreakpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bp, ok := r.commands[name]
	return bp, ok
}

// ShouldBreak evaluates bp's compiled action (if any) against h, returning
// whether execution should stop. An unconditional (action-less) breakpoint
// always stops. Errors evaluating the action are treated as "don't stop"
// and logged, rather than aborting the running script.
func (r *Registry) ShouldBreak(h *engine.Handle, id int) bool {
	r.mu.Lock()
	action, ok := r.actions[id]
	r.mu.Unlock()
	if !ok {
		return true
	}
	if action.program == nil {
		return true
	}

	if action.counterVar != "" {
		if _, set := h.GlobalRaw(action.counterVar); !set {
			h.SetGlobal(action.counterVar, 0)
		}
	}

	hit := false
	h.Runtime().Set("__break", func() { hit = true })
	_, err := h.RunProgram(action.program)
	if err != nil {
		r.log("debug: breakpoint %d action errored: %v", id, err)
		return false
	}
	return hit
}
