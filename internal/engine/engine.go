// Package engine wraps the embedded scripting runtime (github.com/dop251/goja)
// behind the narrow surface the pipeline thread needs: compile, run, and a
// flat global/script/auto variable namespace the debug service can walk.
//
// The engine itself is a foreign black box (spec.md is explicit that
// reimplementing it is a non-goal); this package only adapts goja's public
// API to the vocabulary the rest of the core uses (RunspaceFrame, Task,
// Debug Service). Translating the PowerShell-flavored comparison operators
// of breakpoint conditions is done by internal/debug, not here.
package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/dop251/goja"
)

// reservedPrefix marks engine-internal global names; the debug service's
// auto-variable classifier (spec.md §4.7.2 step 4) skips anything with it.
const reservedPrefix = "__"

// DebugContextName is this engine's equivalent of PowerShell's $PSDebugContext.
const DebugContextName = reservedPrefix + "debugContext"

// globalScopeName / scriptScopeName are the two fixed property bags every
// Handle exposes on its runtime's global object (spec.md §4.1 "Engine
// binding specifics").
const (
	globalScopeName = "__global"
	scriptScopeName = "__script"
)

// Handle is the concrete resource a RunspaceFrame owns exclusively: one
// goja.Runtime plus a generation counter bumped on reinitialization
// (spec.md §4.5 runspace failure policy).
type Handle struct {
	rt         *goja.Runtime
	generation int
	owner      uintptr // non-zero once claimed; enforces single-writer (§9)
}

// New creates a fresh engine handle with its global/script scope objects
// initialized and empty.
func New() *Handle {
	h := &Handle{rt: goja.New()}
	h.rt.Set(globalScopeName, map[string]interface{}{})
	h.rt.Set(scriptScopeName, map[string]interface{}{})
	return h
}

// Runtime exposes the underlying goja runtime for callers that need direct
// value conversion (the debug service's variable walker).
func (h *Handle) Runtime() *goja.Runtime { return h.rt }

// Generation reports how many times this handle has been reinitialized.
func (h *Handle) Generation() int { return h.generation }

// Claim registers owner as the exclusive writer of this handle. Calling
// Claim again with a different non-zero owner panics — the engine handle
// of the current frame is mutated only by the pipeline thread (spec.md §5).
func (h *Handle) Claim(owner uintptr) {
	prev := atomic.SwapUintptr(&h.owner, owner)
	if prev != 0 && prev != owner {
		panic("engine: handle claimed by a second owner; invariant violated (single pipeline thread)")
	}
}

// Owner returns the current claiming owner token, or 0 if unclaimed.
func (h *Handle) Owner() uintptr { return atomic.LoadUintptr(&h.owner) }

// Reinit replaces the runtime in place and bumps the generation counter,
// used by the executor's runspace-failure recovery (spec.md §4.5).
func (h *Handle) Reinit() {
	h.rt = goja.New()
	h.rt.Set(globalScopeName, map[string]interface{}{})
	h.rt.Set(scriptScopeName, map[string]interface{}{})
	h.generation++
}

// RunScript compiles and executes src as a top-level command.
func (h *Handle) RunScript(src string) (goja.Value, error) {
	return h.rt.RunString(src)
}

// Compile compiles src without executing it, for callers that need to run
// the same program repeatedly (breakpoint action blocks).
func (h *Handle) Compile(name, src string) (*goja.Program, error) {
	return goja.Compile(name, src, false)
}

// RunProgram executes a previously compiled program.
func (h *Handle) RunProgram(p *goja.Program) (goja.Value, error) {
	return h.rt.RunProgram(p)
}

// GlobalScope returns the global-scope property bag.
func (h *Handle) GlobalScope() map[string]interface{} {
	return h.scopeBag(globalScopeName)
}

// ScriptScope returns the script-scope property bag.
func (h *Handle) ScriptScope() map[string]interface{} {
	return h.scopeBag(scriptScopeName)
}

func (h *Handle) scopeBag(name string) map[string]interface{} {
	v := h.rt.Get(name)
	if v == nil {
		m := map[string]interface{}{}
		h.rt.Set(name, m)
		return m
	}
	m, ok := v.Export().(map[string]interface{})
	if !ok {
		m = map[string]interface{}{}
		h.rt.Set(name, m)
	}
	return m
}

// GlobalNames returns every user-visible global property name, excluding
// engine-internal (reservedPrefix) names.
func (h *Handle) GlobalNames() []string {
	var names []string
	for _, key := range h.rt.GlobalObject().Keys() {
		if IsReservedName(key) {
			continue
		}
		names = append(names, key)
	}
	return names
}

// IsReservedName reports whether name is an engine-internal identifier that
// auto-variable classification must skip (spec.md §4.7.2 step 4).
func IsReservedName(name string) bool {
	if len(name) >= len(reservedPrefix) && name[:len(reservedPrefix)] == reservedPrefix {
		return true
	}
	return false
}

// SetGlobal assigns a value into the runtime's top-level global object —
// the engine-visible variable table.
func (h *Handle) SetGlobal(name string, value interface{}) {
	h.rt.Set(name, value)
}

// GetGlobal reads a value back out of the global object, or nil if unset.
func (h *Handle) GetGlobal(name string) goja.Value {
	return h.rt.Get(name)
}

// GlobalRaw reads name back out as a plain Go value, reporting false if it
// is unset, undefined, or null.
func (h *Handle) GlobalRaw(name string) (interface{}, bool) {
	v := h.rt.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	return v.Export(), true
}

// ClearGlobal deletes name from the runtime's global object, used to remove
// the breakpoint-probe marker function on debug-loop exit.
func (h *Handle) ClearGlobal(name string) {
	h.rt.GlobalObject().Delete(name)
}

// ValueString renders a goja.Value the way the debug service displays
// variables: a short human string, never empty.
func ValueString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	return fmt.Sprintf("%v", v.Export())
}

// IsExpandable reports whether v has enumerable children worth a nested
// VariableContainer (objects and arrays; not scalars).
func IsExpandable(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	switch v.Export().(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	obj := v.ToObject(nil)
	return obj != nil && len(obj.Keys()) > 0
}
