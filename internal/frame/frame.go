// Package frame implements the Runspace Frame Stack of spec.md §4.1: a LIFO
// stack of engine invocation contexts. Pushing a frame subscribes it to the
// shared lifecycle bus (debugger-stop, breakpoint-updated); popping
// unsubscribes. The stack is mutated only from the pipeline thread, except
// tryPopToDepth, which takes the stack's writer lock so the executor's
// runspace-failure recovery path (spec.md §4.5) can run concurrently with
// in-flight reads.
package frame

import (
	"context"
	"sync"

	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/events"
	"github.com/scripthost/enginehost/internal/types"
)

// Frame is one entry on the runspace stack: an engine handle, its kind
// bitmask, and a cancellation source exclusively owned by this frame.
type Frame struct {
	Engine *engine.Handle
	Kind   types.FrameKind

	// SessionExiting, when true at Pop time, makes the engine handle release
	// asynchronously instead of synchronously (spec.md §4.1).
	SessionExiting bool

	cancel context.CancelFunc
	ctx    context.Context

	stopSub  <-chan events.Event
	bpSub    <-chan events.Event
	released bool
}

// NewFrame creates a frame owning handle, with a cancellation source
// derived from parent.
func NewFrame(parent context.Context, handle *engine.Handle, kind types.FrameKind) *Frame {
	ctx, cancel := context.WithCancel(parent)
	return &Frame{Engine: handle, Kind: kind, ctx: ctx, cancel: cancel}
}

// Context returns this frame's own cancellation source, composed by callers
// (the executor's loop-scope cancellation context) with the thread-stop
// token and, for the debug loop, the debugger-resumed token.
func (f *Frame) Context() context.Context { return f.ctx }

// Cancel cancels this frame's cancellation source.
func (f *Frame) Cancel() { f.cancel() }

// Stack is the LIFO runspace frame stack.
type Stack struct {
	mu     sync.RWMutex
	frames []*Frame
	bus    *events.Bus
}

// NewStack creates an empty frame stack bound to bus for lifecycle events.
func NewStack(bus *events.Bus) *Stack {
	return &Stack{bus: bus}
}

// Push appends f to the top of the stack and subscribes it to the
// lifecycle bus's debugger-stop and breakpoint-updated events, then
// publishes FramePushed.
func (s *Stack) Push(f *Frame) {
	f.stopSub = s.bus.Subscribe(events.KindDebuggerStop)
	f.bpSub = s.bus.Subscribe(events.KindBreakpointUpdated)

	s.mu.Lock()
	s.frames = append(s.frames, f)
	depth := len(s.frames)
	s.mu.Unlock()

	s.bus.Publish(events.Event{Kind: events.KindFramePushed, Payload: depth})
}

// Pop removes and returns the top frame, unsubscribing it from the bus and
// releasing its engine handle — asynchronously if SessionExiting, otherwise
// synchronously, per spec.md §4.1.
func (s *Stack) Pop() (*Frame, bool) {
	s.mu.Lock()
	n := len(s.frames)
	if n == 0 {
		s.mu.Unlock()
		return nil, false
	}
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	depth := len(s.frames)
	s.mu.Unlock()

	s.bus.Unsubscribe(events.KindDebuggerStop, f.stopSub)
	s.bus.Unsubscribe(events.KindBreakpointUpdated, f.bpSub)
	s.release(f)

	s.bus.Publish(events.Event{Kind: events.KindFramePopped, Payload: depth})
	return f, true
}

func (s *Stack) release(f *Frame) {
	if f.released {
		return
	}
	f.released = true
	if f.SessionExiting {
		go f.Cancel()
		return
	}
	f.Cancel()
}

// Peek returns the current top frame without removing it.
func (s *Stack) Peek() (*Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.frames)
	if n == 0 {
		return nil, false
	}
	return s.frames[n-1], true
}

// Depth reports the current stack depth.
func (s *Stack) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// TryPopToDepth pops frames until the stack has at most n entries, or is
// empty, returning the frames it popped (top-first). It takes the writer
// lock for its whole duration — the one frame-stack mutation spec.md §4.1
// allows off the pipeline thread, used by runspace-failure recovery.
func (s *Stack) TryPopToDepth(n int) []*Frame {
	s.mu.Lock()
	var popped []*Frame
	for len(s.frames) > n && len(s.frames) > 0 {
		last := len(s.frames) - 1
		f := s.frames[last]
		s.frames = s.frames[:last]
		popped = append(popped, f)
	}
	s.mu.Unlock()

	for _, f := range popped {
		s.bus.Unsubscribe(events.KindDebuggerStop, f.stopSub)
		s.bus.Unsubscribe(events.KindBreakpointUpdated, f.bpSub)
		s.release(f)
	}
	if len(popped) > 0 {
		s.bus.Publish(events.Event{Kind: events.KindFramePopped, Payload: s.Depth()})
	}
	return popped
}
