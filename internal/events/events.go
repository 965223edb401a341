// Package events is the lifecycle event bus frames and the debug service
// publish to. It is a direct adaptation of the teacher's internal/bus: the
// same non-blocking fan-out-with-drop Publish/Subscribe/Tap shape, repointed
// from inter-role chat messages at engine lifecycle notifications (frame
// pushed/popped, debugger stop/resume, breakpoint updated, runspace
// changed, execution status changed).
package events

import (
	"log"
	"sync"
)

// Kind identifies the payload shape of an Event.
type Kind string

const (
	KindFramePushed       Kind = "FramePushed"
	KindFramePopped       Kind = "FramePopped"
	KindDebuggerStop      Kind = "DebuggerStop"
	KindDebuggerResume    Kind = "DebuggerResume"
	KindBreakpointUpdated Kind = "BreakpointUpdated"
	KindRunspaceChanged   Kind = "RunspaceChanged"
	KindExecutionStatus   Kind = "ExecutionStatusChanged"
)

const (
	subscriberBufSize = 64
	tapBufSize        = 256
)

// Event is the envelope every lifecycle notification travels in.
type Event struct {
	Kind    Kind
	Payload any
}

// Bus is the observable lifecycle event bus. The frame stack, executor,
// breakpoint registry and debug service publish; each pushed frame
// subscribes to the events it reacts to, and tests register their own
// subscriptions and taps.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]chan Event
	taps        []chan Event
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[Kind][]chan Event)}
}

// Publish fans out evt to all subscribers of evt.Kind and to every tap.
// Non-blocking: a full subscriber channel drops the event with a log line,
// so a slow consumer can never stall the pipeline thread that published it.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := b.subscribers[evt.Kind]
	taps := b.taps
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			log.Printf("[events] WARNING: subscriber channel full for kind=%s — event dropped", evt.Kind)
		}
	}
	for _, ch := range taps {
		select {
		case ch <- evt:
		default:
			log.Printf("[events] WARNING: tap channel full — event dropped kind=%s", evt.Kind)
		}
	}
}

// Subscribe returns a receive-only channel delivering events of kind k.
// Each call creates a new, independent subscriber channel.
func (b *Bus) Subscribe(k Kind) <-chan Event {
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[k] = append(b.subscribers[k], ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch from kind k's subscriber list. Used when a frame
// is popped and releases its subscription (spec.md §4.1, §9 "cyclic
// engine-event subscriptions ... disposed on pop").
func (b *Bus) Unsubscribe(k Kind, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[k]
	for i, c := range subs {
		if c == ch {
			b.subscribers[k] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// NewTap registers and returns a new tap channel that receives every
// published event regardless of kind.
func (b *Bus) NewTap() <-chan Event {
	ch := make(chan Event, tapBufSize)
	b.mu.Lock()
	b.taps = append(b.taps, ch)
	b.mu.Unlock()
	return ch
}
