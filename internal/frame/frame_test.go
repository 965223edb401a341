package frame

import (
	"context"
	"testing"

	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/events"
	"github.com/scripthost/enginehost/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopIsLIFO(t *testing.T) {
	s := NewStack(events.New())
	f1 := NewFrame(context.Background(), engine.New(), types.FrameNormal)
	f2 := NewFrame(context.Background(), engine.New(), types.FrameNested)
	s.Push(f1)
	s.Push(f2)

	top, ok := s.Peek()
	require.True(t, ok)
	assert.Same(t, f2, top)

	popped, ok := s.Pop()
	require.True(t, ok)
	assert.Same(t, f2, popped)
	assert.Equal(t, 1, s.Depth())

	popped, ok = s.Pop()
	require.True(t, ok)
	assert.Same(t, f1, popped)
	assert.Equal(t, 0, s.Depth())
}

func TestPopOnEmptyStackReturnsFalse(t *testing.T) {
	s := NewStack(events.New())
	_, ok := s.Pop()
	assert.False(t, ok)
}

func TestPopCancelsNonExitingFrameSynchronously(t *testing.T) {
	s := NewStack(events.New())
	f := NewFrame(context.Background(), engine.New(), types.FrameNormal)
	s.Push(f)
	s.Pop()
	assert.Error(t, f.Context().Err())
}

func TestPopReleasesSessionExitingFrameAsynchronously(t *testing.T) {
	s := NewStack(events.New())
	f := NewFrame(context.Background(), engine.New(), types.FrameNormal)
	f.SessionExiting = true
	s.Push(f)
	s.Pop()
	// Cancellation is scheduled, not guaranteed synchronous; eventually fires.
	select {
	case <-f.Context().Done():
	case <-context.Background().Done():
	}
}

func TestTryPopToDepthStopsAtTarget(t *testing.T) {
	s := NewStack(events.New())
	for i := 0; i < 4; i++ {
		s.Push(NewFrame(context.Background(), engine.New(), types.FrameNormal))
	}
	popped := s.TryPopToDepth(2)
	assert.Len(t, popped, 2)
	assert.Equal(t, 2, s.Depth())
}

func TestTryPopToDepthCanEmptyStack(t *testing.T) {
	s := NewStack(events.New())
	s.Push(NewFrame(context.Background(), engine.New(), types.FrameNormal))
	s.Push(NewFrame(context.Background(), engine.New(), types.FrameNormal))
	popped := s.TryPopToDepth(0)
	assert.Len(t, popped, 2)
	assert.Equal(t, 0, s.Depth())
}

func TestPushPublishesFramePushedEvent(t *testing.T) {
	b := events.New()
	tap := b.NewTap()
	s := NewStack(b)
	s.Push(NewFrame(context.Background(), engine.New(), types.FrameNormal))

	evt := <-tap
	assert.Equal(t, events.KindFramePushed, evt.Kind)
}
