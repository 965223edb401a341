package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/events"
)

func newTestRegistry() *Registry {
	return NewRegistry(events.New(), nil, nil)
}

func TestSetLineBreakpointsUnconditionalAreVerified(t *testing.T) {
	r := newTestRegistry()
	h := engine.New()
	bps := r.SetLineBreakpoints(h, "/scripts/a.eng", []LineBreakpointSpec{{Line: 10}}, false, false, "")
	require.Len(t, bps, 1)
	assert.True(t, bps[0].Verified)
	assert.Equal(t, 10, bps[0].Line)
}

func TestSetLineBreakpointsInvalidConditionIsNotVerified(t *testing.T) {
	r := newTestRegistry()
	h := engine.New()
	bps := r.SetLineBreakpoints(h, "/scripts/a.eng", []LineBreakpointSpec{{Line: 5, Condition: "$i == 3"}}, false, false, "")
	require.Len(t, bps, 1)
	assert.False(t, bps[0].Verified)
	assert.Contains(t, bps[0].Message, "Use '-eq' instead of '=='")
}

// TestIdempotentClear exercises testable property #4: calling
// setLineBreakpoints(file, [], clearExisting=true) twice yields no engine
// breakpoints for file.
func TestIdempotentClear(t *testing.T) {
	r := newTestRegistry()
	h := engine.New()
	r.SetLineBreakpoints(h, "/scripts/a.eng", []LineBreakpointSpec{{Line: 1}, {Line: 2}}, false, false, "")
	require.Len(t, r.LineBreakpointsInFile("/scripts/a.eng"), 2)

	r.SetLineBreakpoints(h, "/scripts/a.eng", nil, true, false, "")
	assert.Empty(t, r.LineBreakpointsInFile("/scripts/a.eng"))

	r.SetLineBreakpoints(h, "/scripts/a.eng", nil, true, false, "")
	assert.Empty(t, r.LineBreakpointsInFile("/scripts/a.eng"))
}

func TestEscapeWildcardCharsEscapesSignificantChars(t *testing.T) {
	assert.Equal(t, "/scripts/a`*b`?.eng", EscapeWildcardChars("/scripts/a*b?.eng"))
}

func TestShouldBreakEvaluatesConditionalAction(t *testing.T) {
	r := newTestRegistry()
	h := engine.New()
	bps := r.SetLineBreakpoints(h, "/scripts/loop.eng", []LineBreakpointSpec{{Line: 5, Condition: "$i -eq 3"}}, false, false, "")
	require.True(t, bps[0].Verified)

	h.SetGlobal("$i", int64(1))
	assert.False(t, r.ShouldBreak(h, bps[0].ID))
	h.SetGlobal("$i", int64(3))
	assert.True(t, r.ShouldBreak(h, bps[0].ID))
}

func TestShouldBreakHonorsHitCount(t *testing.T) {
	r := newTestRegistry()
	h := engine.New()
	bps := r.SetLineBreakpoints(h, "/scripts/loop.eng", []LineBreakpointSpec{{Line: 5, Condition: "$i -eq 3", HitCount: 2}}, false, false, "")
	require.True(t, bps[0].Verified)

	h.SetGlobal("$i", int64(3))
	assert.False(t, r.ShouldBreak(h, bps[0].ID), "first hit should not stop")
	assert.True(t, r.ShouldBreak(h, bps[0].ID), "second hit should stop")
}

func TestSetCommandBreakpointsUnconditionalAreVerified(t *testing.T) {
	r := newTestRegistry()
	h := engine.New()
	bps := r.SetCommandBreakpoints(h, []CommandBreakpointSpec{{Name: "Get-Thing"}}, false)
	require.Len(t, bps, 1)
	assert.True(t, bps[0].Verified)
	bp, ok := r.CommandBreakpoint("Get-Thing")
	require.True(t, ok)
	assert.Equal(t, "Get-Thing", bp.Name)
}
