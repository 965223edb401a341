package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScriptEvaluatesExpression(t *testing.T) {
	h := New()
	v, err := h.RunScript("21 * 2")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.ToInteger())
}

func TestSetGlobalGetGlobalRoundTrip(t *testing.T) {
	h := New()
	h.SetGlobal("count", 7)
	assert.Equal(t, int64(7), h.GetGlobal("count").ToInteger())
}

func TestGlobalNamesSkipsReserved(t *testing.T) {
	h := New()
	h.SetGlobal("x", 1)
	h.SetGlobal(DebugContextName, "reserved")
	names := h.GlobalNames()
	assert.Contains(t, names, "x")
	assert.NotContains(t, names, DebugContextName)
}

func TestIsReservedName(t *testing.T) {
	assert.True(t, IsReservedName("__internal"))
	assert.False(t, IsReservedName("userVar"))
}

func TestReinitBumpsGenerationAndClearsState(t *testing.T) {
	h := New()
	h.SetGlobal("x", 1)
	h.Reinit()
	assert.Equal(t, 1, h.Generation())
	assert.True(t, goJSIsUndefinedOrNil(h.GetGlobal("x")))
}

func goJSIsUndefinedOrNil(v interface{ Export() interface{} }) bool {
	if v == nil {
		return true
	}
	return v.Export() == nil
}

func TestClaimPanicsOnSecondOwner(t *testing.T) {
	h := New()
	h.Claim(1)
	assert.Panics(t, func() { h.Claim(2) })
}

func TestClaimIsIdempotentForSameOwner(t *testing.T) {
	h := New()
	h.Claim(1)
	assert.NotPanics(t, func() { h.Claim(1) })
}

func TestDefaultInstanceSingleWriter(t *testing.T) {
	h1 := New()
	SetDefault(100, h1)
	assert.Same(t, h1, Default())

	h2 := New()
	assert.Panics(t, func() { SetDefault(200, h2) })
}

func TestValueStringRendersScalars(t *testing.T) {
	h := New()
	v, _ := h.RunScript("42")
	assert.Equal(t, "42", ValueString(v))
}

func TestIsExpandableDistinguishesScalarsFromObjects(t *testing.T) {
	h := New()
	scalar, _ := h.RunScript("42")
	obj, _ := h.RunScript("({a:1,b:2})")
	assert.False(t, IsExpandable(scalar))
	assert.True(t, IsExpandable(obj))
}
