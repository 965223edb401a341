package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scripthost/enginehost/internal/types"
)

func TestToStackTraceResultResolvesSourceURI(t *testing.T) {
	frames := []types.StackFrame{
		{ID: 3, ScriptPath: "/workspace/a/b.eng", FunctionName: "<script>", StartLine: 5},
	}
	result := ToStackTraceResult(frames)
	assert.Equal(t, 1, result.TotalFrames)
	assert.Equal(t, "b.eng", result.StackFrames[0].Source.Name)
	assert.Contains(t, string(result.StackFrames[0].Source.Path), "b.eng")
}

func TestMethodConstantsAreStable(t *testing.T) {
	assert.Equal(t, Method("powerShell/getVersion"), MethodGetVersion)
	assert.Equal(t, Method("powerShell/executionStatusChanged"), MethodExecutionStatusChanged)
	assert.NotEmpty(t, LanguageServerMethods)
}
