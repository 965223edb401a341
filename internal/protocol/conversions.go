package protocol

import (
	"github.com/scripthost/enginehost/internal/remotefs"
	"github.com/scripthost/enginehost/internal/types"
)

// ToStackFrameDTO converts a captured types.StackFrame to its wire shape,
// resolving ScriptPath to a file URI the client can open directly.
func ToStackFrameDTO(f types.StackFrame) StackFrameDTO {
	return StackFrameDTO{
		ID:        f.ID,
		Name:      f.FunctionName,
		Source:    Source{Name: baseName(f.ScriptPath), Path: remotefs.ToFileURI(f.ScriptPath)},
		Line:      f.StartLine,
		Column:    f.StartColumn,
		EndLine:   f.EndLine,
		EndColumn: f.EndColumn,
	}
}

// ToStackTraceResult converts a captured stack (spec.md §4.7.2 step 3's
// return value) to the stackTrace response body.
func ToStackTraceResult(frames []types.StackFrame) StackTraceResult {
	dtos := make([]StackFrameDTO, len(frames))
	for i, f := range frames {
		dtos[i] = ToStackFrameDTO(f)
	}
	return StackTraceResult{StackFrames: dtos, TotalFrames: len(dtos)}
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
