// Condition compilation for conditional and hit-count breakpoints, per
// spec.md §4.7.1. Conditions and hit counts arrive written in the
// PowerShell-flavored comparison syntax (-eq, -ne, -gt, -lt, -ge, -le);
// this file translates that syntax into the engine's native JS operators,
// catches the common mistake of writing C-style operators instead, and
// scrubs compile errors into a human-readable diagnostic.
package debug

import (
	"fmt"
	"regexp"
	"strings"
)

// psOperators maps the PowerShell-flavored comparison tokens a condition
// may use onto the engine's native JS operators. Word-bounded so "-eq" is
// never rewritten inside a longer identifier.
var psOperators = []struct {
	ps, js string
}{
	{"-eq", "=="},
	{"-ne", "!="},
	{"-ge", ">="},
	{"-le", "<="},
	{"-gt", ">"},
	{"-lt", "<"},
}

var psOperatorPattern = regexp.MustCompile(`(?i)(?:-eq|-ne|-ge|-le|-gt|-lt)\b`)

// translateOperators rewrites every PowerShell-flavored comparison operator
// in expr to its JS equivalent so the result can be compiled by the engine.
func translateOperators(expr string) string {
	return psOperatorPattern.ReplaceAllStringFunc(expr, func(tok string) string {
		lower := strings.ToLower(tok)
		for _, op := range psOperators {
			if op.ps == lower {
				return op.js
			}
		}
		return tok
	})
}

// mistakePattern finds the C-style comparison operators that are never
// valid in a PowerShell-flavored condition, longest-match first so ">="
// and "<=" are not mistaken for ">" or "<".
var mistakePattern = regexp.MustCompile(`==|!=|>=|<=|>|<`)

var mistakeHint = map[string]string{
	"==": "-eq",
	"!=": "-ne",
	">=": "-ge",
	"<=": "-le",
	">":  "-gt",
	"<":  "-lt",
}

// checkCommonMistakes scans a condition for a C-style comparison operator
// written where a PowerShell-flavored one belongs (spec.md §4.7.1's "simple
// AST syntax check"). It returns a diagnostic message and true if a mistake
// was found, so the caller can annotate the breakpoint instead of failing
// opaquely with a raw parse error.
func checkCommonMistakes(condition string) (message string, found bool) {
	tok := mistakePattern.FindString(condition)
	if tok == "" {
		return "", false
	}
	return fmt.Sprintf("Use '%s' instead of '%s'", mistakeHint[tok], tok), true
}

// looksLikeUserBlock reports whether condition already reads as a complete
// action block rather than a bare boolean expression: spec.md §4.7.1 lets
// the user supply "the user's own block if it contains a break/continue
// statement", in which case it is compiled verbatim (after operator
// translation) instead of being wrapped.
func looksLikeUserBlock(condition string) bool {
	return strings.Contains(condition, "break") || strings.Contains(condition, "continue")
}

// buildActionSource compiles condition (and an optional hitCount) into the
// action block the engine evaluates on every hit of the owning breakpoint,
// per spec.md §4.7.1:
//
//	no hit count: if (condition) { break }
//	with hit count: if (condition) { if (++$counter -eq N) { break } }
//	user's own block: used verbatim if it already contains break/continue
//
// counterVar names the per-breakpoint hit counter so multiple breakpoints
// never collide on the same engine global.
func buildActionSource(condition string, hitCount int, counterVar string) string {
	if looksLikeUserBlock(condition) {
		return translateOperators(condition)
	}
	if condition == "" {
		condition = "true"
	}
	cond := translateOperators(condition)
	if hitCount <= 0 {
		return fmt.Sprintf("if (%s) { __break(); }", cond)
	}
	return fmt.Sprintf(
		"if (%s) { %s = (%s || 0) + 1; if (%s === %d) { __break(); } }",
		cond, counterVar, counterVar, counterVar, hitCount,
	)
}

// scrubParseError turns an engine ParseException into the human-readable
// form spec.md §4.7.5 calls for ("same as invalid condition"), stripping
// the engine-internal prefix goja's error strings carry.
func scrubParseError(err error) string {
	msg := err.Error()
	msg = strings.TrimPrefix(msg, "SyntaxError: ")
	if idx := strings.Index(msg, " at <eval>"); idx >= 0 {
		msg = msg[:idx]
	}
	return msg
}
