// Package protocol defines the message shapes of the external interface
// (spec.md §6): a custom version query, a debug-adapter-style surface for
// breakpoints/stack/variables/stepping, and the notifications the executor
// and debug service emit. It intentionally stops at data shapes and method
// names — the language-server surface (textDocument/*, workspace/*,
// completionItem/*, codeLens/*) stays an external collaborator; only the
// Method constants a real dispatcher would route on are given here, so the
// contract is visible without a stand-in implementation behind it.
package protocol

// Method is a JSON-RPC method name this core answers or emits.
type Method string

// Custom methods this core answers directly.
const (
	MethodGetVersion = Method("powerShell/getVersion")
)

// Debug-adapter-style requests the debug service answers.
const (
	MethodSetBreakpoints         = Method("setBreakpoints")
	MethodSetFunctionBreakpoints = Method("setFunctionBreakpoints")
	MethodStackTrace             = Method("stackTrace")
	MethodScopes                 = Method("scopes")
	MethodVariables              = Method("variables")
	MethodSetVariable            = Method("setVariable")
	MethodContinue               = Method("continue")
	MethodNext                   = Method("next")
	MethodStepIn                 = Method("stepIn")
	MethodStepOut                = Method("stepOut")
	MethodEvaluate               = Method("evaluate")
)

// Notifications this core emits, unsolicited, to the client.
const (
	MethodExecutionStatusChanged = Method("powerShell/executionStatusChanged")
	MethodRunspaceChanged        = Method("powerShell/runspaceChanged")
	MethodStartDebugger          = Method("powerShell/startDebugger")
)

// LanguageServerMethods lists the surface this core deliberately does not
// implement handlers for — listed so a real dispatcher sees the full
// contract, not just the slice this repo answers.
var LanguageServerMethods = []Method{
	"textDocument/didOpen",
	"textDocument/didChange",
	"textDocument/didClose",
	"textDocument/completion",
	"textDocument/hover",
	"textDocument/definition",
	"workspace/didChangeConfiguration",
	"completionItem/resolve",
	"codeLens/resolve",
}
