// Host output rendering for the REPL coordinator, adapted from the
// teacher's internal/ui display idiom: small ANSI-coded line writers
// rather than a full terminal UI framework, since the core's REPL has no
// pipeline-box/spinner concept to render — only prompt/output/error
// lines written to the same stream a script's own output goes to.
package repl

import (
	"fmt"
	"io"
	"sync"

	"github.com/mattn/go-runewidth"
)

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
)

// maxScriptPathWidth bounds the debug-stop banner's script path to a
// fixed terminal column width, counting display width rather than rune
// count so double-width (CJK) script names don't wrap the banner onto a
// second line.
const maxScriptPathWidth = 60

// Host is the "host UI" the REPL coordinator writes prompts, script
// output, and error records to (spec.md §4.6). All writes are
// serialized so concurrent WriteOutput/WriteError calls from background
// tasks never interleave mid-line.
type Host struct {
	mu  sync.Mutex
	out io.Writer
}

// NewHost creates a Host writing to out (typically os.Stdout).
func NewHost(out io.Writer) *Host {
	return &Host{out: out}
}

// WritePrompt renders the prompt text returned by the engine's `prompt`
// command.
func (h *Host) WritePrompt(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprint(h.out, text)
}

// WriteOutput writes a line of script output (write-output-to-host).
func (h *Host) WriteOutput(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.out, line)
}

// WriteError writes an engine error record to host output — the channel
// used when throw-on-error is off (spec.md §7 "User-visible behavior").
func (h *Host) WriteError(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.out, ansiRed+line+ansiReset)
}

// WriteNotice writes a dim informational line. Nothing in this repo calls
// it; the executor reports engine reinitialization to its logger instead.
func (h *Host) WriteNotice(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.out, ansiDim+line+ansiReset)
}

// WriteBlankLine emits the newline the REPL prints for a bare Ctrl-C at an
// empty prompt (spec.md §4.6, §8 S2).
func (h *Host) WriteBlankLine() {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.out)
}

// WriteDebugStop renders a short debugger-stop banner, colored like the
// teacher's warning lines.
func (h *Host) WriteDebugStop(scriptPath string, line int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	display := runewidth.Truncate(scriptPath, maxScriptPathWidth, "...")
	fmt.Fprintf(h.out, ansiYellow+"Hit breakpoint at %s:%d"+ansiReset+"\n", display, line)
}
