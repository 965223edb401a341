// Pluggable read-line providers, per spec.md §9: the core only depends on
// the narrow interface { readLine(ct), tryOverrideIdleHandler(cb),
// overrideReadKey(cb) }. Two implementations are provided, matching the
// teacher's own choice of github.com/chzyer/readline for interactive
// terminal input: a terminal provider for real sessions and a scripted
// provider for tests.
package repl

import (
	"context"
	"errors"

	"github.com/chzyer/readline"
)

// ErrCtrlC is returned by ReadLine when the user pressed Ctrl-C at the
// prompt with no pending input — the REPL loop treats this as "print a
// blank line and read again" (spec.md §4.6, §8 S2), not a failure.
var ErrCtrlC = errors.New("repl: ctrl-c at prompt")

// Provider is the read-line collaborator interface spec.md §9 describes.
type Provider interface {
	// ReadLine blocks for one line of input, or returns ctx.Err() if ctx is
	// cancelled first, or ErrCtrlC for a bare interrupt at an empty prompt.
	ReadLine(ctx context.Context) (string, error)

	// TryOverrideIdleHandler installs cb to be invoked while this provider
	// is otherwise idle-blocking on input, returning false if the provider
	// cannot support that (it blocks in an uninterruptible read).
	TryOverrideIdleHandler(cb func()) bool

	// OverrideReadKey installs cb to be invoked with every keystroke seen,
	// used by the REPL to track "last key was Ctrl-C" for the bare-Ctrl-C
	// detection in spec.md §4.6.
	OverrideReadKey(cb func(key rune))

	// Close releases the provider's terminal resources.
	Close() error
}

// keyListener adapts a plain func to chzyer/readline's Listener interface
// so TerminalProvider can observe every keystroke without forking the
// library.
type keyListener struct {
	onKey func(key rune)
}

func (l *keyListener) OnChange(line []rune, pos int, key rune) ([]rune, int, bool) {
	if l.onKey != nil {
		l.onKey(key)
	}
	return nil, 0, false
}

// TerminalProvider is the rich, interactive read-line provider: line
// editing, history and keystroke tracking via github.com/chzyer/readline.
// No tab completion is configured.
type TerminalProvider struct {
	inst     *readline.Instance
	listener *keyListener
}

// NewTerminalProvider creates a TerminalProvider with prompt as its
// initial prompt text (re-set on every WritePrompt via SetPrompt).
func NewTerminalProvider(prompt string) (*TerminalProvider, error) {
	listener := &keyListener{}
	cfg := &readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Listener:        listener,
	}
	inst, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &TerminalProvider{inst: inst, listener: listener}, nil
}

// SetPrompt updates the prompt text rendered on the next ReadLine call.
func (p *TerminalProvider) SetPrompt(text string) { p.inst.SetPrompt(text) }

// ReadLine implements Provider.
func (p *TerminalProvider) ReadLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.inst.Readline()
		ch <- result{line, err}
	}()

	select {
	case r := <-ch:
		if errors.Is(r.err, readline.ErrInterrupt) {
			return "", ErrCtrlC
		}
		return r.line, r.err
	case <-ctx.Done():
		// The underlying blocking read cannot be interrupted from here;
		// the goroutine above completes on the user's next keystroke and
		// its result is discarded. Documented limitation, see DESIGN.md.
		return "", ctx.Err()
	}
}

// TryOverrideIdleHandler always returns false: the terminal provider
// blocks in an uninterruptible OS read and cannot poll for idle work
// while doing so (spec.md §9).
func (p *TerminalProvider) TryOverrideIdleHandler(cb func()) bool { return false }

// OverrideReadKey installs cb via the underlying readline.Listener.
func (p *TerminalProvider) OverrideReadKey(cb func(key rune)) { p.listener.onKey = cb }

// Close releases the terminal.
func (p *TerminalProvider) Close() error { return p.inst.Close() }

// ScriptedProvider is a non-interactive provider that replays a fixed
// sequence of lines, used by tests and non-interactive `-Command` style
// invocations. It can support idle polling since it never blocks in a
// foreign syscall.
type ScriptedProvider struct {
	lines   []string
	idx     int
	idleCB  func()
	readKey func(rune)
}

// NewScriptedProvider creates a provider that replays lines in order. Once
// exhausted, ReadLine blocks until ctx is cancelled and then returns
// ctx.Err().
func NewScriptedProvider(lines []string) *ScriptedProvider {
	return &ScriptedProvider{lines: lines}
}

func (p *ScriptedProvider) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if p.idx >= len(p.lines) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	line := p.lines[p.idx]
	p.idx++
	if p.idleCB != nil {
		p.idleCB()
	}
	return line, nil
}

func (p *ScriptedProvider) TryOverrideIdleHandler(cb func()) bool {
	p.idleCB = cb
	return true
}

func (p *ScriptedProvider) OverrideReadKey(cb func(key rune)) { p.readKey = cb }

func (p *ScriptedProvider) Close() error { return nil }
