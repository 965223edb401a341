// Command enginehost is the process entry point: it loads configuration,
// redirects logging away from stdio, wires a Session, and runs the REPL
// loop until SIGTERM/SIGINT cancels it.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scripthost/enginehost/internal/config"
	"github.com/scripthost/enginehost/internal/protocol"
	"github.com/scripthost/enginehost/internal/repl"
	"github.com/scripthost/enginehost/internal/session"
)

func main() {
	prefix := os.Getenv("ENGINEHOST_RUNSPACE_PREFIX")
	cfg, err := config.Load(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "enginehost: config: %v\n", err)
		os.Exit(1)
	}
	if logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}

	provider, closeProvider, err := newProvider()
	if err != nil {
		fmt.Fprintf(os.Stderr, "enginehost: readline init: %v\n", err)
		os.Exit(1)
	}
	defer closeProvider()

	sess, err := session.New(cfg, session.Options{Remote: cfg.Remote, Provider: provider, Output: os.Stdout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "enginehost: session init: %v\n", err)
		os.Exit(1)
	}

	// The notification sender shares this process with the REPL's plain-text
	// output, so it frames JSON-RPC onto stderr rather than stdout — sharing
	// stdout between the two would corrupt both streams (spec.md §6's
	// "persisted state"/stdio constraints). A production deployment gives
	// JSON-RPC its own pipe; this repo only exercises Notify.
	transport := protocol.NewStdioTransport(stdioRWC{Reader: os.Stdin, Writer: os.Stderr})
	defer transport.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	_ = transport.Notify(ctx, protocol.MethodRunspaceChanged, nil)

	sess.Start()
	if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("enginehost: repl loop exited: %v", err)
	}
	sess.Close()
}

// newProvider picks a TerminalProvider for an interactive TTY, falling back
// to a ScriptedProvider that replays stdin line-by-line for non-interactive
// invocations (scripted `-Command`-style usage, and tests driven over a
// pipe).
func newProvider() (repl.Provider, func() error, error) {
	if !isTerminal(os.Stdin) {
		return repl.NewScriptedProvider(readAllLines(os.Stdin)), func() error { return nil }, nil
	}
	tp, err := repl.NewTerminalProvider("PS> ")
	if err != nil {
		return nil, nil, err
	}
	return tp, tp.Close, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func readAllLines(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// stdioRWC adapts separate stdin/stderr streams into the single
// io.ReadWriteCloser go.lsp.dev/jsonrpc2 expects.
type stdioRWC struct {
	io.Reader
	io.Writer
}

func (stdioRWC) Close() error { return nil }
