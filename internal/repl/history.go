// History persists REPL command history, adapted from the teacher's
// internal/tasklog registry idiom: one append-only JSONL file, nil-safe
// methods so callers never need to guard a missing history sink, and a
// single owner of the file handle.
package repl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one executed command line, recorded only when its
// ExecutionOptions.AddToHistory flag was set (spec.md §3).
type Entry struct {
	Line      string `json:"line"`
	Timestamp string `json:"ts"`
	Status    string `json:"status"` // "completed" | "faulted" | "canceled"
	Error     string `json:"error,omitempty"`
}

// History is nil-safe: every method no-ops on a nil receiver so callers
// that construct a Coordinator without history wiring don't need guards.
type History struct {
	mu      sync.Mutex
	f       *os.File
	entries []Entry
}

// NewHistory opens (creating if needed) a JSONL history file under dir.
// If dir is empty or the file cannot be opened it returns a History with no
// file, which keeps entries in memory only — history is best-effort, never
// a reason to fail REPL startup.
func NewHistory(dir string) *History {
	if dir == "" {
		return &History{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &History{}
	}
	f, err := os.OpenFile(filepath.Join(dir, "history.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &History{}
	}
	return &History{f: f}
}

// Record appends one history entry. status is "completed", "faulted", or
// "canceled" per the owning task's terminal state.
func (h *History) Record(line, status string, err error) {
	if h == nil {
		return
	}
	e := Entry{Line: line, Timestamp: timestamp(), Status: status}
	if err != nil {
		e.Error = err.Error()
	}

	h.mu.Lock()
	h.entries = append(h.entries, e)
	if h.f != nil {
		if data, mErr := json.Marshal(e); mErr == nil {
			fmt.Fprintln(h.f, string(data))
		}
	}
	h.mu.Unlock()
}

// Entries returns a copy of every recorded entry, oldest first.
func (h *History) Entries() []Entry {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Entry(nil), h.entries...)
}

// Close flushes and closes the underlying file, if any.
func (h *History) Close() {
	if h == nil || h.f == nil {
		return
	}
	h.mu.Lock()
	_ = h.f.Close()
	h.f = nil
	h.mu.Unlock()
}

func timestamp() string {
	return nowFunc().UTC().Format(time.RFC3339Nano)
}

// nowFunc is a seam for deterministic tests.
var nowFunc = time.Now
