// Package remotefs implements the remote path mirroring collaborator of
// spec.md §9: map, fetch, createTemporaryFile, isUnderRemoteTempPath. Real
// remoting transport is out of scope for this repo (spec.md §1's "workspace
// file I/O and remote-file mirroring" is an external collaborator); this
// package gives the debug service a local stand-in that exercises the
// contract and its failure paths (§4.7.1 "if translation fails, returns
// empty and logs").
package remotefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.lsp.dev/uri"
)

// Mirror is a session-scoped remote-file mirror backed by a local scratch
// directory. One Mirror exists per Session.
type Mirror struct {
	scratchDir string

	mu     sync.Mutex
	mapped map[string]string // "<runspaceID>\x00<remotePath>" -> localPath
}

// New creates a Mirror rooted at scratchDir, creating the directory if
// needed.
func New(scratchDir string) (*Mirror, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("remotefs: create scratch dir: %w", err)
	}
	return &Mirror{scratchDir: scratchDir, mapped: make(map[string]string)}, nil
}

func key(runspaceID, remotePath string) string {
	return runspaceID + "\x00" + remotePath
}

// Map returns the local path previously associated with remotePath for the
// given runspace, or ("", false) if none has been fetched yet.
func (m *Mirror) Map(remotePath, runspaceID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	local, ok := m.mapped[key(runspaceID, remotePath)]
	return local, ok
}

// Fetch assigns remotePath a local path under the scratch directory,
// creates that path's parent directory and records the mapping, returning
// the local path. No file content is copied, and the local path differs
// from remotePath even for a local runspace.
func (m *Mirror) Fetch(remotePath, runspaceID string) (string, error) {
	if remotePath == "" {
		return "", fmt.Errorf("remotefs: empty remote path")
	}
	local := filepath.Join(m.scratchDir, runspaceID, sanitizeRelPath(remotePath))
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("remotefs: mkdir for mirror: %w", err)
	}

	m.mu.Lock()
	m.mapped[key(runspaceID, remotePath)] = local
	m.mu.Unlock()
	return local, nil
}

// CreateTemporaryFile materializes contents under the scratch directory
// with the given display name and returns its local path. Used by the
// debug service's §4.7.2 step 1 ("no script name" stop capture) to turn a
// `list`-command source excerpt into a file stack frames can point at.
func (m *Mirror) CreateTemporaryFile(name, contents, runspaceID string) (string, error) {
	dir := filepath.Join(m.scratchDir, runspaceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("remotefs: mkdir for temp file: %w", err)
	}
	local := filepath.Join(dir, name)
	if err := os.WriteFile(local, []byte(contents), 0o644); err != nil {
		return "", fmt.Errorf("remotefs: write temp file: %w", err)
	}

	m.mu.Lock()
	m.mapped[key(runspaceID, local)] = local
	m.mu.Unlock()
	return local, nil
}

// IsUnderRemoteTempPath reports whether path lives inside this mirror's
// scratch directory.
func (m *Mirror) IsUnderRemoteTempPath(path string) bool {
	rel, err := filepath.Rel(m.scratchDir, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

// ScratchDir returns the mirror's root directory.
func (m *Mirror) ScratchDir() string { return m.scratchDir }

// ToFileURI converts a local filesystem path into the file:// URI form the
// debug-adapter-style protocol layer exchanges with callers.
func ToFileURI(localPath string) uri.URI {
	return uri.File(localPath)
}

// FromFileURI converts a file:// URI back to a local filesystem path.
func FromFileURI(u uri.URI) string {
	return u.Filename()
}

// sanitizeRelPath strips any leading path separators/drive markers from a
// remote path so it can be safely joined under the scratch directory
// without escaping it.
func sanitizeRelPath(remotePath string) string {
	cleaned := filepath.Clean(remotePath)
	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))
	cleaned = strings.ReplaceAll(cleaned, ":", "_")
	cleaned = strings.ReplaceAll(cleaned, "..", "_")
	return cleaned
}
