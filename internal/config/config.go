// Package config resolves this core's environment-variable driven
// configuration, following the teacher's internal/llm.NewTier
// prefix-with-fallback pattern: a session-scoped prefix (e.g. a runspace
// name) is tried first, falling back to the shared ENGINEHOST_* vars for
// anything left unset.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config is the resolved, immutable configuration for one Session.
type Config struct {
	WorkspaceRoot   string
	ScratchDir      string
	LogPath         string
	RunspaceID      string
	Remote          bool
	EngineExtension string
}

// Load reads a .env file if present (best-effort, exactly like the
// teacher's `_ = godotenv.Load(".env")`) and resolves a Config for the
// given session prefix. An empty prefix reads only the shared
// ENGINEHOST_* vars.
func Load(prefix string) (*Config, error) {
	_ = godotenv.Load(".env")

	get := func(suffix, fallbackSuffix string) string {
		if prefix != "" {
			if v := os.Getenv(prefix + "_" + suffix); v != "" {
				return v
			}
		}
		return os.Getenv("ENGINEHOST_" + fallbackSuffix)
	}

	workspaceRoot := get("WORKSPACE_ROOT", "WORKSPACE_ROOT")
	if workspaceRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workspaceRoot = wd
	}

	scratchDir := get("SCRATCH_DIR", "SCRATCH_DIR")
	if scratchDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		scratchDir = filepath.Join(home, ".cache", "enginehost")
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, err
	}

	logPath := get("LOG_PATH", "LOG_PATH")
	if logPath == "" {
		logPath = filepath.Join(scratchDir, "enginehost.log")
	}

	remote := prefix != "" && os.Getenv(prefix+"_REMOTE") == "true"

	ext := get("ENGINE_EXTENSION", "ENGINE_EXTENSION")
	if ext == "" {
		ext = ".eng"
	}

	return &Config{
		WorkspaceRoot:   workspaceRoot,
		ScratchDir:      scratchDir,
		LogPath:         logPath,
		RunspaceID:      prefix,
		Remote:          remote,
		EngineExtension: ext,
	}, nil
}
