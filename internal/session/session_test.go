package session_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scripthost/enginehost/internal/config"
	"github.com/scripthost/enginehost/internal/repl"
	"github.com/scripthost/enginehost/internal/session"
)

func TestSessionRunsOneScriptedLine(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		WorkspaceRoot:   dir,
		ScratchDir:      dir,
		LogPath:         filepath.Join(dir, "enginehost.log"),
		EngineExtension: ".eng",
	}

	var out bytes.Buffer
	provider := repl.NewScriptedProvider([]string{"1+1"})

	s, err := session.New(cfg, session.Options{Provider: provider, Output: &out})
	require.NoError(t, err)

	_, err = s.Engine.RunScript(`var prompt = function(){ return "> "; };`)
	require.NoError(t, err)

	s.Start()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	runErr := s.Run(ctx)
	assert.Error(t, runErr) // loop exits once the scripted provider is exhausted and ctx expires

	assert.Contains(t, out.String(), "2")
}
