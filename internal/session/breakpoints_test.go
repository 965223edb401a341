package session_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scripthost/enginehost/internal/config"
	"github.com/scripthost/enginehost/internal/debug"
	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/repl"
	"github.com/scripthost/enginehost/internal/session"
	"github.com/scripthost/enginehost/internal/task"
	"github.com/scripthost/enginehost/internal/types"
)

// TestBreakpointHitEntersAndLeavesNestedDebugLoop exercises the whole
// breakpoint-hit path end to end: a script reaching a breakpointed line
// calls __checkBreakpoint(id), which blocks the pipeline thread in a
// nested debug loop until a stepping command resumes it.
func TestBreakpointHitEntersAndLeavesNestedDebugLoop(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		WorkspaceRoot:   dir,
		ScratchDir:      dir,
		LogPath:         filepath.Join(dir, "enginehost.log"),
		EngineExtension: ".eng",
	}

	s, err := session.New(cfg, session.Options{Provider: repl.NewScriptedProvider(nil), Output: discard{}})
	require.NoError(t, err)
	s.Start()
	defer s.Close()

	bps := s.Debug.Breakpoints.SetLineBreakpoints(s.Engine, "script.eng", []debug.LineBreakpointSpec{{Line: 1}}, false, false, "")
	require.Len(t, bps, 1)
	id := bps[0].ID

	src := fmt.Sprintf(`__scriptPath = "script.eng"; __checkBreakpoint(%d); 1+1`, id)
	scriptTask := task.NewEngineDelegate("script.eng", types.ExecutionOptions{MustRunInForeground: true}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		return h.RunScript(src)
	})

	promise := s.Executor.Submit(scriptTask)

	resumed := make(chan struct{})
	go func() {
		for !s.Debug.IsStopped() {
			time.Sleep(5 * time.Millisecond)
		}
		require.NoError(t, s.Debug.Continue())
		close(resumed)
	}()

	select {
	case <-resumed:
	case <-time.After(2 * time.Second):
		t.Fatal("breakpoint never resumed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := promise.Wait(ctx)
	require.NoError(t, err)
	assert.NoError(t, res.Err)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
