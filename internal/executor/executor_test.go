package executor

import (
	"context"
	"testing"
	"time"

	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/events"
	"github.com/scripthost/enginehost/internal/frame"
	"github.com/scripthost/enginehost/internal/task"
	"github.com/scripthost/enginehost/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) (*Executor, *engine.Handle) {
	t.Helper()
	bus := events.New()
	frames := frame.NewStack(bus)
	ex := New(frames, bus, nil)
	h := engine.New()
	ex.Start(h)
	t.Cleanup(ex.Stop)
	return ex, h
}

func submitAndWait(t *testing.T, ex *Executor, repr string, opts types.ExecutionOptions, fn func(ctx context.Context, h *engine.Handle) (interface{}, error)) task.Result {
	t.Helper()
	tk := task.NewEngineDelegate(repr, opts, fn)
	ex.Submit(tk)
	res, err := tk.Promise().Wait(context.Background())
	require.NoError(t, err)
	return res
}

func TestForegroundTaskRunsAndFulfillsPromise(t *testing.T) {
	ex, _ := newTestExecutor(t)
	res := submitAndWait(t, ex, "1+1", types.ExecutionOptions{MustRunInForeground: true}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		return 2, nil
	})
	assert.Equal(t, 2, res.Value)
}

func TestFIFOWithinNormalPriorityAcrossSubmitters(t *testing.T) {
	ex, _ := newTestExecutor(t)
	var order []int
	done := make(chan struct{})
	var mu = make(chan struct{}, 1)
	mu <- struct{}{}

	record := func(n int) func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		return func(ctx context.Context, h *engine.Handle) (interface{}, error) {
			<-mu
			order = append(order, n)
			mu <- struct{}{}
			return n, nil
		}
	}

	var promises []*task.Promise
	for i := 0; i < 5; i++ {
		tk := task.NewEngineDelegate("t", types.ExecutionOptions{MustRunInForeground: true}, record(i))
		promises = append(promises, ex.Submit(tk))
	}
	go func() {
		for _, p := range promises {
			p.Wait(context.Background())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks never completed")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestInterruptCurrentForegroundPreemptsBlockedTask(t *testing.T) {
	ex, _ := newTestExecutor(t)

	blockerStarted := make(chan struct{})
	blocker := task.NewEngineDelegate("blocker", types.ExecutionOptions{MustRunInForeground: true}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		close(blockerStarted)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	ex.Submit(blocker)
	<-blockerStarted

	urgent := task.NewEngineDelegate("urgent", types.ExecutionOptions{
		Priority:                   types.PriorityNext,
		MustRunInForeground:        true,
		InterruptCurrentForeground: true,
	}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		return "urgent-ran", nil
	})
	ex.Submit(urgent)

	res, err := urgent.Promise().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "urgent-ran", res.Value)

	bres, _ := blocker.Promise().Wait(context.Background())
	assert.Equal(t, types.FailureExecutionCancelled, bres.FailureKind)
}

func TestCancelBeforeDequeueDropsTaskWithoutRunning(t *testing.T) {
	ex, _ := newTestExecutor(t)
	called := false
	tk := task.NewEngineDelegate("never", types.ExecutionOptions{MustRunInForeground: true}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		called = true
		return nil, nil
	})
	tk.Cancel()
	ex.Submit(tk)
	res, err := tk.Promise().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.FailureExecutionCancelled, res.FailureKind)
	assert.False(t, called)
}

func TestSubmissionInvalidOptionsRejectedBeforeExecution(t *testing.T) {
	ex, _ := newTestExecutor(t)
	tk := task.NewEngineDelegate("bad", types.ExecutionOptions{
		InterruptCurrentForeground: true,
		Priority:                   types.PriorityNormal,
	}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		return nil, nil
	})
	ex.Submit(tk)
	res, err := tk.Promise().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.FailureSubmissionInvalid, res.FailureKind)
}

func TestBackgroundTaskRunsOnlyDuringIdleDrain(t *testing.T) {
	ex, _ := newTestExecutor(t)

	bgTask := task.NewEngineDelegate("bg", types.ExecutionOptions{}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		return "bg-done", nil
	})
	ex.Submit(bgTask)

	time.Sleep(20 * time.Millisecond)
	select {
	case <-bgTask.Promise().Done():
		t.Fatal("background task ran without an idle drain")
	default:
	}

	f, ok := ex.CurrentFrame()
	require.True(t, ok)
	ex.IdleDrain(f)

	res, err := bgTask.Promise().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bg-done", res.Value)
}

func TestEngineFatalFailureTriggersRunspaceRecovery(t *testing.T) {
	ex, h := newTestExecutor(t)
	depthBefore := ex.Frames().Depth()

	res := submitAndWait(t, ex, "fatal", types.ExecutionOptions{MustRunInForeground: true}, func(ctx context.Context, handle *engine.Handle) (interface{}, error) {
		return nil, &task.FatalEngineError{Err: assertError("boom")}
	})
	assert.Equal(t, types.FailureEngineFatal, res.FailureKind)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, depthBefore, ex.Frames().Depth())
	assert.Equal(t, 1, h.Generation(), "engine handle should have been reinitialized")
}

type assertError string

func (e assertError) Error() string { return string(e) }
