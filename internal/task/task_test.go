package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scripthost/enginehost/internal/engine"
	"github.com/scripthost/enginehost/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineDelegateFulfillsPromiseOnSuccess(t *testing.T) {
	tk := NewEngineDelegate("get-pid", types.ExecutionOptions{}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		return 123, nil
	})
	tk.ExecuteSynchronously(context.Background(), engine.New())

	res, err := tk.Promise().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 123, res.Value)
	assert.Equal(t, types.TaskCompleted, tk.State())
}

func TestCancelDelegateIgnoresEngineHandle(t *testing.T) {
	tk := NewCancelDelegate("sleep", types.ExecutionOptions{}, func(ctx context.Context) (interface{}, error) {
		return "done", nil
	})
	tk.ExecuteSynchronously(context.Background(), nil)
	res, _ := tk.Promise().Wait(context.Background())
	assert.Equal(t, "done", res.Value)
}

func TestCommandShapeCarriesCommandString(t *testing.T) {
	tk := NewCommand("Write-Output 42", types.ExecutionOptions{}, "Write-Output 42",
		func(ctx context.Context, h *engine.Handle, command string) (interface{}, error) {
			return command, nil
		})
	assert.Equal(t, ShapeCommand, tk.Shape)
	tk.ExecuteSynchronously(context.Background(), engine.New())
	res, _ := tk.Promise().Wait(context.Background())
	assert.Equal(t, "Write-Output 42", res.Value)
}

func TestCancelBeforeDequeueNeverTouchesEngine(t *testing.T) {
	called := false
	tk := NewEngineDelegate("noop", types.ExecutionOptions{}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		called = true
		return nil, nil
	})
	tk.Cancel()
	tk.ExecuteSynchronously(context.Background(), engine.New())

	assert.False(t, called, "engine body must not run once cancelled before dequeue")
	res, _ := tk.Promise().Wait(context.Background())
	assert.Equal(t, types.FailureExecutionCancelled, res.FailureKind)
	assert.Equal(t, types.TaskCanceled, tk.State())
}

func TestCancellationDuringExecutionMarksTaskCancelled(t *testing.T) {
	tk := NewEngineDelegate("block", types.ExecutionOptions{}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	threadCtx, threadCancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tk.ExecuteSynchronously(threadCtx, engine.New())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	tk.Cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ExecuteSynchronously did not return after cancellation")
	}
	res, _ := tk.Promise().Wait(context.Background())
	assert.Equal(t, types.FailureExecutionCancelled, res.FailureKind)
	threadCancel()
}

func TestPanicInBodyIsRecoveredAsEngineRuntimeFailure(t *testing.T) {
	tk := NewEngineDelegate("panics", types.ExecutionOptions{}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		panic("boom")
	})
	tk.ExecuteSynchronously(context.Background(), engine.New())
	res, _ := tk.Promise().Wait(context.Background())
	assert.Equal(t, types.FailureEngineRuntime, res.FailureKind)
	assert.Contains(t, res.Err.Error(), "boom")
	assert.Equal(t, types.TaskFaulted, tk.State())
}

func TestPromiseFulfillIsFulfilledExactlyOnce(t *testing.T) {
	p := NewPromise()
	p.Fulfill(Result{Value: 1})
	p.Fulfill(Result{Value: 2})
	res, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Value)
}

func TestErrorsFromBodyWithoutCancellationAreEngineRuntime(t *testing.T) {
	tk := NewEngineDelegate("fails", types.ExecutionOptions{}, func(ctx context.Context, h *engine.Handle) (interface{}, error) {
		return nil, errors.New("boom")
	})
	tk.ExecuteSynchronously(context.Background(), engine.New())
	res, _ := tk.Promise().Wait(context.Background())
	assert.Equal(t, types.FailureEngineRuntime, res.FailureKind)
}
