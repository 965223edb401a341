package deque

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOWithinNormalPriority(t *testing.T) {
	d := New[int]()
	d.Append(1)
	d.Append(2)
	d.Append(3)

	ctx := context.Background()
	for _, want := range []int{1, 2, 3} {
		got, err := d.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLIFOWithinNextPriority(t *testing.T) {
	d := New[int]()
	d.Prepend(1)
	d.Prepend(2)
	d.Prepend(3)

	ctx := context.Background()
	for _, want := range []int{3, 2, 1} {
		got, err := d.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNextPreemptsNormal(t *testing.T) {
	d := New[string]()
	d.Append("normal-1")
	d.Append("normal-2")
	d.Prepend("next-1")

	got, err := d.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "next-1", got)
}

func TestTakeBlocksUntilAvailable(t *testing.T) {
	d := New[int]()
	done := make(chan int, 1)
	go func() {
		v, err := d.Take(context.Background())
		if err == nil {
			done <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Take returned before any item was appended")
	default:
	}

	d.Append(42)
	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Take never woke up after Append")
	}
}

func TestTakeRespectsContextCancellation(t *testing.T) {
	d := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := d.Take(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Take did not observe cancellation")
	}
}

func TestBlockConsumersFencesTakeAndTryTake(t *testing.T) {
	d := New[int]()
	d.Append(1)

	lt := d.BlockConsumers()
	_, ok := d.TryTake()
	assert.False(t, ok, "TryTake should report false while gate is engaged")

	errCh := make(chan error, 1)
	go func() {
		_, err := d.Take(context.Background())
		errCh <- err
	}()
	select {
	case <-errCh:
		t.Fatal("Take returned while gate was still engaged")
	case <-time.After(30 * time.Millisecond):
	}

	lt.Release()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Take never resumed after Release")
	}
}

func TestBlockConsumersReleaseIsIdempotent(t *testing.T) {
	d := New[int]()
	lt := d.BlockConsumers()
	lt.Release()
	assert.NotPanics(t, func() { lt.Release() })
}

func TestLenCountsBothLanes(t *testing.T) {
	d := New[int]()
	d.Append(1)
	d.Append(2)
	d.Prepend(3)
	assert.Equal(t, 3, d.Len())
}
