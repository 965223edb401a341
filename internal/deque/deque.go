// Package deque implements the dual-priority blocking deque of spec.md §4.3:
// a high lane (LIFO, for Next-priority prepends) and a low lane (FIFO, for
// Normal-priority appends), plus a consumer-blocking gate the executor
// engages while it fences the queue during preemption.
package deque

import (
	"context"
	"sync"
)

// Lifetime is returned by BlockConsumers; call Release to resume takes.
type Lifetime struct {
	release func()
	once    sync.Once
}

// Release ends the blocked period. Safe to call more than once.
func (l *Lifetime) Release() {
	l.once.Do(l.release)
}

// Deque is a thread-safe dual-priority blocking deque of T.
type Deque[T any] struct {
	mu      sync.Mutex
	notify  chan struct{} // closed+replaced to wake blocked takers
	high    []T           // LIFO lane for Next-priority prepends
	low     []T           // FIFO lane for Normal-priority appends
	blocked bool
}

// New creates an empty Deque.
func New[T any]() *Deque[T] {
	return &Deque[T]{notify: make(chan struct{})}
}

// Prepend pushes x onto the high (Next) lane.
func (d *Deque[T]) Prepend(x T) {
	d.mu.Lock()
	d.high = append(d.high, x)
	d.wake()
	d.mu.Unlock()
}

// Append pushes x onto the low (Normal) lane, FIFO order.
func (d *Deque[T]) Append(x T) {
	d.mu.Lock()
	d.low = append(d.low, x)
	d.wake()
	d.mu.Unlock()
}

// wake must be called with mu held.
func (d *Deque[T]) wake() {
	close(d.notify)
	d.notify = make(chan struct{})
}

// Take blocks until an item is available and the gate is not engaged, then
// returns it, preferring the high lane (LIFO within it) over the low lane
// (FIFO within it). Returns ctx.Err() if ctx is cancelled first.
func (d *Deque[T]) Take(ctx context.Context) (T, error) {
	for {
		d.mu.Lock()
		if !d.blocked {
			if v, ok := d.popHigh(); ok {
				d.mu.Unlock()
				return v, nil
			}
			if v, ok := d.popLow(); ok {
				d.mu.Unlock()
				return v, nil
			}
		}
		ch := d.notify
		d.mu.Unlock()

		select {
		case <-ch:
			// retry
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryTake returns immediately: (item, true) if one was available and the
// gate is not engaged, otherwise (zero, false).
func (d *Deque[T]) TryTake() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	if d.blocked {
		return zero, false
	}
	if v, ok := d.popHigh(); ok {
		return v, true
	}
	if v, ok := d.popLow(); ok {
		return v, true
	}
	return zero, false
}

// Len reports the total number of queued items across both lanes.
func (d *Deque[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.high) + len(d.low)
}

// BlockConsumers engages the gate: Take blocks and TryTake returns false
// until the returned Lifetime is released. Used by the executor to fence
// the foreground deque while it injects a preempting task (§4.5).
func (d *Deque[T]) BlockConsumers() *Lifetime {
	d.mu.Lock()
	d.blocked = true
	d.mu.Unlock()
	return &Lifetime{release: func() {
		d.mu.Lock()
		d.blocked = false
		d.wake()
		d.mu.Unlock()
	}}
}

// popHigh pops the most recently prepended item (LIFO). Caller holds mu.
func (d *Deque[T]) popHigh() (T, bool) {
	var zero T
	n := len(d.high)
	if n == 0 {
		return zero, false
	}
	v := d.high[n-1]
	d.high[n-1] = zero
	d.high = d.high[:n-1]
	return v, true
}

// popLow pops the oldest appended item (FIFO). Caller holds mu.
func (d *Deque[T]) popLow() (T, bool) {
	var zero T
	if len(d.low) == 0 {
		return zero, false
	}
	v := d.low[0]
	d.low[0] = zero
	d.low = d.low[1:]
	return v, true
}
