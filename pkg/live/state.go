// Package live exposes archive data as live-updating views.
//
// A view is a small state machine over a subscription ([Feed]) or a one-shot fetch
// ([Query]). It starts loading, then settles in either a success state holding the
// data or a failure state holding the error and no data:
//
//	{Loading: true} -> {Data: items, Loading: false} | {Data: [], Loading: false, Err: err}
//
// Feeds update on every snapshot of their subscription until Close, which calls the
// subscription's unsubscribe exactly once. Queries fetch once when opened and again
// only on Refetch; a result that arrives after Close, or after a newer Refetch, is
// dropped.
//
// Consumers observe a view with State and Changes. Changes returns a channel that is
// closed on the next state change, so any number of goroutines can wait on it:
//
//	for {
//		st, changed := feed.Snapshot()
//		render(st)
//		select {
//		case <-changed:
//		case <-ctx.Done():
//			return
//		}
//	}
package live

import (
	"context"
	"sync"
)

// State is the observable state of a view.
type State[T any] struct {
	Data    []T
	Loading bool
	Err     error
}

// First returns the first item of Data.
func (s State[T]) First() (T, bool) {
	if len(s.Data) == 0 {
		var zero T
		return zero, false
	}
	return s.Data[0], true
}

func loading[T any]() State[T] {
	return State[T]{Data: []T{}, Loading: true}
}

func success[T any](data []T) State[T] {
	if data == nil {
		data = []T{}
	}
	return State[T]{Data: data}
}

func failure[T any](err error) State[T] {
	return State[T]{Data: []T{}, Err: err}
}

// cell holds a state and broadcasts its changes.
type cell[T any] struct {
	mu      sync.Mutex
	state   State[T]
	changed chan struct{}
	closed  bool
}

func newCell[T any]() *cell[T] {
	return &cell[T]{state: loading[T](), changed: make(chan struct{})}
}

// set replaces the state unless the view is closed. It reports whether it did.
func (c *cell[T]) set(st State[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.state = st
	close(c.changed)
	c.changed = make(chan struct{})
	return true
}

// update applies fn to the current state under the lock.
func (c *cell[T]) update(fn func(State[T]) State[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.state = fn(c.state)
	close(c.changed)
	c.changed = make(chan struct{})
	return true
}

// close marks the cell closed and wakes waiters. It reports whether this call closed it.
func (c *cell[T]) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.changed)
	return true
}

// Snapshot returns the current state and a channel closed at the next change.
func (c *cell[T]) Snapshot() (State[T], <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.changed
}

// State returns the current state.
func (c *cell[T]) State() State[T] {
	st, _ := c.Snapshot()
	return st
}

// Changes returns a channel closed at the next state change or on Close.
func (c *cell[T]) Changes() <-chan struct{} {
	_, ch := c.Snapshot()
	return ch
}

// Closed reports whether the view was closed.
func (c *cell[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Wait blocks until the view is not loading, is closed, or ctx is done.
func (c *cell[T]) Wait(ctx context.Context) (State[T], error) {
	for {
		c.mu.Lock()
		st, ch, closed := c.state, c.changed, c.closed
		c.mu.Unlock()
		if !st.Loading || closed {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}
