package live

import (
	"context"
	"sync"
)

// FetchFunc loads the data of a one-shot view.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Query is a view over a one-shot fetch.
type Query[T any] struct {
	*cell[T]

	fetch  FetchFunc[T]
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	gen uint64
}

// NewQuery starts the first fetch in the background and returns the query.
// Fetches run with a context derived from ctx that Close cancels.
func NewQuery[T any](ctx context.Context, fetch FetchFunc[T]) *Query[T] {
	qctx, cancel := context.WithCancel(ctx)
	q := &Query[T]{
		cell:   newCell[T](),
		fetch:  fetch,
		ctx:    qctx,
		cancel: cancel,
	}
	q.start()
	return q
}

// Refetch runs the fetch again. The state goes back to loading, keeping the
// previous data until the new result arrives. Results of older fetches are dropped.
func (q *Query[T]) Refetch() {
	if q.Closed() {
		return
	}
	q.update(func(st State[T]) State[T] {
		st.Loading = true
		st.Err = nil
		return st
	})
	q.start()
}

func (q *Query[T]) start() {
	q.mu.Lock()
	q.gen++
	gen := q.gen
	q.mu.Unlock()

	go func() {
		items, err := q.fetch(q.ctx)
		if !q.current(gen) {
			return
		}
		if err != nil {
			q.set(failure[T](err))
			return
		}
		q.set(success(items))
	}()
}

func (q *Query[T]) current(gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return gen == q.gen
}

// Close drops any pending result and cancels the running fetch.
func (q *Query[T]) Close() {
	if q.cell.close() {
		q.cancel()
	}
}
