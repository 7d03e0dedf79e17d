package live

import (
	"context"
	"sync"

	"github.com/acervo-cultural/acervo/pkg/store"
)

// SubscribeFunc opens a subscription delivering snapshots to fn.
type SubscribeFunc[T any] func(ctx context.Context, fn func([]T, error)) (store.Unsubscribe, error)

// Feed is a view over a subscription.
type Feed[T any] struct {
	*cell[T]

	mu          sync.Mutex
	unsubscribe store.Unsubscribe
	once        sync.Once
}

// NewFeed opens the subscription and returns the feed. A failure to subscribe
// leaves the feed in the failure state.
func NewFeed[T any](ctx context.Context, subscribe SubscribeFunc[T]) *Feed[T] {
	f := &Feed[T]{cell: newCell[T]()}

	unsubscribe, err := subscribe(ctx, func(items []T, err error) {
		if err != nil {
			f.set(failure[T](err))
			return
		}
		f.set(success(items))
	})
	if err != nil {
		f.set(failure[T](err))
		return f
	}

	f.mu.Lock()
	f.unsubscribe = unsubscribe
	f.mu.Unlock()
	return f
}

// Close stops the subscription. Later snapshots are ignored.
func (f *Feed[T]) Close() {
	f.once.Do(func() {
		f.cell.close()
		f.mu.Lock()
		unsubscribe := f.unsubscribe
		f.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
	})
}
