package store

import (
	"context"
)

// ReadOnlyStore wraps a Store and rejects write operations while in read-only mode.
//
// The wrapper is used around the final catch-up sync of a backend migration, when the
// application must stop accepting writes so both backends converge. The read-only state
// is read from isReadOnly on every write, so the application can toggle it at runtime
// without rebuilding the store.
//
// Writes (Add, Set, Update, Delete, Increment, Commit) return ErrReadOnly while
// isReadOnly reports true. Reads and subscriptions keep working.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a read-only wrapper for a store.
func NewReadOnlyStore(store Store, isReadOnly func() bool) *ReadOnlyStore {
	return &ReadOnlyStore{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying store.
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) checkReadOnly() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (r *ReadOnlyStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := r.checkReadOnly(); err != nil {
		return "", err
	}
	return r.Store.Add(ctx, collection, data)
}

func (r *ReadOnlyStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Set(ctx, collection, id, data)
}

func (r *ReadOnlyStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Update(ctx, collection, id, fields)
}

func (r *ReadOnlyStore) Delete(ctx context.Context, collection, id string) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Delete(ctx, collection, id)
}

func (r *ReadOnlyStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Increment(ctx, collection, id, field, delta)
}

func (r *ReadOnlyStore) Commit(ctx context.Context, b *Batch) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Commit(ctx, b)
}
