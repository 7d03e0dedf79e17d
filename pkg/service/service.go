// Package service implements the archive's per-entity access services on top of a
// store.Store.
//
// Services translate typed operations into store queries, stamp timestamps and keep
// the denormalized view and like counters. They validate nothing the caller is
// expected to validate, hold no cached state, and propagate every store error wrapped
// with %w so errors.Is keeps working against store.ErrNotFound and store.ErrReadOnly.
//
// Timestamps are stamped in UTC at second precision; see the store package for why.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acervo-cultural/acervo/pkg/store"
)

var (
	// ErrAlreadyLiked is returned by AddLike when the user already likes the item.
	ErrAlreadyLiked = errors.New("item already liked")

	// ErrNoSession is returned by view operations called without a session id in the context.
	ErrNoSession = errors.New("no session id in context")

	// ErrUnknownItemType is returned for an item type other than event, gallery or timeline.
	ErrUnknownItemType = errors.New("unknown item type")
)

// Clock returns the current time. Services stamp documents with it.
type Clock func() time.Time

// Now returns the clock's time in UTC, truncated to the second.
func (c Clock) Now() time.Time {
	now := time.Now
	if c != nil {
		now = c
	}
	return now().UTC().Truncate(time.Second)
}

// stamp normalizes a caller-provided time the same way Clock.Now does.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// repo reads and decodes documents of one collection.
type repo[T any] struct {
	store      store.Store
	collection string
}

func (r repo[T]) query() store.Query {
	return store.NewQuery(r.collection)
}

func (r repo[T]) get(ctx context.Context, id string) (*T, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", r.collection, id, err)
	}
	if doc == nil {
		return nil, nil
	}
	var v T
	if err := store.Decode(*doc, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r repo[T]) find(ctx context.Context, q store.Query) ([]T, error) {
	docs, err := r.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.collection, err)
	}
	return store.DecodeAll[T](docs)
}

func (r repo[T]) add(ctx context.Context, v any) (string, error) {
	data, err := store.Encode(v)
	if err != nil {
		return "", err
	}
	id, err := r.store.Add(ctx, r.collection, data)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", r.collection, err)
	}
	return id, nil
}

func (r repo[T]) update(ctx context.Context, id string, fields map[string]any) error {
	if err := r.store.Update(ctx, r.collection, id, fields); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", r.collection, id, err)
	}
	return nil
}

func (r repo[T]) delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.collection, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", r.collection, id, err)
	}
	return nil
}

func (r repo[T]) increment(ctx context.Context, id, field string, delta int64, now time.Time) error {
	b := store.NewBatch()
	bump(b, r.collection, id, field, delta, now)
	if err := r.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("failed to increment %s of %s %s: %w", field, r.collection, id, err)
	}
	return nil
}

// bump queues a counter delta and refreshes the document's updatedAt in the same
// batch. Timestamp-window syncs only see counter changes through updatedAt.
func bump(b *store.Batch, collection, id, field string, delta int64, now time.Time) {
	b.Increment(collection, id, field, delta)
	b.Update(collection, id, map[string]any{"updatedAt": now})
}

// subscribe opens a live query whose snapshots are decoded before reaching fn.
func (r repo[T]) subscribe(ctx context.Context, q store.Query, fn func([]T, error)) (store.Unsubscribe, error) {
	unsubscribe, err := r.store.Subscribe(ctx, q, func(docs []store.Document, err error) {
		if err != nil {
			fn(nil, fmt.Errorf("subscription on %s failed: %w", r.collection, err))
			return
		}
		items, err := store.DecodeAll[T](docs)
		if err != nil {
			fn(nil, err)
			return
		}
		fn(items, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.collection, err)
	}
	return unsubscribe, nil
}

// patchFields encodes the non-nil fields of a patch and adds updatedAt.
func patchFields(patch any, now time.Time) (map[string]any, error) {
	fields, err := store.Encode(patch)
	if err != nil {
		return nil, err
	}
	fields["updatedAt"] = now
	return fields, nil
}
