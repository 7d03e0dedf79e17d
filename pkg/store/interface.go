// Package store provides the document store abstraction the archive services are written against.
//
// The [Store] interface is deliberately small: collections of schemaless documents keyed by
// string ids, equality/ordering/limit queries, atomic counter increments, small atomic
// batches, and change subscriptions that push the whole current result set. Everything the
// services need is expressed with these primitives, so the same services run unchanged on
// every backend.
//
// # Implementations
//
//   - [github.com/acervo-cultural/acervo/pkg/store/memory.Store]: in-process store used by tests
//     and by the "memory" backend for local development
//   - [github.com/acervo-cultural/acervo/pkg/store/postgres.Store]: a single jsonb documents table
//     accessed through GORM
//   - [github.com/acervo-cultural/acervo/pkg/store/surrealdb.Store]: native SurrealQL with LIVE
//     queries driving subscriptions
//   - [github.com/acervo-cultural/acervo/pkg/store/cqrs.CQRSStore]: routes reads and writes between
//     two stores while moving the archive from one backend to another
//
// [ReadOnlyStore] wraps any of them and rejects writes while the application is in
// read-only mode.
//
// # Documents
//
// A [Document] holds normalized JSON values: strings, float64 numbers, booleans, nil,
// []any and map[string]any. [Encode] and [Decode] convert between typed entities and
// documents; backends normalize what their drivers return with [Normalize] so that every
// backend hands the services identical values.
//
// Timestamps are stored as RFC 3339 strings in UTC at second precision. At that precision
// the strings have a fixed width, so ordering on them is chronological on every backend.
//
// # Subscriptions
//
// [Store.Subscribe] delivers the current result immediately and again whenever a change in
// the collection alters the result. Within one subscription deliveries are ordered; a newer
// snapshot may replace one that was not yet delivered. Subscriptions on different queries
// are independent. Backends share the fan-out logic through [Hub].
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Update, Increment and batches touching a missing document.
	ErrNotFound = errors.New("document not found")

	// ErrReadOnly is returned for writes while the application is read-only.
	ErrReadOnly = errors.New("operation denied: application is in read-only mode")
)

// Document is one stored document.
type Document struct {
	ID   string
	Data map[string]any
}

// Listener receives subscription snapshots. A non-nil err ends the subscription
// and no further snapshots follow.
type Listener func(docs []Document, err error)

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// Store is the document store used by the archive services.
type Store interface {
	// Add inserts data under a new store-assigned id and returns the id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)

	// Set inserts or fully replaces the document with the given id.
	Set(ctx context.Context, collection, id string, data map[string]any) error

	// Get returns the document, or nil without error when it does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Update merges fields into an existing document. Fields not named are kept.
	// It returns ErrNotFound when the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Find runs a query and returns the matching documents.
	Find(ctx context.Context, q Query) ([]Document, error)

	// Increment atomically adds delta to a numeric field. A negative delta never takes
	// the field below zero. It returns ErrNotFound when the document does not exist.
	Increment(ctx context.Context, collection, id, field string, delta int64) error

	// Commit applies every operation of the batch atomically.
	Commit(ctx context.Context, b *Batch) error

	// Subscribe opens a live query. fn is called with the full result set right away
	// and after every change that alters it, until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, q Query, fn Listener) (Unsubscribe, error)

	// Migrate prepares the backend schema. It is safe to run repeatedly.
	Migrate(ctx context.Context) error

	// Close releases the backend's resources and ends all subscriptions.
	Close() error
}
