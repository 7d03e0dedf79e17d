package metrics

import (
	"context"
	"time"

	"github.com/acervo-cultural/acervo/pkg/store"
)

// Store counts and times the operations of the wrapped store.
type Store struct {
	store.Store
	m *Metrics
}

var _ store.Store = (*Store)(nil)

// InstrumentStore wraps s so its operations are recorded in m.
func InstrumentStore(s store.Store, m *Metrics) *Store {
	return &Store{Store: s, m: m}
}

// Unwrap returns the underlying store.
func (s *Store) Unwrap() store.Store {
	return s.Store
}

func (s *Store) timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.m.ObserveStore(op, err, time.Since(start))
	return err
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	var id string
	err := s.timed("add", func() (err error) {
		id, err = s.Store.Add(ctx, collection, data)
		return err
	})
	return id, err
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	return s.timed("set", func() error { return s.Store.Set(ctx, collection, id, data) })
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var doc *store.Document
	err := s.timed("get", func() (err error) {
		doc, err = s.Store.Get(ctx, collection, id)
		return err
	})
	return doc, err
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.timed("update", func() error { return s.Store.Update(ctx, collection, id, fields) })
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.timed("delete", func() error { return s.Store.Delete(ctx, collection, id) })
}

func (s *Store) Find(ctx context.Context, q store.Query) ([]store.Document, error) {
	var docs []store.Document
	err := s.timed("find", func() (err error) {
		docs, err = s.Store.Find(ctx, q)
		return err
	})
	return docs, err
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.timed("increment", func() error { return s.Store.Increment(ctx, collection, id, field, delta) })
}

func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	return s.timed("commit", func() error { return s.Store.Commit(ctx, b) })
}
