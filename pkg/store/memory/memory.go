// Package memory implements store.Store in process memory.
//
// It backs the unit tests of every package above the store and the "memory"
// backend used for local development. Writes are serialized by one mutex, so
// increments and batches are trivially atomic; subscriptions are driven by a
// store.Hub notified after each write.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/acervo-cultural/acervo/pkg/store"
)

type record struct {
	seq  uint64
	data map[string]any
}

// Store is an in-memory document store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*record
	seq         uint64
	hub         *store.Hub
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	s := &Store{collections: make(map[string]map[string]*record)}
	s.hub = store.NewHub(s.find, 0)
	return s
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := store.NewID()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	b := store.NewBatch()
	b.Set(collection, id, data)
	return s.Commit(ctx, b)
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if !store.ValidName(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	doc := store.Clone(store.Document{ID: id, Data: rec.data})
	return &doc, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	b := store.NewBatch()
	b.Update(collection, id, fields)
	return s.Commit(ctx, b)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	b := store.NewBatch()
	b.Delete(collection, id)
	return s.Commit(ctx, b)
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	b := store.NewBatch()
	b.Increment(collection, id, field, delta)
	return s.Commit(ctx, b)
}

func (s *Store) Find(ctx context.Context, q store.Query) ([]store.Document, error) {
	q, err := q.Normalized()
	if err != nil {
		return nil, err
	}
	return s.find(ctx, q)
}

func (s *Store) find(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.collections[q.Collection]
	docs := make([]store.Document, 0, len(recs))
	for id, rec := range recs {
		docs = append(docs, store.Document{ID: id, Data: rec.data})
	}
	sortBySeq(docs, recs)

	matched := store.Apply(q, docs)
	out := make([]store.Document, len(matched))
	for i, doc := range matched {
		out[i] = store.Clone(doc)
	}
	return out, nil
}

// Commit validates every operation against the current state, then applies them
// all under the write lock.
func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	ops, err := b.Ops()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.check(ops); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, op := range ops {
		s.apply(op)
	}
	s.mu.Unlock()

	for _, collection := range b.Collections() {
		s.hub.Notify(collection)
	}
	return nil
}

// check reports the first operation that would fail, accounting for documents
// created or deleted earlier in the same batch.
func (s *Store) check(ops []store.Op) error {
	exists := make(map[string]bool)
	key := func(op store.Op) string { return op.Collection + "/" + op.ID }
	present := func(op store.Op) bool {
		if v, ok := exists[key(op)]; ok {
			return v
		}
		_, ok := s.collections[op.Collection][op.ID]
		return ok
	}

	for _, op := range ops {
		switch op.Kind {
		case store.OpCreate, store.OpSet:
			exists[key(op)] = true
		case store.OpDelete:
			exists[key(op)] = false
		case store.OpUpdate, store.OpIncrement:
			if !present(op) {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, store.ErrNotFound)
			}
		}
	}
	return nil
}

func (s *Store) apply(op store.Op) {
	coll, ok := s.collections[op.Collection]
	if !ok {
		coll = make(map[string]*record)
		s.collections[op.Collection] = coll
	}

	switch op.Kind {
	case store.OpCreate, store.OpSet:
		s.seq++
		seq := s.seq
		if existing, ok := coll[op.ID]; ok {
			seq = existing.seq
		}
		data := store.Clone(store.Document{Data: op.Data}).Data
		if data == nil {
			data = make(map[string]any)
		}
		coll[op.ID] = &record{seq: seq, data: data}
	case store.OpUpdate:
		rec := coll[op.ID]
		for k, v := range store.Clone(store.Document{Data: op.Data}).Data {
			rec.data[k] = v
		}
	case store.OpDelete:
		delete(coll, op.ID)
	case store.OpIncrement:
		rec := coll[op.ID]
		current, _ := rec.data[op.Field].(float64)
		next := current + float64(op.Delta)
		if op.Delta < 0 && next < 0 {
			next = 0
		}
		rec.data[op.Field] = next
	}
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, fn store.Listener) (store.Unsubscribe, error) {
	q, err := q.Normalized()
	if err != nil {
		return nil, err
	}
	return s.hub.Watch(q, fn), nil
}

// Migrate is a no-op; collections are created on first write.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

// Count returns the number of documents in collection.
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func sortBySeq(docs []store.Document, recs map[string]*record) {
	sort.Slice(docs, func(i, j int) bool {
		return recs[docs[i].ID].seq < recs[docs[j].ID].seq
	})
}
