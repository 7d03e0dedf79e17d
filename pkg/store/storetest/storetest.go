// Package storetest holds the behaviour every store.Store backend must share.
//
// Backend packages call [Run] from their tests with a factory for a fresh store.
// Each test case works in its own collection, so the suite can run against a
// shared database.
package storetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/acervo-cultural/acervo/pkg/store"
)

// Factory returns a ready store. The suite closes it after each test.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores built by factory.
func Run(t *testing.T, factory Factory) {
	suite.Run(t, &conformanceSuite{factory: factory})
}

type conformanceSuite struct {
	suite.Suite
	factory Factory
	store   store.Store
	ctx     context.Context
}

func (s *conformanceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.factory(s.T())
}

func (s *conformanceSuite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

// collection returns a collection name unique to the running test.
func (s *conformanceSuite) collection() string {
	return "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (s *conformanceSuite) TestAddAndGet() {
	coll := s.collection()

	id, err := s.store.Add(s.ctx, coll, map[string]any{"title": "A", "views": 0, "tags": []string{"x", "y"}})
	s.Require().NoError(err)
	s.Require().NotEmpty(id)

	doc, err := s.store.Get(s.ctx, coll, id)
	s.Require().NoError(err)
	s.Require().NotNil(doc)
	s.Equal(id, doc.ID)
	s.Equal("A", doc.Data["title"])
	s.Equal(float64(0), doc.Data["views"])
	s.Equal([]any{"x", "y"}, doc.Data["tags"])
}

func (s *conformanceSuite) TestGetMissingReturnsNil() {
	doc, err := s.store.Get(s.ctx, s.collection(), "missing")
	s.NoError(err)
	s.Nil(doc)
}

func (s *conformanceSuite) TestSetReplaces() {
	coll := s.collection()
	s.Require().NoError(s.store.Set(s.ctx, coll, "one", map[string]any{"a": "1", "b": "2"}))
	s.Require().NoError(s.store.Set(s.ctx, coll, "one", map[string]any{"a": "3"}))

	doc, err := s.store.Get(s.ctx, coll, "one")
	s.Require().NoError(err)
	s.Require().NotNil(doc)
	s.Equal(map[string]any{"a": "3"}, doc.Data)
}

func (s *conformanceSuite) TestUpdateMerges() {
	coll := s.collection()
	id, err := s.store.Add(s.ctx, coll, map[string]any{"title": "A", "location": "Hall"})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Update(s.ctx, coll, id, map[string]any{"title": "B", "isFeatured": true}))

	doc, err := s.store.Get(s.ctx, coll, id)
	s.Require().NoError(err)
	s.Equal("B", doc.Data["title"])
	s.Equal("Hall", doc.Data["location"])
	s.Equal(true, doc.Data["isFeatured"])
}

func (s *conformanceSuite) TestUpdateMissing() {
	err := s.store.Update(s.ctx, s.collection(), "missing", map[string]any{"title": "B"})
	s.True(errors.Is(err, store.ErrNotFound), "got %v", err)
}

func (s *conformanceSuite) TestDelete() {
	coll := s.collection()
	id, err := s.store.Add(s.ctx, coll, map[string]any{"title": "A"})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Delete(s.ctx, coll, id))
	doc, err := s.store.Get(s.ctx, coll, id)
	s.NoError(err)
	s.Nil(doc)

	s.NoError(s.store.Delete(s.ctx, coll, id), "deleting twice is not an error")
}

func (s *conformanceSuite) TestFindFilterOrderLimit() {
	coll := s.collection()
	rows := []map[string]any{
		{"year": 1990, "date": "1990-03-01", "isFeatured": false},
		{"year": 2000, "date": "2000-01-10", "isFeatured": true},
		{"year": 2000, "date": "2000-11-02", "isFeatured": false},
		{"year": 2010, "date": "2010-06-30", "isFeatured": true},
	}
	for _, row := range rows {
		_, err := s.store.Add(s.ctx, coll, row)
		s.Require().NoError(err)
	}

	docs, err := s.store.Find(s.ctx, store.NewQuery(coll).Eq("year", 2000).Order("date", true))
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal("2000-11-02", docs[0].Data["date"])
	s.Equal("2000-01-10", docs[1].Data["date"])

	docs, err = s.store.Find(s.ctx, store.NewQuery(coll).Eq("isFeatured", true).Order("date", true).Take(1))
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal("2010-06-30", docs[0].Data["date"])

	docs, err = s.store.Find(s.ctx, store.NewQuery(coll).Eq("year", 2000).Eq("isFeatured", true))
	s.Require().NoError(err)
	s.Require().Len(docs, 1)

	docs, err = s.store.Find(s.ctx, store.NewQuery(coll).Order("date", false).Take(3))
	s.Require().NoError(err)
	s.Require().Len(docs, 3)
	s.Equal("1990-03-01", docs[0].Data["date"])
}

func (s *conformanceSuite) TestFindRejectsBadNames() {
	_, err := s.store.Find(s.ctx, store.NewQuery("events; DROP").Eq("a", 1))
	s.Error(err)
	_, err = s.store.Find(s.ctx, store.NewQuery(s.collection()).Order("date desc", true))
	s.Error(err)
}

func (s *conformanceSuite) TestConcurrentIncrements() {
	coll := s.collection()
	id, err := s.store.Add(s.ctx, coll, map[string]any{"views": 0})
	s.Require().NoError(err)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.Increment(s.ctx, coll, id, "views", 1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	doc, err := s.store.Get(s.ctx, coll, id)
	s.Require().NoError(err)
	s.Equal(float64(n), doc.Data["views"])
}

func (s *conformanceSuite) TestDecrementStopsAtZero() {
	coll := s.collection()
	id, err := s.store.Add(s.ctx, coll, map[string]any{"likes": 1})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Increment(s.ctx, coll, id, "likes", -1))
	s.Require().NoError(s.store.Increment(s.ctx, coll, id, "likes", -1))

	doc, err := s.store.Get(s.ctx, coll, id)
	s.Require().NoError(err)
	s.Equal(float64(0), doc.Data["likes"])
}

func (s *conformanceSuite) TestIncrementMissing() {
	err := s.store.Increment(s.ctx, s.collection(), "missing", "views", 1)
	s.True(errors.Is(err, store.ErrNotFound), "got %v", err)
}

func (s *conformanceSuite) TestCommitAppliesAll() {
	items, likes := s.collection(), s.collection()
	itemID, err := s.store.Add(s.ctx, items, map[string]any{"likes": 0})
	s.Require().NoError(err)

	b := store.NewBatch()
	likeID := b.Create(likes, map[string]any{"itemId": itemID})
	b.Increment(items, itemID, "likes", 1)
	s.Require().NoError(s.store.Commit(s.ctx, b))

	like, err := s.store.Get(s.ctx, likes, likeID)
	s.Require().NoError(err)
	s.Require().NotNil(like)
	item, err := s.store.Get(s.ctx, items, itemID)
	s.Require().NoError(err)
	s.Equal(float64(1), item.Data["likes"])
}

func (s *conformanceSuite) TestCommitIsAtomic() {
	items, likes := s.collection(), s.collection()

	b := store.NewBatch()
	likeID := b.Create(likes, map[string]any{"itemId": "missing"})
	b.Increment(items, "missing", "likes", 1)
	err := s.store.Commit(s.ctx, b)
	s.Require().Error(err)

	like, err := s.store.Get(s.ctx, likes, likeID)
	s.Require().NoError(err)
	s.Nil(like, "a failed batch must not leave partial writes")
}

func (s *conformanceSuite) TestSubscribe() {
	coll := s.collection()
	_, err := s.store.Add(s.ctx, coll, map[string]any{"n": 1})
	s.Require().NoError(err)

	rec := newRecorder()
	unsubscribe, err := s.store.Subscribe(s.ctx, store.NewQuery(coll), rec.listen)
	s.Require().NoError(err)
	defer unsubscribe()

	first := rec.waitFor(s.T(), func(docs []store.Document) bool { return len(docs) == 1 })
	s.Len(first, 1)

	id, err := s.store.Add(s.ctx, coll, map[string]any{"n": 2})
	s.Require().NoError(err)

	next := rec.waitFor(s.T(), func(docs []store.Document) bool { return len(docs) == 2 })
	ids := []string{next[0].ID, next[1].ID}
	s.Contains(ids, id)

	s.Require().NoError(s.store.Update(s.ctx, coll, id, map[string]any{"n": 3}))
	rec.waitFor(s.T(), func(docs []store.Document) bool {
		for _, d := range docs {
			if d.ID == id && d.Data["n"] == float64(3) {
				return true
			}
		}
		return false
	})

	unsubscribe()
	unsubscribe()
}

func (s *conformanceSuite) TestUnsubscribeStopsDeliveries() {
	coll := s.collection()
	rec := newRecorder()
	unsubscribe, err := s.store.Subscribe(s.ctx, store.NewQuery(coll), rec.listen)
	s.Require().NoError(err)
	rec.waitFor(s.T(), func(docs []store.Document) bool { return len(docs) == 0 })

	unsubscribe()
	before := rec.count()

	_, err = s.store.Add(s.ctx, coll, map[string]any{"n": 1})
	s.Require().NoError(err)
	time.Sleep(200 * time.Millisecond)
	s.Equal(before, rec.count())
}

// recorder collects subscription snapshots.
type recorder struct {
	mu        sync.Mutex
	snapshots [][]store.Document
	changed   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{changed: make(chan struct{}, 1)}
}

func (r *recorder) listen(docs []store.Document, err error) {
	if err != nil {
		return
	}
	r.mu.Lock()
	r.snapshots = append(r.snapshots, docs)
	r.mu.Unlock()
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

// waitFor blocks until a snapshot satisfies ok and returns it.
func (r *recorder) waitFor(t *testing.T, ok func([]store.Document) bool) []store.Document {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		r.mu.Lock()
		for i := len(r.snapshots) - 1; i >= 0; i-- {
			if ok(r.snapshots[i]) {
				docs := r.snapshots[i]
				r.mu.Unlock()
				return docs
			}
		}
		r.mu.Unlock()

		select {
		case <-r.changed:
		case <-deadline:
			require.FailNow(t, "timed out waiting for snapshot")
			return nil
		}
	}
}
