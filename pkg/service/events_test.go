package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/store"
)

func TestEventCreateStartsWithZeroCounters(t *testing.T) {
	svc := NewEventsService(newMemory(t), tickingClock())

	id, err := svc.Create(bg, models.Event{
		Title: "A",
		Type:  models.EventTypeMusic,
		Date:  time.Date(2023, 5, 10, 19, 0, 0, 0, time.UTC),
		Views: 40,
		Likes: 7,
	})
	require.NoError(t, err)

	e, err := svc.GetByID(bg, id)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, id, e.ID)
	assert.Zero(t, e.Views)
	assert.Zero(t, e.Likes)
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)
	assert.False(t, e.CreatedAt.IsZero())
	assert.Equal(t, []string{}, e.Images)
}

func TestEventConcurrentIncrementViews(t *testing.T) {
	svc := NewEventsService(newMemory(t), tickingClock())
	id, err := svc.Create(bg, models.Event{Title: "A"})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.IncrementViews(bg, id))
		}()
	}
	wg.Wait()

	e, err := svc.GetByID(bg, id)
	require.NoError(t, err)
	assert.Equal(t, int64(n), e.Views)
}

func TestEventLikeCounters(t *testing.T) {
	svc := NewEventsService(newMemory(t), tickingClock())
	id, err := svc.Create(bg, models.Event{Title: "A"})
	require.NoError(t, err)

	require.NoError(t, svc.IncrementLikes(bg, id))
	require.NoError(t, svc.DecrementLikes(bg, id))
	require.NoError(t, svc.DecrementLikes(bg, id))

	e, err := svc.GetByID(bg, id)
	require.NoError(t, err)
	assert.Zero(t, e.Likes)

	err = svc.IncrementViews(bg, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestEventUpdateDoesNotClobber(t *testing.T) {
	svc := NewEventsService(newMemory(t), tickingClock())
	id, err := svc.Create(bg, models.Event{
		Title:    "A",
		Location: "Teatro Municipal",
		Category: "Concerto",
		Images:   []string{"a.jpg"},
	})
	require.NoError(t, err)
	before, err := svc.GetByID(bg, id)
	require.NoError(t, err)

	title := "B"
	require.NoError(t, svc.Update(bg, id, models.EventPatch{Title: &title}))

	after, err := svc.GetByID(bg, id)
	require.NoError(t, err)
	assert.Equal(t, "B", after.Title)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	after.Title, after.UpdatedAt = before.Title, before.UpdatedAt
	assert.Equal(t, *before, *after)
}

func TestEventUpdateMissing(t *testing.T) {
	svc := NewEventsService(newMemory(t), tickingClock())
	title := "B"
	err := svc.Update(bg, "missing", models.EventPatch{Title: &title})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestEventDeleteThenGet(t *testing.T) {
	svc := NewEventsService(newMemory(t), tickingClock())
	id, err := svc.Create(bg, models.Event{Title: "A"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(bg, id))
	e, err := svc.GetByID(bg, id)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestGetFeaturedAfterUpdate(t *testing.T) {
	svc := NewEventsService(newMemory(t), tickingClock())
	id, err := svc.Create(bg, models.Event{
		Title: "A",
		Type:  models.EventTypeMusic,
		Date:  time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	featured, err := svc.GetFeatured(bg, 10)
	require.NoError(t, err)
	assert.Empty(t, featured)

	yes := true
	require.NoError(t, svc.Update(bg, id, models.EventPatch{IsFeatured: &yes}))

	featured, err = svc.GetFeatured(bg, 10)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, id, featured[0].ID)
}

func TestEventQueries(t *testing.T) {
	svc := NewEventsService(newMemory(t), tickingClock())
	mk := func(title, category string, typ models.EventType, year int) string {
		id, err := svc.Create(bg, models.Event{
			Title:    title,
			Category: category,
			Type:     typ,
			Date:     time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		return id
	}
	mk("old", "Concerto", models.EventTypeMusic, 1999)
	mk("mid", "Oficina", models.EventTypeDance, 2010)
	newest := mk("new", "Concerto", models.EventTypeMusic, 2020)

	all, err := svc.GetAll(bg, 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newest, all[0].ID)

	byCat, err := svc.GetByCategory(bg, "Concerto")
	require.NoError(t, err)
	require.Len(t, byCat, 2)
	assert.Equal(t, "new", byCat[0].Title)

	byType, err := svc.GetByType(bg, models.EventTypeDance)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "mid", byType[0].Title)

	byYear, err := svc.GetByYear(bg, 1999)
	require.NoError(t, err)
	require.Len(t, byYear, 1)
	assert.Equal(t, "old", byYear[0].Title)
}

func TestEventSubscribeSeesNewDocument(t *testing.T) {
	svc := NewEventsService(newMemory(t), tickingClock())
	_, err := svc.Create(bg, models.Event{Title: "first"})
	require.NoError(t, err)

	ch, fn := collect[models.Event]()
	unsubscribe, err := svc.Subscribe(bg, 0, fn)
	require.NoError(t, err)
	defer unsubscribe()

	initial := waitFor(t, ch, func(items []models.Event) bool { return len(items) == 1 })

	id, err := svc.Create(bg, models.Event{Title: "second"})
	require.NoError(t, err)

	next := waitFor(t, ch, func(items []models.Event) bool { return len(items) == len(initial)+1 })
	ids := make([]string, len(next))
	for i, e := range next {
		ids[i] = e.ID
	}
	assert.Contains(t, ids, id)
}
