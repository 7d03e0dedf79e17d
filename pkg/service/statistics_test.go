package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acervo-cultural/acervo/pkg/models"
)

func TestStatisticsRecompute(t *testing.T) {
	s := newMemory(t)
	clock := tickingClock()
	events := NewEventsService(s, clock)
	gallery := NewGalleryService(s, clock)
	timeline := NewTimelineService(s, clock)
	users := NewUsersService(s, clock)
	stats := NewStatisticsService(s, clock)

	got, err := stats.Get(bg)
	require.NoError(t, err)
	assert.Nil(t, got)

	e1, err := events.Create(bg, models.Event{Title: "a", Type: models.EventTypeMusic})
	require.NoError(t, err)
	_, err = events.Create(bg, models.Event{Title: "b", Type: models.EventTypeMusic})
	require.NoError(t, err)
	_, err = events.Create(bg, models.Event{Title: "c", Type: models.EventTypeTheater})
	require.NoError(t, err)
	g, err := gallery.Create(bg, models.GalleryItem{Title: "g", Type: models.MediaImage})
	require.NoError(t, err)
	_, err = timeline.Create(bg, models.TimelineEvent{Title: "t", Date: "1990-01-01"})
	require.NoError(t, err)
	_, err = users.EnsureProfile(bg, Identity{UserID: "u1"})
	require.NoError(t, err)

	require.NoError(t, events.IncrementViews(bg, e1))
	require.NoError(t, gallery.IncrementViews(bg, g))
	require.NoError(t, gallery.IncrementLikes(bg, g))

	computed, err := stats.Recompute(bg)
	require.NoError(t, err)
	assert.Equal(t, 3, computed.TotalEvents)
	assert.Equal(t, 1, computed.TotalGalleryItems)
	assert.Equal(t, 1, computed.TotalTimelineEvents)
	assert.Equal(t, 1, computed.TotalUsers)
	assert.Equal(t, int64(2), computed.TotalViews)
	assert.Equal(t, int64(1), computed.TotalLikes)
	assert.Equal(t, 2, computed.EventsByType[models.EventTypeMusic])
	assert.Equal(t, 1, computed.EventsByType[models.EventTypeTheater])

	stored, err := stats.Get(bg)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.StatisticsID, stored.ID)
	assert.Equal(t, computed.EventsByType, stored.EventsByType)
	assert.True(t, computed.UpdatedAt.Equal(stored.UpdatedAt))
}
