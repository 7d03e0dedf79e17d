package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acervo-cultural/acervo/pkg/models"
)

func TestTimelineYearDerivedFromDate(t *testing.T) {
	svc := NewTimelineService(newMemory(t), tickingClock())

	for _, date := range []string{"1987-09-14", "2001-01-01T10:00:00Z", "1964-03", "2024-12-31T23:59:59-03:00"} {
		id, err := svc.Create(bg, models.TimelineEvent{Title: date, Date: date, Year: 1})
		require.NoError(t, err, date)

		e, err := svc.GetByID(bg, id)
		require.NoError(t, err)
		want, err := models.YearOf(date)
		require.NoError(t, err)
		assert.Equal(t, want, e.Year, date)
	}

	_, err := svc.Create(bg, models.TimelineEvent{Title: "bad", Date: "someday"})
	assert.Error(t, err)
}

func TestTimelineGetByYearSortedDescending(t *testing.T) {
	svc := NewTimelineService(newMemory(t), tickingClock())
	for _, date := range []string{"1990-05-01", "2000-02-10", "2000-09-30"} {
		_, err := svc.Create(bg, models.TimelineEvent{Title: date, Date: date})
		require.NoError(t, err)
	}

	got, err := svc.GetByYear(bg, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2000-09-30", got[0].Date)
	assert.Equal(t, "2000-02-10", got[1].Date)

	years, err := svc.GetYears(bg)
	require.NoError(t, err)
	assert.Equal(t, []int{2000, 1990}, years)
}

func TestTimelineStoresNormalizedDates(t *testing.T) {
	svc := NewTimelineService(newMemory(t), tickingClock())
	for _, date := range []string{" 2000-09-30", "2000-02-10T08:00:00.250Z", "2000-05-01 "} {
		_, err := svc.Create(bg, models.TimelineEvent{Title: date, Date: date})
		require.NoError(t, err)
	}

	got, err := svc.GetAll(bg, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2000-09-30", got[0].Date)
	assert.Equal(t, "2000-05-01", got[1].Date)
	assert.Equal(t, "2000-02-10T08:00:00Z", got[2].Date)

	date := "  1999-01-02"
	require.NoError(t, svc.Update(bg, got[0].ID, models.TimelinePatch{Date: &date}))
	e, err := svc.GetByID(bg, got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "1999-01-02", e.Date)
	assert.Equal(t, 1999, e.Year)
}

func TestTimelineUpdateMovesYear(t *testing.T) {
	svc := NewTimelineService(newMemory(t), tickingClock())
	id, err := svc.Create(bg, models.TimelineEvent{Title: "x", Date: "1990-05-01", Location: "Reitoria"})
	require.NoError(t, err)

	date := "2005-07-07"
	require.NoError(t, svc.Update(bg, id, models.TimelinePatch{Date: &date}))

	e, err := svc.GetByID(bg, id)
	require.NoError(t, err)
	assert.Equal(t, 2005, e.Year)
	assert.Equal(t, "Reitoria", e.Location)

	bad := "not a date"
	assert.Error(t, svc.Update(bg, id, models.TimelinePatch{Date: &bad}))
}

func TestTimelineSubscribeByYear(t *testing.T) {
	svc := NewTimelineService(newMemory(t), tickingClock())
	ch, fn := collect[models.TimelineEvent]()
	unsubscribe, err := svc.SubscribeByYear(bg, 1990, fn)
	require.NoError(t, err)
	defer unsubscribe()

	waitFor(t, ch, func(items []models.TimelineEvent) bool { return len(items) == 0 })

	_, err = svc.Create(bg, models.TimelineEvent{Title: "other", Date: "1991-01-01"})
	require.NoError(t, err)
	id, err := svc.Create(bg, models.TimelineEvent{Title: "match", Date: "1990-01-01"})
	require.NoError(t, err)

	got := waitFor(t, ch, func(items []models.TimelineEvent) bool { return len(items) == 1 })
	assert.Equal(t, id, got[0].ID)
}
