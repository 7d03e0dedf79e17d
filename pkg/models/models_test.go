package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearOf(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2000-05-10", 2000},
		{"1990-01-01T00:00:00Z", 1990},
		{"1999-12-31T23:30:00-03:00", 1999},
		{"2024-02-29T10:15:30.123Z", 2024},
		{"1985-07", 1985},
		{"1968", 1968},
		{" 2010-03-04 ", 2010},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			got, err := YearOf(tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestYearOfRejectsGarbage(t *testing.T) {
	for _, date := range []string{"", "yesterday", "10/05/2000", "2000-13-01"} {
		_, err := YearOf(date)
		assert.Error(t, err, date)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{" 2010-03-04 ", "2010-03-04"},
		{"1985-07", "1985-07"},
		{"1968", "1968"},
		{"2024-02-29T10:15:30.123Z", "2024-02-29T10:15:30Z"},
		{"1999-12-31T23:30:00-03:00", "1999-12-31T23:30:00-03:00"},
		{"2001-01-01T10:00", "2001-01-01T10:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			got, err := NormalizeDate(tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeDate("yesterday")
	assert.Error(t, err)
}

func TestEnums(t *testing.T) {
	assert.True(t, EventTypeMusic.Valid())
	assert.False(t, EventType("Music").Valid())

	assert.True(t, MediaVideo.Valid())
	assert.False(t, MediaType("audio").Valid())

	assert.True(t, RoleEditor.CanEdit())
	assert.True(t, RoleAdmin.CanEdit())
	assert.False(t, RoleViewer.CanEdit())
	assert.False(t, Role("owner").Valid())
}

func TestItemTypeCollection(t *testing.T) {
	assert.Equal(t, CollectionEvents, ItemEvent.Collection())
	assert.Equal(t, CollectionGallery, ItemGallery.Collection())
	assert.Equal(t, CollectionTimeline, ItemTimeline.Collection())
	assert.Equal(t, "", ItemType("page").Collection())
	assert.False(t, ItemType("page").Valid())
}
