package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docs(values ...map[string]any) []Document {
	out := make([]Document, len(values))
	for i, v := range values {
		out[i] = Document{ID: string(rune('a' + i)), Data: v}
	}
	return out
}

func TestApplyFiltersSortsAndLimits(t *testing.T) {
	in := docs(
		map[string]any{"year": float64(2000), "date": "2000-01-10"},
		map[string]any{"year": float64(1990), "date": "1990-03-01"},
		map[string]any{"year": float64(2000), "date": "2000-11-02"},
	)

	q, err := NewQuery("timeline").Eq("year", 2000).Order("date", true).Normalized()
	require.NoError(t, err)

	out := Apply(q, in)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "a", out[1].ID)

	out = Apply(q.Take(1), in)
	require.Len(t, out, 1)
	assert.Equal(t, "c", out[0].ID)
}

func TestApplyMissingFieldDoesNotMatch(t *testing.T) {
	in := docs(
		map[string]any{"title": "no flag"},
		map[string]any{"title": "flagged", "isFeatured": true},
		map[string]any{"title": "unflagged", "isFeatured": false},
	)
	q, err := NewQuery("events").Eq("isFeatured", true).Normalized()
	require.NoError(t, err)

	out := Apply(q, in)
	require.Len(t, out, 1)
	assert.Equal(t, "flagged", out[0].Data["title"])
}

func TestEqDoesNotAliasFilters(t *testing.T) {
	base := NewQuery("events").Eq("type", "Música")
	a := base.Eq("year", 2000)
	b := base.Eq("year", 2010)

	assert.Len(t, base.Where, 1)
	assert.Equal(t, 2000, a.Where[1].Value)
	assert.Equal(t, 2010, b.Where[1].Value)
}

func TestNormalizedRejectsBadNames(t *testing.T) {
	_, err := NewQuery("events").Eq("title = 1 OR 1", 1).Normalized()
	assert.Error(t, err)
	_, err = NewQuery("ev ents").Normalized()
	assert.Error(t, err)
	_, err = NewQuery("events").Order("date;", true).Normalized()
	assert.Error(t, err)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, CompareValues(nil, false))
	assert.Equal(t, -1, CompareValues(false, true))
	assert.Equal(t, 1, CompareValues(float64(3), float64(2)))
	assert.Equal(t, 0, CompareValues("b", "b"))
	assert.Equal(t, -1, CompareValues(float64(10), "a"))
}

func TestTimestampStringsSortChronologically(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	earlier, err := Normalize(base)
	require.NoError(t, err)
	later, err := Normalize(base.Add(26 * time.Hour))
	require.NoError(t, err)

	assert.Equal(t, -1, CompareValues(earlier, later))
}
