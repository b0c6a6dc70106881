package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/pkg/trends"
)

func TestMemoryStore_UpsertPreservesStartedAt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := duneRecord()
	id, err := s.Upsert(ctx, first)
	require.NoError(t, err)

	again := duneRecord()
	again.StartedAt = first.StartedAt.Add(72 * time.Hour)
	again.SearchVolume = 900
	again.Breakdown = []string{"dune"}
	ended := again.StartedAt.Add(time.Hour)
	again.EndedAt = &ended

	id2, err := s.Upsert(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	stored, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, first.StartedAt, stored.StartedAt)
	assert.Equal(t, int64(900), stored.SearchVolume)
	assert.Equal(t, []string{"dune"}, stored.Breakdown)
	require.NotNil(t, stored.EndedAt)
}

func TestMemoryStore_SameNameDifferentCategoryIsDistinct(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := duneRecord()
	b := duneRecord()
	b.Category = "movies"

	idA, err := s.Upsert(ctx, a)
	require.NoError(t, err)
	idB, err := s.Upsert(ctx, b)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)
}

func TestMemoryStore_SelectUnprocessedExcludesMarked(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []int64
	for i, name := range []string{"a", "b", "c", "d"} {
		rec := trends.TrendRecord{Name: name, Category: "all", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		id, err := s.Upsert(ctx, rec)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.RecordProcessed(ctx, ProcessedMarker{TrendID: ids[1], Topic: "b", TopicCategory: "unknown"}))

	for _, limit := range []int{0, 1, 2, 10} {
		for _, cats := range [][]string{nil, {"all"}, {"other"}} {
			got, err := s.SelectUnprocessed(ctx, cats, limit)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(got), limit)
			for _, rec := range got {
				assert.NotEqual(t, ids[1], rec.ID, "processed trend returned for limit=%d cats=%v", limit, cats)
			}
		}
	}
}

func TestMemoryStore_SelectUnprocessedOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	endedEarly := base.Add(24 * time.Hour)
	endedLate := base.Add(48 * time.Hour)

	for _, rec := range []trends.TrendRecord{
		{Name: "ended-early", Category: "all", StartedAt: base, EndedAt: &endedEarly},
		{Name: "ongoing-old", Category: "all", StartedAt: base},
		{Name: "ended-late", Category: "all", StartedAt: base, EndedAt: &endedLate},
		{Name: "ongoing-new", Category: "all", StartedAt: base.Add(time.Hour)},
	} {
		_, err := s.Upsert(ctx, rec)
		require.NoError(t, err)
	}

	got, err := s.SelectUnprocessed(ctx, nil, 10)
	require.NoError(t, err)

	var names []string
	for _, r := range got {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"ongoing-new", "ongoing-old", "ended-late", "ended-early"}, names)
}
