package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repset/repset/internal/catalog"
)

func TestTokenScoreOverlapAndPenalty(t *testing.T) {
	query := []string{"bench", "press"}

	assert.InDelta(t, 2.0, TokenScore(query, []string{"bench", "press"}), 1e-9)
	assert.InDelta(t, 1.9, TokenScore(query, []string{"barbell", "bench", "press"}), 1e-9)
	assert.InDelta(t, 1.0, TokenScore(query, []string{"bench"}), 1e-9)
	assert.InDelta(t, 0.0, TokenScore(query, []string{"squat"}), 1e-9)
}

func TestTokenScoreFlooredAtZero(t *testing.T) {
	score := TokenScore([]string{"row"}, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"})
	assert.Equal(t, 0.0, score)
}

func TestRankBestPrefersExactOverSuperset(t *testing.T) {
	candidates := []catalog.Entry{
		{ID: "1", Name: "Barbell Bench Press"},
		{ID: "2", Name: "Bench Press"},
		{ID: "3", Name: "Incline Bench Press"},
	}
	best, ok := RankBest("bench press", candidates, nil)
	require.True(t, ok)
	assert.Equal(t, "2", best.ID)
}

func TestRankBestExpandsQueryAbbreviations(t *testing.T) {
	candidates := []catalog.Entry{
		{ID: "1", Name: "Dumbbell Bench Press"},
		{ID: "2", Name: "Barbell Bench Press"},
	}
	best, ok := RankBest("db bench press", candidates, nil)
	require.True(t, ok)
	assert.Equal(t, "1", best.ID)
}

func TestRankBestTiesKeepSearchOrder(t *testing.T) {
	candidates := []catalog.Entry{
		{ID: "first", Name: "Cable Row"},
		{ID: "second", Name: "Cable Fly"},
	}
	// Both score zero overlap against an unrelated query; the search
	// order must decide, every time.
	for i := 0; i < 20; i++ {
		best, ok := RankBest("weighted dip", candidates, nil)
		require.True(t, ok)
		assert.Equal(t, "first", best.ID)
	}
}

func TestRankBestEmptyCandidates(t *testing.T) {
	_, ok := RankBest("bench press", nil, nil)
	assert.False(t, ok)
}
