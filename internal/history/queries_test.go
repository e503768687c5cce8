package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func observe(t *testing.T, store *Store, now *time.Time, playerID string, tiers map[string]string) {
	t.Helper()
	_, err := store.RecordObservation(playerID, "Alice", tiers)
	require.NoError(t, err)
	*now = now.Add(24 * time.Hour)
}

func TestBestRankingPicksHighestPoints(t *testing.T) {
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.Local)
	store := newTestStore(t, nil, &now)

	observe(t, store, &now, "uuid-1", map[string]string{
		"crystal": "HT2", // 28
		"sword":   "LT1", // 45
		"uhc":     "LT4", // 3
	})

	best, ok := store.BestRanking("uuid-1")
	require.True(t, ok)
	require.Equal(t, Best{Category: "sword", Tier: "LT1", Points: 45}, best)
}

func TestBestRankingUsesLatestSnapshotPerCategory(t *testing.T) {
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.Local)
	store := newTestStore(t, nil, &now)

	observe(t, store, &now, "uuid-1", map[string]string{"crystal": "HT1", "axe": "HT3"})
	// The crystal demotion makes axe the current best even though crystal
	// once scored higher.
	observe(t, store, &now, "uuid-1", map[string]string{"crystal": "LT5"})

	best, ok := store.BestRanking("uuid-1")
	require.True(t, ok)
	require.Equal(t, "axe", best.Category)
	require.Equal(t, 10, best.Points)
}

func TestBestRankingTieResolvesToFixedOrder(t *testing.T) {
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.Local)
	store := newTestStore(t, nil, &now)

	// sword precedes axe in the game-mode order; equal points keep sword.
	observe(t, store, &now, "uuid-1", map[string]string{"axe": "HT2", "sword": "HT2"})

	best, ok := store.BestRanking("uuid-1")
	require.True(t, ok)
	require.Equal(t, "sword", best.Category)
}

func TestBestRankingAbsentPlayer(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, nil, &now)

	_, ok := store.BestRanking("uuid-missing")
	require.False(t, ok)
}

func TestTrendDirections(t *testing.T) {
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.Local)
	store := newTestStore(t, nil, &now)

	observe(t, store, &now, "uuid-1", map[string]string{"crystal": "LT3", "sword": "HT1", "axe": "HT4"})
	observe(t, store, &now, "uuid-1", map[string]string{"crystal": "HT2", "sword": "LT2", "axe": "LT4"})
	observe(t, store, &now, "uuid-1", map[string]string{"axe": "HT4"})

	require.Equal(t, TrendImproving, store.Trend("uuid-1", "crystal"))
	require.Equal(t, TrendDeclining, store.Trend("uuid-1", "sword"))
	require.Equal(t, TrendStable, store.Trend("uuid-1", "axe"))
}

func TestTrendUnknownCases(t *testing.T) {
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.Local)
	store := newTestStore(t, nil, &now)

	require.Equal(t, TrendUnknown, store.Trend("uuid-missing", "crystal"))

	observe(t, store, &now, "uuid-1", map[string]string{"crystal": "HT2"})
	require.Equal(t, TrendUnknown, store.Trend("uuid-1", "crystal"))
	require.Equal(t, TrendUnknown, store.Trend("uuid-1", "sword"))
}
