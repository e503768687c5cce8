package engine

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/tiertrack/tiertrack/internal/cache"
	"github.com/tiertrack/tiertrack/internal/history"
	"github.com/tiertrack/tiertrack/internal/metrics"
	"github.com/tiertrack/tiertrack/internal/tier"
)

const testPlayerID = "4566e69f-c907-48ee-8d71-d7ba5aa00d20"

func newTestEngine(t *testing.T, recorder *metrics.Recorder) *Engine {
	t.Helper()
	registry, err := cache.NewRegistry(cache.RegistryOptions{
		Backend:     "memory",
		IdentityTTL: time.Hour,
		ProfileTTL:  time.Hour,
		ListingTTL:  time.Hour,
	})
	require.NoError(t, err)

	store, err := history.NewStore(history.StoreOptions{Table: tier.DefaultTable()})
	require.NoError(t, err)

	eng, err := New(nil, Options{Registry: registry, Store: store, Metrics: recorder})
	require.NoError(t, err)
	return eng
}

func counterValue(t *testing.T, recorder *metrics.Recorder, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := recorder.Gatherer().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := true
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					matched = false
					break
				}
			}
			if matched {
				return metricValue(metric)
			}
		}
	}
	return 0
}

func metricValue(metric *dto.Metric) float64 {
	if metric.GetCounter() != nil {
		return metric.GetCounter().GetValue()
	}
	return metric.GetGauge().GetValue()
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
}

func TestRecordObservationRejectsMalformedPlayerID(t *testing.T) {
	eng := newTestEngine(t, nil)

	_, err := eng.RecordObservation("not-a-uuid", "Alice", map[string]string{"crystal": "HT2"})
	require.Error(t, err)
}

func TestRecordObservationNormalizesPlayerID(t *testing.T) {
	eng := newTestEngine(t, nil)

	// Uppercase ids collapse to the canonical lowercase form.
	upper := "4566E69F-C907-48EE-8D71-D7BA5AA00D20"
	_, err := eng.RecordObservation(upper, "Alice", map[string]string{"crystal": "HT2"})
	require.NoError(t, err)

	_, ok := eng.History(testPlayerID)
	require.True(t, ok)
}

func TestRecordObservationPublishesMetrics(t *testing.T) {
	recorder := metrics.NewRecorder(nil)
	eng := newTestEngine(t, recorder)

	result, err := eng.RecordObservation(testPlayerID, "Alice", map[string]string{
		"crystal": "HT2",
		"sword":   "nonsense",
	})
	require.NoError(t, err)
	require.Equal(t, history.ObservationResult{Recorded: 1, Skipped: 1}, result)

	require.Equal(t, 1.0, counterValue(t, recorder, "tiertrack_history_observations_total", map[string]string{"result": "recorded"}))
	require.Equal(t, 1.0, counterValue(t, recorder, "tiertrack_history_observations_total", map[string]string{"result": "skipped"}))
	require.Equal(t, 1.0, counterValue(t, recorder, "tiertrack_history_tracked_players", nil))
	require.Equal(t, 1.0, counterValue(t, recorder, "tiertrack_history_saves_total", map[string]string{"result": "ok"}))
}

func TestCachePassThroughPublishesMetrics(t *testing.T) {
	recorder := metrics.NewRecorder(nil)
	eng := newTestEngine(t, recorder)
	ctx := context.Background()

	_, ok, err := eng.LookupIdentity(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, eng.StoreIdentity(ctx, "alice", cache.PlayerIdentity{UUID: testPlayerID, Name: "Alice"}))

	identity, ok, err := eng.LookupIdentity(ctx, "ALICE")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testPlayerID, identity.UUID)

	require.Equal(t, 1.0, counterValue(t, recorder, "tiertrack_cache_operations_total",
		map[string]string{"cache": "identity", "operation": "lookup", "result": "miss"}))
	require.Equal(t, 1.0, counterValue(t, recorder, "tiertrack_cache_operations_total",
		map[string]string{"cache": "identity", "operation": "lookup", "result": "hit"}))
	require.Equal(t, 1.0, counterValue(t, recorder, "tiertrack_cache_operations_total",
		map[string]string{"cache": "identity", "operation": "store", "result": "stored"}))
}

func TestQueriesPassThrough(t *testing.T) {
	eng := newTestEngine(t, nil)

	_, err := eng.RecordObservation(testPlayerID, "Alice", map[string]string{"crystal": "HT2", "uhc": "LT5"})
	require.NoError(t, err)

	best, ok := eng.BestRanking(testPlayerID)
	require.True(t, ok)
	require.Equal(t, "crystal", best.Category)

	require.Len(t, eng.Snapshots(testPlayerID, "uhc"), 1)
	require.Equal(t, history.TrendUnknown, eng.Trend(testPlayerID, "uhc"))
}

func TestStatsAggregation(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	require.NoError(t, eng.StoreListing(ctx, "crystal", cache.Listing{Mode: "crystal"}))
	_, err := eng.RecordObservation(testPlayerID, "Alice", map[string]string{"crystal": "HT2"})
	require.NoError(t, err)

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Caches.Listing)
	require.Equal(t, 1, stats.TrackedPlayers)
}

func TestClearCaches(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	require.NoError(t, eng.StoreProfile(ctx, testPlayerID, cache.PlayerProfile{UUID: testPlayerID}))
	require.NoError(t, eng.ClearCaches(ctx))

	_, ok, err := eng.LookupProfile(ctx, testPlayerID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReloadSwapsTable(t *testing.T) {
	eng := newTestEngine(t, nil)

	table, err := tier.NewTable(map[string]int{"HT1": 100})
	require.NoError(t, err)
	eng.Reload(table)
	eng.Reload(nil) // no-op

	_, err = eng.RecordObservation(testPlayerID, "Alice", map[string]string{"crystal": "HT1"})
	require.NoError(t, err)
	require.Equal(t, 100, eng.Snapshots(testPlayerID, "crystal")[0].Points)
}

func TestClose(t *testing.T) {
	eng := newTestEngine(t, nil)
	require.NoError(t, eng.Close(context.Background()))
}
