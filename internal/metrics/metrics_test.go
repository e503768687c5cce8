package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, r *Recorder) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, family := range families {
		out[family.GetName()] = family
	}
	return out
}

func findMetric(family *dto.MetricFamily, labels map[string]string) *dto.Metric {
	if family == nil {
		return nil
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
			return metric
		}
	}
	return nil
}

func TestObserveCache(t *testing.T) {
	r := NewRecorder(nil)

	r.ObserveCache("identity", CacheOperationLookup, CacheHit)
	r.ObserveCache("identity", CacheOperationLookup, CacheHit)
	r.ObserveCache("profile", CacheOperationStore, CacheStored)
	r.ObserveCache("", CacheOperationLookup, CacheMiss)

	families := gather(t, r)
	family := families["tiertrack_cache_operations_total"]
	if family == nil {
		t.Fatalf("cache operations metric not registered")
	}

	hit := findMetric(family, map[string]string{"cache": "identity", "operation": "lookup", "result": "hit"})
	if hit == nil || hit.GetCounter().GetValue() != 2 {
		t.Fatalf("expected 2 identity lookup hits, got %v", hit)
	}

	unknown := findMetric(family, map[string]string{"cache": "unknown", "result": "miss"})
	if unknown == nil || unknown.GetCounter().GetValue() != 1 {
		t.Fatalf("empty cache label must normalize to unknown, got %v", unknown)
	}
}

func TestObserveObservation(t *testing.T) {
	r := NewRecorder(nil)

	r.ObserveObservation(ObservationRecorded, 3)
	r.ObserveObservation(ObservationDeduplicated, 1)
	r.ObserveObservation(ObservationSkipped, 0) // no-op

	families := gather(t, r)
	family := families["tiertrack_history_observations_total"]
	if family == nil {
		t.Fatalf("observations metric not registered")
	}

	recorded := findMetric(family, map[string]string{"result": "recorded"})
	if recorded == nil || recorded.GetCounter().GetValue() != 3 {
		t.Fatalf("expected 3 recorded, got %v", recorded)
	}
	if skipped := findMetric(family, map[string]string{"result": "skipped"}); skipped != nil {
		t.Fatalf("zero-count outcomes must not create a series, got %v", skipped)
	}
}

func TestSetTrackedPlayers(t *testing.T) {
	r := NewRecorder(nil)

	r.SetTrackedPlayers(7)

	families := gather(t, r)
	family := families["tiertrack_history_tracked_players"]
	if family == nil {
		t.Fatalf("tracked players gauge not registered")
	}
	if got := family.GetMetric()[0].GetGauge().GetValue(); got != 7 {
		t.Fatalf("expected gauge 7, got %v", got)
	}
}

func TestObserveSave(t *testing.T) {
	r := NewRecorder(nil)

	r.ObserveSave(SaveOK, 2*time.Millisecond)
	r.ObserveSave(SaveError, time.Millisecond)

	families := gather(t, r)
	saves := families["tiertrack_history_saves_total"]
	if saves == nil {
		t.Fatalf("saves metric not registered")
	}
	ok := findMetric(saves, map[string]string{"result": "ok"})
	if ok == nil || ok.GetCounter().GetValue() != 1 {
		t.Fatalf("expected 1 ok save, got %v", ok)
	}

	duration := families["tiertrack_history_save_duration_seconds"]
	if duration == nil {
		t.Fatalf("save duration histogram not registered")
	}
	if got := duration.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Fatalf("expected 2 histogram samples, got %d", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder

	r.ObserveCache("identity", CacheOperationLookup, CacheHit)
	r.ObserveObservation(ObservationRecorded, 1)
	r.SetTrackedPlayers(1)
	r.ObserveSave(SaveOK, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil recorder handler must report unavailable, got %d", rec.Code)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	r := NewRecorder(nil)
	r.SetTrackedPlayers(1)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected exposition output")
	}
}
