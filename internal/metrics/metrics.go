package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the cache method being instrumented.
type CacheOperation string

const (
	// CacheOperationLookup records sub-cache lookup calls.
	CacheOperationLookup CacheOperation = "lookup"
	// CacheOperationStore records sub-cache store attempts.
	CacheOperationStore CacheOperation = "store"
)

// CacheOutcome captures the result of a cache operation.
type CacheOutcome string

const (
	// CacheHit indicates the lookup reused a cached value.
	CacheHit CacheOutcome = "hit"
	// CacheMiss indicates no live value was present.
	CacheMiss CacheOutcome = "miss"
	// CacheStored indicates the entry was written.
	CacheStored CacheOutcome = "stored"
	// CacheError indicates the operation failed.
	CacheError CacheOutcome = "error"
)

// ObservationOutcome captures what the history store did with one category
// of an observation.
type ObservationOutcome string

const (
	// ObservationRecorded means a new snapshot was appended.
	ObservationRecorded ObservationOutcome = "recorded"
	// ObservationDeduplicated means the same-day duplicate was dropped.
	ObservationDeduplicated ObservationOutcome = "deduplicated"
	// ObservationSkipped means the category or tier label was unusable.
	ObservationSkipped ObservationOutcome = "skipped"
)

// SaveOutcome captures the result of a history save.
type SaveOutcome string

const (
	// SaveOK indicates the history file was replaced successfully.
	SaveOK SaveOutcome = "ok"
	// SaveError indicates the write failed.
	SaveError SaveOutcome = "error"
)

// Recorder publishes Prometheus metrics for engine activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	cacheOperations *prometheus.CounterVec

	observations   *prometheus.CounterVec
	trackedPlayers prometheus.Gauge

	historySaves *prometheus.CounterVec
	saveDuration prometheus.Histogram
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiertrack",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Cache operations executed against the registry sub-caches.",
	}, []string{"cache", "operation", "result"})

	observations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiertrack",
		Subsystem: "history",
		Name:      "observations_total",
		Help:      "Per-category outcomes of recorded tier observations.",
	}, []string{"result"})

	trackedPlayers := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tiertrack",
		Subsystem: "history",
		Name:      "tracked_players",
		Help:      "Number of players with at least one recorded snapshot.",
	})

	historySaves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiertrack",
		Subsystem: "history",
		Name:      "saves_total",
		Help:      "History file save attempts by result.",
	}, []string{"result"})

	saveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tiertrack",
		Subsystem: "history",
		Name:      "save_duration_seconds",
		Help:      "Latency distribution for history file saves.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	})

	reg.MustRegister(cacheOperations, observations, trackedPlayers, historySaves, saveDuration)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		cacheOperations: cacheOperations,
		observations:    observations,
		trackedPlayers:  trackedPlayers,
		historySaves:    historySaves,
		saveDuration:    saveDuration,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveCache records one registry sub-cache operation.
func (r *Recorder) ObserveCache(cache string, operation CacheOperation, result CacheOutcome) {
	if r == nil {
		return
	}
	r.cacheOperations.WithLabelValues(normalizeLabel(cache), string(operation), string(result)).Inc()
}

// ObserveObservation records per-category outcomes of one observation.
func (r *Recorder) ObserveObservation(outcome ObservationOutcome, count int) {
	if r == nil || count <= 0 {
		return
	}
	r.observations.WithLabelValues(string(outcome)).Add(float64(count))
}

// SetTrackedPlayers publishes the current tracked-player count.
func (r *Recorder) SetTrackedPlayers(count int) {
	if r == nil {
		return
	}
	r.trackedPlayers.Set(float64(count))
}

// ObserveSave records the result and latency of a history save attempt.
func (r *Recorder) ObserveSave(result SaveOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	r.historySaves.WithLabelValues(string(result)).Inc()
	r.saveDuration.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
