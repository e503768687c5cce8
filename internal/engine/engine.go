package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tiertrack/tiertrack/internal/cache"
	"github.com/tiertrack/tiertrack/internal/history"
	"github.com/tiertrack/tiertrack/internal/metrics"
	"github.com/tiertrack/tiertrack/internal/tier"
)

// Engine is the process-wide context object composing the cache registry and
// the snapshot history store. It is constructed once in main and passed by
// reference to every call site, replacing the hidden singletons the original
// overlay relied on.
type Engine struct {
	logger   *slog.Logger
	registry *cache.Registry
	store    *history.Store
	metrics  *metrics.Recorder
}

// Options collects the engine collaborators. Registry and Store are
// required; Metrics may be nil (the recorder is nil-safe).
type Options struct {
	Registry *cache.Registry
	Store    *history.Store
	Metrics  *metrics.Recorder
}

// New assembles the engine.
func New(logger *slog.Logger, opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, errors.New("engine: cache registry required")
	}
	if opts.Store == nil {
		return nil, errors.New("engine: history store required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:   logger.With(slog.String("agent", "engine")),
		registry: opts.Registry,
		store:    opts.Store,
		metrics:  opts.Metrics,
	}, nil
}

// RecordObservation validates the player id, folds the observed tier state
// into the history store, and reports per-category outcomes. The store saves
// synchronously; a failed save surfaces as history.ErrPersist while the
// in-memory record is already updated.
func (e *Engine) RecordObservation(playerID, displayName string, tiers map[string]string) (history.ObservationResult, error) {
	id, err := uuid.Parse(playerID)
	if err != nil {
		return history.ObservationResult{}, fmt.Errorf("engine: invalid player id %q: %w", playerID, err)
	}

	start := time.Now()
	result, err := e.store.RecordObservation(id.String(), displayName, tiers)
	e.metrics.ObserveObservation(metrics.ObservationRecorded, result.Recorded)
	e.metrics.ObserveObservation(metrics.ObservationDeduplicated, result.Deduplicated)
	e.metrics.ObserveObservation(metrics.ObservationSkipped, result.Skipped)
	e.metrics.SetTrackedPlayers(e.store.PlayerCount())
	if err != nil {
		if errors.Is(err, history.ErrPersist) {
			e.metrics.ObserveSave(metrics.SaveError, time.Since(start))
			e.logger.Error("history save failed after observation",
				slog.String("player_id", id.String()), slog.Any("error", err))
		}
		return result, err
	}
	e.metrics.ObserveSave(metrics.SaveOK, time.Since(start))
	return result, nil
}

// History returns a deep copy of one player's record.
func (e *Engine) History(playerID string) (history.PlayerHistory, bool) {
	return e.store.History(playerID)
}

// Snapshots returns one category's retained series.
func (e *Engine) Snapshots(playerID, category string) []history.TierSnapshot {
	return e.store.Snapshots(playerID, category)
}

// BestRanking returns the player's highest-scoring category.
func (e *Engine) BestRanking(playerID string) (history.Best, bool) {
	return e.store.BestRanking(playerID)
}

// Trend reports the direction of one category's retained window.
func (e *Engine) Trend(playerID, category string) history.TrendDirection {
	return e.store.Trend(playerID, category)
}

// LookupIdentity resolves a cached name→uuid binding.
func (e *Engine) LookupIdentity(ctx context.Context, name string) (cache.PlayerIdentity, bool, error) {
	identity, ok, err := e.registry.LookupIdentity(ctx, name)
	e.observeLookup("identity", ok, err)
	return identity, ok, err
}

// StoreIdentity records a freshly fetched name→uuid binding.
func (e *Engine) StoreIdentity(ctx context.Context, name string, identity cache.PlayerIdentity) error {
	err := e.registry.StoreIdentity(ctx, name, identity)
	e.observeStore("identity", err)
	return err
}

// LookupProfile resolves a cached player profile.
func (e *Engine) LookupProfile(ctx context.Context, playerID string) (cache.PlayerProfile, bool, error) {
	profile, ok, err := e.registry.LookupProfile(ctx, playerID)
	e.observeLookup("profile", ok, err)
	return profile, ok, err
}

// StoreProfile records a freshly fetched player profile.
func (e *Engine) StoreProfile(ctx context.Context, playerID string, profile cache.PlayerProfile) error {
	err := e.registry.StoreProfile(ctx, playerID, profile)
	e.observeStore("profile", err)
	return err
}

// LookupListing resolves a cached tier listing.
func (e *Engine) LookupListing(ctx context.Context, mode string) (cache.Listing, bool, error) {
	listing, ok, err := e.registry.LookupListing(ctx, mode)
	e.observeLookup("listing", ok, err)
	return listing, ok, err
}

// StoreListing records a freshly fetched tier listing.
func (e *Engine) StoreListing(ctx context.Context, mode string, listing cache.Listing) error {
	err := e.registry.StoreListing(ctx, mode, listing)
	e.observeStore("listing", err)
	return err
}

// ClearCaches empties every sub-cache, backing the manual reset action.
func (e *Engine) ClearCaches(ctx context.Context) error {
	e.logger.Info("clearing all caches")
	return e.registry.ClearAll(ctx)
}

// Stats aggregates cache counts and tracked players for diagnostics.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	cacheStats, err := e.registry.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Caches: cacheStats, TrackedPlayers: e.store.PlayerCount()}, nil
}

// Stats is the diagnostics payload served to the overlay UI.
type Stats struct {
	Caches         cache.Statistics `json:"caches"`
	TrackedPlayers int              `json:"trackedPlayers"`
}

// Reload swaps the tier table used for future snapshots. Invoked by the
// tier-table watcher.
func (e *Engine) Reload(table *tier.Table) {
	if table == nil {
		return
	}
	e.store.ReplaceTable(table)
	e.logger.Info("tier table reloaded", slog.Any("labels", table.Labels()))
}

// Close flushes a final history save and releases cache backends.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if err := e.store.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := e.registry.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) observeLookup(cacheName string, ok bool, err error) {
	switch {
	case err != nil:
		e.metrics.ObserveCache(cacheName, metrics.CacheOperationLookup, metrics.CacheError)
	case ok:
		e.metrics.ObserveCache(cacheName, metrics.CacheOperationLookup, metrics.CacheHit)
	default:
		e.metrics.ObserveCache(cacheName, metrics.CacheOperationLookup, metrics.CacheMiss)
	}
}

func (e *Engine) observeStore(cacheName string, err error) {
	if err != nil {
		e.metrics.ObserveCache(cacheName, metrics.CacheOperationStore, metrics.CacheError)
		return
	}
	e.metrics.ObserveCache(cacheName, metrics.CacheOperationStore, metrics.CacheStored)
}
