package history

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tiertrack/tiertrack/internal/tier"
)

// DefaultMaxSnapshots caps each category's retained series. Oldest snapshots
// are evicted first once the cap is exceeded.
const DefaultMaxSnapshots = 30

// ErrPersist marks a failed save after an otherwise successful observation.
// The in-memory store remains valid when it is returned; durability is
// best-effort, availability is not compromised.
var ErrPersist = errors.New("history: persist failed")

// ObservationResult summarizes what RecordObservation did per category so
// callers can report metrics without re-deriving the outcome.
type ObservationResult struct {
	Recorded     int `json:"recorded"`
	Deduplicated int `json:"deduplicated"`
	Skipped      int `json:"skipped"`
}

// Store converts observed tier states into deduplicated, retention-capped
// series. All mutation happens under one mutex because the host drives this
// layer from a UI thread and short-lived network workers concurrently; the
// save call is made under the same lock so concurrent observations can never
// interleave writes to the output file.
type Store struct {
	clock        func() time.Time
	maxSnapshots int
	persister    Persister
	logger       *slog.Logger

	mu      sync.Mutex
	table   *tier.Table
	players map[string]PlayerHistory
}

// StoreOptions configures a Store. Table is required; the rest default.
type StoreOptions struct {
	Table        *tier.Table
	Persister    Persister
	MaxSnapshots int
	Clock        func() time.Time
	Logger       *slog.Logger
}

// NewStore builds the store and hydrates it from the persister when one is
// configured. A load failure is logged and the store starts empty; startup
// is never aborted over a bad history file.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Table == nil {
		return nil, errors.New("history: tier table required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	maxSnapshots := opts.MaxSnapshots
	if maxSnapshots <= 0 {
		maxSnapshots = DefaultMaxSnapshots
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("agent", "history_store"))

	s := &Store{
		clock:        clock,
		maxSnapshots: maxSnapshots,
		persister:    opts.Persister,
		logger:       logger,
		table:        opts.Table,
		players:      make(map[string]PlayerHistory),
	}
	if opts.Persister != nil {
		histories, err := opts.Persister.Load()
		if err != nil {
			logger.Warn("history load failed, starting empty", slog.Any("error", err))
		} else {
			s.players = histories
		}
	}
	return s, nil
}

// ReplaceTable swaps the tier table used to stamp points on future
// snapshots. Already-recorded points are never rewritten.
func (s *Store) ReplaceTable(table *tier.Table) {
	if table == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = table
}

// RecordObservation folds one observed tier state into the history. For each
// present category the append rule applies: a snapshot matching the previous
// one's tier on the same local calendar day is dropped, otherwise it is
// appended and the series trimmed from the front to the retention cap.
// Unknown categories and unparseable tier labels are skipped with a log line
// while the remaining categories continue. The whole map is saved
// synchronously before returning; a save failure is reported via ErrPersist
// with the in-memory state already updated.
func (s *Store) RecordObservation(playerID, displayName string, tiers map[string]string) (ObservationResult, error) {
	if playerID == "" {
		return ObservationResult{}, errors.New("history: player id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	player, ok := s.players[playerID]
	if !ok {
		player = PlayerHistory{PlayerID: playerID, Categories: make(map[string][]TierSnapshot)}
	}
	if displayName != "" {
		player.DisplayName = displayName
	}

	var result ObservationResult
	seen := make(map[string]struct{}, len(tiers))
	for _, category := range tier.Categories {
		label, present := tiers[category]
		if !present {
			continue
		}
		seen[category] = struct{}{}
		s.applyCategory(&player, category, label, now, &result)
	}
	for category, label := range tiers {
		if _, ok := seen[category]; ok {
			continue
		}
		s.logger.Warn("unknown category skipped",
			slog.String("player_id", playerID), slog.String("category", category), slog.String("tier", label))
		result.Skipped++
	}

	s.players[playerID] = player

	if s.persister != nil {
		if err := s.persister.Save(s.cloneAllLocked()); err != nil {
			return result, fmt.Errorf("%w: %s", ErrPersist, err)
		}
	}
	return result, nil
}

func (s *Store) applyCategory(player *PlayerHistory, category, label string, now time.Time, result *ObservationResult) {
	normalized, ok := s.table.Normalize(label)
	if !ok {
		s.logger.Warn("unparseable tier label skipped",
			slog.String("player_id", player.PlayerID), slog.String("category", category), slog.String("tier", label))
		result.Skipped++
		return
	}
	points, _ := s.table.Points(normalized)

	snapshots := player.Categories[category]
	if len(snapshots) > 0 {
		last := snapshots[len(snapshots)-1]
		if last.Tier == normalized && sameCalendarDay(last.Timestamp, now) {
			result.Deduplicated++
			return
		}
	}

	snapshots = append(snapshots, TierSnapshot{
		Timestamp: now.UnixMilli(),
		Tier:      normalized,
		Points:    points,
	})
	for len(snapshots) > s.maxSnapshots {
		snapshots = snapshots[1:]
	}
	player.Categories[category] = snapshots
	result.Recorded++
}

// sameCalendarDay compares local calendar days, matching the observed
// behavior of the source data: a tier read on the same local day with the
// same label collapses to a no-op.
func sameCalendarDay(millis int64, now time.Time) bool {
	prev := time.UnixMilli(millis).In(now.Location())
	py, pm, pd := prev.Date()
	ny, nm, nd := now.Date()
	return py == ny && pm == nm && pd == nd
}

// History returns a deep copy of one player's record.
func (s *Store) History(playerID string) (PlayerHistory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return PlayerHistory{}, false
	}
	return player.clone(), true
}

// Snapshots returns a copy of one category's series, empty when absent.
func (s *Store) Snapshots(playerID, category string) []TierSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return nil
	}
	snapshots := player.Categories[category]
	if len(snapshots) == 0 {
		return nil
	}
	out := make([]TierSnapshot, len(snapshots))
	copy(out, snapshots)
	return out
}

// PlayerCount reports how many players are tracked, for diagnostics.
func (s *Store) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// Flush forces a save of the current map, used at shutdown.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(s.cloneAllLocked()); err != nil {
		return fmt.Errorf("%w: %s", ErrPersist, err)
	}
	return nil
}

func (s *Store) cloneAllLocked() map[string]PlayerHistory {
	out := make(map[string]PlayerHistory, len(s.players))
	for id, player := range s.players {
		out[id] = player.clone()
	}
	return out
}
