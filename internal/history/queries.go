package history

import "github.com/tiertrack/tiertrack/internal/tier"

// TrendDirection describes how a player's points moved across the retained
// window of one category.
type TrendDirection string

const (
	// TrendImproving means the latest retained snapshot outscores the oldest.
	TrendImproving TrendDirection = "improving"
	// TrendDeclining means the latest retained snapshot scores below the oldest.
	TrendDeclining TrendDirection = "declining"
	// TrendStable means the two ends of the window carry equal points.
	TrendStable TrendDirection = "stable"
	// TrendUnknown means fewer than two snapshots are retained.
	TrendUnknown TrendDirection = "unknown"
)

// Best identifies the category in which a player currently ranks highest.
type Best struct {
	Category string `json:"category"`
	Tier     string `json:"tier"`
	Points   int    `json:"points"`
}

// BestRanking scans every category's latest snapshot and returns the one
// with the highest points. Ties resolve to the first category in the fixed
// game-mode order. The second return is false when the player has no
// recorded history at all.
func (s *Store) BestRanking(playerID string) (Best, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return Best{}, false
	}

	var best Best
	found := false
	for _, category := range tier.Categories {
		snapshots := player.Categories[category]
		if len(snapshots) == 0 {
			continue
		}
		latest := snapshots[len(snapshots)-1]
		if !found || latest.Points > best.Points {
			best = Best{Category: category, Tier: latest.Tier, Points: latest.Points}
			found = true
		}
	}
	return best, found
}

// Trend compares the first and last snapshot retained in the capped window.
// This is window-relative, not all-time: once eviction kicks in the "first"
// snapshot is merely the oldest one still held.
func (s *Store) Trend(playerID, category string) TrendDirection {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return TrendUnknown
	}
	snapshots := player.Categories[category]
	if len(snapshots) < 2 {
		return TrendUnknown
	}
	first := snapshots[0]
	last := snapshots[len(snapshots)-1]
	switch {
	case last.Points > first.Points:
		return TrendImproving
	case last.Points < first.Points:
		return TrendDeclining
	default:
		return TrendStable
	}
}
