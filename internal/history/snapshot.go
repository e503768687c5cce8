package history

import "time"

// TierSnapshot is one timestamped observation of a player's tier in one
// category. Points are stamped from the tier table at creation time and
// never recomputed, so history stays stable if the table changes later.
type TierSnapshot struct {
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Tier      string `json:"tier"`
	Points    int    `json:"points"`
}

// Time converts the stored epoch-millisecond timestamp back to a time.Time.
func (s TierSnapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// PlayerHistory tracks one player's tier progression per category. Snapshot
// sequences are insertion-ordered, which is also chronological order because
// the store is the only writer.
type PlayerHistory struct {
	PlayerID    string                    `json:"-"`
	DisplayName string                    `json:"name"`
	Categories  map[string][]TierSnapshot `json:"categories"`
}

// clone deep-copies the history so callers can never mutate the store's
// live sequences.
func (h PlayerHistory) clone() PlayerHistory {
	out := PlayerHistory{
		PlayerID:    h.PlayerID,
		DisplayName: h.DisplayName,
		Categories:  make(map[string][]TierSnapshot, len(h.Categories)),
	}
	for category, snapshots := range h.Categories {
		copied := make([]TierSnapshot, len(snapshots))
		copy(copied, snapshots)
		out.Categories[category] = copied
	}
	return out
}
