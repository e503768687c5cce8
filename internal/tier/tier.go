package tier

import (
	"fmt"
	"sort"
	"strings"
)

// Categories enumerates the game modes in their fixed presentation order.
// Derived queries use this order to break ties, so it must stay stable.
var Categories = []string{
	"vanilla",
	"sword",
	"crystal",
	"axe",
	"mace",
	"uhc",
	"pot",
	"nethop",
	"smp",
}

// Table maps tier labels to the points awarded for holding that tier. Labels
// are resolved case-insensitively; the table itself is immutable once built
// so a concurrent hot-reload can swap the whole value atomically.
type Table struct {
	points map[string]int
}

// DefaultTable returns the standard high/low tier scale. Snapshot points are
// stamped at creation time, so changing this table never rewrites history.
func DefaultTable() *Table {
	table, err := NewTable(map[string]int{
		"HT1": 60,
		"LT1": 45,
		"HT2": 28,
		"LT2": 16,
		"HT3": 10,
		"LT3": 6,
		"HT4": 4,
		"LT4": 3,
		"HT5": 2,
		"LT5": 1,
	})
	if err != nil {
		panic(err)
	}
	return table
}

// NewTable builds a Table from label→points pairs. Labels are trimmed and
// upper-cased so lookups stay case-insensitive.
func NewTable(points map[string]int) (*Table, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("tier: table requires at least one label")
	}
	normalized := make(map[string]int, len(points))
	for label, value := range points {
		key := strings.ToUpper(strings.TrimSpace(label))
		if key == "" {
			return nil, fmt.Errorf("tier: empty label in table")
		}
		if value < 0 {
			return nil, fmt.Errorf("tier: label %q has negative points %d", label, value)
		}
		if _, ok := normalized[key]; ok {
			return nil, fmt.Errorf("tier: duplicate label %q after normalization", key)
		}
		normalized[key] = value
	}
	return &Table{points: normalized}, nil
}

// Points resolves a tier label to its point value. The second return reports
// whether the label is known; unknown or empty labels are not an error here
// because the caller decides whether to skip or reject the observation.
func (t *Table) Points(label string) (int, bool) {
	if t == nil {
		return 0, false
	}
	value, ok := t.points[strings.ToUpper(strings.TrimSpace(label))]
	return value, ok
}

// Normalize returns the canonical form of a tier label when it is known.
func (t *Table) Normalize(label string) (string, bool) {
	if t == nil {
		return "", false
	}
	key := strings.ToUpper(strings.TrimSpace(label))
	if _, ok := t.points[key]; !ok {
		return "", false
	}
	return key, true
}

// Labels lists the known labels sorted by descending points, then name.
// Used for diagnostics output only.
func (t *Table) Labels() []string {
	if t == nil {
		return nil
	}
	labels := make([]string, 0, len(t.points))
	for label := range t.points {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if t.points[labels[i]] == t.points[labels[j]] {
			return labels[i] < labels[j]
		}
		return t.points[labels[i]] > t.points[labels[j]]
	})
	return labels
}

// KnownCategory reports whether the category is part of the fixed game-mode
// list. Observations for unknown categories are skipped rather than rejected.
func KnownCategory(category string) bool {
	for _, known := range Categories {
		if known == category {
			return true
		}
	}
	return false
}
