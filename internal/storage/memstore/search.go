package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/sandevgo/packrat/internal/core"
)

const defaultSearchLimit = 10

// Filter narrows a search. All conditions are conjunctive; zero values do
// not filter.
type Filter struct {
	Query         string
	Tags          []string
	Type          core.MemoryType
	MinImportance *float64
	Limit         int
}

// Search scans the full log, applies the filter and returns up to
// Filter.Limit entries sorted by importance descending (ties keep insertion
// order). A missing log yields an empty result, not an error.
func (m *Manager) Search(ctx context.Context, name string, f Filter) ([]core.MemoryEntry, error) {
	inst, err := m.instance(name)
	if err != nil {
		return nil, err
	}

	lines, err := readLogLines(inst.logPath())
	if err != nil {
		return nil, err
	}

	entries := parseEntries(ctx, lines)
	matched := make([]core.MemoryEntry, 0, len(entries))
	for _, e := range entries {
		if f.matches(e) {
			matched = append(matched, e)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Importance > matched[j].Importance
	})

	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f Filter) matches(e core.MemoryEntry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.MinImportance != nil && e.Importance < *f.MinImportance {
		return false
	}
	if len(f.Tags) > 0 && !intersects(e.Tags, f.Tags) {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(e.Content), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
