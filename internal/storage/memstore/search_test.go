package memstore

import (
	"context"
	"testing"

	"github.com/sandevgo/packrat/internal/core"
)

func TestSearch_ImportanceOrder(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	low, err := m.Add(ctx, "personal", AddParams{Content: "low", Importance: fp(0.2)})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	high, err := m.Add(ctx, "personal", AddParams{Content: "high", Importance: fp(0.9)})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	mid, err := m.Add(ctx, "personal", AddParams{Content: "mid", Importance: fp(0.5)})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	_ = low

	results, err := m.Search(ctx, "personal", Filter{Limit: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != high.ID || results[1].ID != mid.ID {
		t.Errorf("order = [%s %s], want [%s %s]", results[0].ID, results[1].ID, high.ID, mid.ID)
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	first, _ := m.Add(ctx, "personal", AddParams{Content: "first", Importance: fp(0.5)})
	second, _ := m.Add(ctx, "personal", AddParams{Content: "second", Importance: fp(0.5)})

	results, err := m.Search(ctx, "personal", Filter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 || results[0].ID != first.ID || results[1].ID != second.ID {
		t.Errorf("tied entries reordered: %v", results)
	}
}

func TestSearch_FiltersIdempotent(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	for _, p := range []AddParams{
		{Content: "a fact", Type: core.MemoryFact, Importance: fp(0.3)},
		{Content: "a note", Type: core.MemoryNote, Importance: fp(0.6)},
		{Content: "another fact", Type: core.MemoryFact, Importance: fp(0.9)},
	} {
		if _, err := m.Add(ctx, "personal", p); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	byType, err := m.Search(ctx, "personal", Filter{Type: core.MemoryFact})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	withZeroMin, err := m.Search(ctx, "personal", Filter{Type: core.MemoryFact, MinImportance: fp(0.0)})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(byType) != len(withZeroMin) {
		t.Fatalf("result sizes differ: %d vs %d", len(byType), len(withZeroMin))
	}
	for i := range byType {
		if byType[i].ID != withZeroMin[i].ID {
			t.Errorf("result %d differs: %s vs %s", i, byType[i].ID, withZeroMin[i].ID)
		}
	}
}

func TestSearch_ConjunctiveFilters(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	match, _ := m.Add(ctx, "personal", AddParams{
		Content:    "Coffee brewing notes",
		Type:       core.MemoryNote,
		Tags:       []string{"coffee", "morning"},
		Importance: fp(0.8),
	})
	m.Add(ctx, "personal", AddParams{
		Content:    "Coffee price history",
		Type:       core.MemoryFact,
		Tags:       []string{"coffee"},
		Importance: fp(0.9),
	})
	m.Add(ctx, "personal", AddParams{
		Content:    "Tea brewing notes",
		Type:       core.MemoryNote,
		Tags:       []string{"tea"},
		Importance: fp(0.8),
	})

	results, err := m.Search(ctx, "personal", Filter{
		Query:         "COFFEE",
		Type:          core.MemoryNote,
		Tags:          []string{"morning", "evening"},
		MinImportance: fp(0.5),
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != match.ID {
		t.Errorf("conjunctive filter returned %v, want only %s", results, match.ID)
	}
}

func TestSearch_MissingLogIsEmpty(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	results, err := m.Search(context.Background(), "empty", Filter{Query: "anything"})
	if err != nil {
		t.Fatalf("Search of never-written instance failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if _, err := m.Add(ctx, "personal", AddParams{Content: "entry"}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	results, err := m.Search(ctx, "personal", Filter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != defaultSearchLimit {
		t.Errorf("got %d results, want default limit %d", len(results), defaultSearchLimit)
	}
}
