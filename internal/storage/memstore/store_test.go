package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/internal/registry"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	root := t.TempDir()
	regPath := filepath.Join(root, "memory_registry.json")
	content := `{"memories": [
		{"name": "personal", "enabled": true, "directory": "personal"},
		{"name": "empty", "enabled": true, "directory": "empty"}
	]}`
	if err := os.WriteFile(regPath, []byte(content), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	reg := registry.NewRegistry(regPath, "memories")
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("registry load failed: %v", err)
	}
	return NewManager(root, reg)
}

func fp(v float64) *float64 { return &v }

func TestAdd_RoundTrip(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	added, err := m.Add(ctx, "personal", AddParams{
		Content:    "  likes green tea  ",
		Type:       core.MemoryPreference,
		Tags:       []string{"drinks", "preferences"},
		Importance: fp(0.8),
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !strings.HasPrefix(added.ID, "mem_") || len(added.ID) != len("mem_")+12 {
		t.Errorf("id format = %q, want mem_ + 12 hex chars", added.ID)
	}

	got, err := m.Get(ctx, "personal", added.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "likes green tea" {
		t.Errorf("content = %q, want trimmed input", got.Content)
	}
	if got.Type != core.MemoryPreference {
		t.Errorf("type = %q, want preference", got.Type)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "drinks" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Importance != 0.8 {
		t.Errorf("importance = %v, want 0.8", got.Importance)
	}
	if got.AccessCount != 1 {
		t.Errorf("access count on read copy = %d, want 1", got.AccessCount)
	}
}

func TestAdd_Defaults(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	added, err := m.Add(ctx, "personal", AddParams{Content: "plain note"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if added.Type != core.MemoryNote {
		t.Errorf("type = %q, want note", added.Type)
	}
	if added.Importance != 0.5 {
		t.Errorf("importance = %v, want 0.5", added.Importance)
	}
	if added.Source != "llm" {
		t.Errorf("source = %q, want llm", added.Source)
	}
	if added.Tags == nil {
		t.Error("tags should default to an empty slice")
	}
}

func TestAdd_Validation(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Add(ctx, "personal", AddParams{Content: "   "}); !errors.Is(err, core.ErrEmptyContent) {
		t.Errorf("blank content: err = %v, want ErrEmptyContent", err)
	}
	if _, err := m.Add(ctx, "personal", AddParams{Content: "x", Importance: fp(1.5)}); !errors.Is(err, core.ErrImportanceRange) {
		t.Errorf("importance 1.5: err = %v, want ErrImportanceRange", err)
	}
	if _, err := m.Add(ctx, "personal", AddParams{Content: "x", Importance: fp(-0.1)}); !errors.Is(err, core.ErrImportanceRange) {
		t.Errorf("importance -0.1: err = %v, want ErrImportanceRange", err)
	}
}

func TestUnknownInstance(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Add(ctx, "nope", AddParams{Content: "x"}); !errors.Is(err, core.ErrUnknownMemory) {
		t.Errorf("Add: err = %v, want ErrUnknownMemory", err)
	}
	if _, err := m.Get(ctx, "nope", "mem_000000000000"); !errors.Is(err, core.ErrUnknownMemory) {
		t.Errorf("Get: err = %v, want ErrUnknownMemory", err)
	}
	if _, err := m.Search(ctx, "nope", Filter{}); !errors.Is(err, core.ErrUnknownMemory) {
		t.Errorf("Search: err = %v, want ErrUnknownMemory", err)
	}
}

func readIndexFile(t *testing.T, m *Manager, name string) map[string]indexEntry {
	t.Helper()
	inst, err := m.instance(name)
	if err != nil {
		t.Fatalf("instance failed: %v", err)
	}
	data, err := os.ReadFile(inst.indexPath())
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	idx := make(map[string]indexEntry)
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Fatalf("parse index: %v", err)
	}
	return idx
}

func logLineID(t *testing.T, m *Manager, name string, line int) string {
	t.Helper()
	inst, err := m.instance(name)
	if err != nil {
		t.Fatalf("instance failed: %v", err)
	}
	lines, err := readLogLines(inst.logPath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if line >= len(lines) {
		t.Fatalf("line %d out of range (%d lines)", line, len(lines))
	}
	var e core.MemoryEntry
	if err := json.Unmarshal([]byte(lines[line]), &e); err != nil {
		t.Fatalf("parse line %d: %v", line, err)
	}
	return e.ID
}

func TestIndexLineInvariant(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	var ids []string
	for _, c := range []string{"first", "second", "third"} {
		e, err := m.Add(ctx, "personal", AddParams{Content: c})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		ids = append(ids, e.ID)
	}

	idx := readIndexFile(t, m, "personal")
	for _, id := range ids {
		if got := logLineID(t, m, "personal", idx[id].Line); got != id {
			t.Errorf("index line %d holds %q, want %q", idx[id].Line, got, id)
		}
	}

	// Deleting the middle entry renumbers the survivors.
	if ok, err := m.Delete(ctx, "personal", ids[1]); err != nil || !ok {
		t.Fatalf("Delete = (%v, %v)", ok, err)
	}

	idx = readIndexFile(t, m, "personal")
	if len(idx) != 2 {
		t.Fatalf("index size after delete = %d, want 2", len(idx))
	}
	for _, id := range []string{ids[0], ids[2]} {
		if got := logLineID(t, m, "personal", idx[id].Line); got != id {
			t.Errorf("after delete, index line %d holds %q, want %q", idx[id].Line, got, id)
		}
	}
}

func TestDeleteThenGet(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	e, err := m.Add(ctx, "personal", AddParams{Content: "doomed"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ok, err := m.Delete(ctx, "personal", e.ID)
	if err != nil || !ok {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", ok, err)
	}

	if _, err := m.Get(ctx, "personal", e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}

	results, err := m.Search(ctx, "personal", Filter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.ID == e.ID {
			t.Error("deleted entry still appears in search results")
		}
	}

	// Deleting again is a routine not-found, not an error.
	ok, err = m.Delete(ctx, "personal", e.ID)
	if err != nil {
		t.Fatalf("second Delete errored: %v", err)
	}
	if ok {
		t.Error("second Delete reported success")
	}
}

func TestUpdate_PreservesUnspecifiedFields(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	e, err := m.Add(ctx, "personal", AddParams{
		Content:    "original",
		Tags:       []string{"keep"},
		Importance: fp(0.7),
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	newContent := "  revised  "
	ok, err := m.Update(ctx, "personal", e.ID, Changes{Content: &newContent})
	if err != nil || !ok {
		t.Fatalf("Update = (%v, %v), want (true, nil)", ok, err)
	}

	got, err := m.Get(ctx, "personal", e.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "revised" {
		t.Errorf("content = %q, want trimmed %q", got.Content, "revised")
	}
	if len(got.Tags) != 1 || got.Tags[0] != "keep" {
		t.Errorf("tags changed: %v", got.Tags)
	}
	if got.Importance != 0.7 {
		t.Errorf("importance changed: %v", got.Importance)
	}
}

func TestUpdate_MergesMetadata(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	e, err := m.Add(ctx, "personal", AddParams{
		Content:  "x",
		Metadata: map[string]any{"origin": "chat", "keep": "yes"},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ok, err := m.Update(ctx, "personal", e.ID, Changes{
		Metadata: map[string]any{"extra": "new", "origin": "import"},
	})
	if err != nil || !ok {
		t.Fatalf("Update = (%v, %v), want (true, nil)", ok, err)
	}

	got, err := m.Get(ctx, "personal", e.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Metadata["keep"] != "yes" {
		t.Errorf("pre-existing metadata key lost after update: %v", got.Metadata)
	}
	if got.Metadata["extra"] != "new" {
		t.Errorf("new metadata key missing: %v", got.Metadata)
	}
	if got.Metadata["origin"] != "import" {
		t.Errorf("overlapping key not overwritten: %v", got.Metadata)
	}
}

func TestUpdate_NotFoundAndInvalid(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	ok, err := m.Update(ctx, "personal", "mem_ffffffffffff", Changes{})
	if err != nil {
		t.Fatalf("Update of missing id errored: %v", err)
	}
	if ok {
		t.Error("Update of missing id reported success")
	}

	e, err := m.Add(ctx, "personal", AddParams{Content: "x"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	ok, err = m.Update(ctx, "personal", e.ID, Changes{Importance: fp(2.0)})
	if ok || !errors.Is(err, core.ErrImportanceRange) {
		t.Errorf("Update = (%v, %v), want (false, ErrImportanceRange)", ok, err)
	}
}

func TestUpdate_TagsRefreshIndex(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	e, err := m.Add(ctx, "personal", AddParams{Content: "x", Tags: []string{"old"}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ok, err := m.Update(ctx, "personal", e.ID, Changes{Tags: []string{"new", "tags"}})
	if err != nil || !ok {
		t.Fatalf("Update = (%v, %v)", ok, err)
	}

	idx := readIndexFile(t, m, "personal")
	ie := idx[e.ID]
	if len(ie.Tags) != 2 || ie.Tags[0] != "new" {
		t.Errorf("index tags = %v, want [new tags]", ie.Tags)
	}
}

func TestGet_StaleIndexRepaired(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	a, err := m.Add(ctx, "personal", AddParams{Content: "first"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := m.Add(ctx, "personal", AddParams{Content: "second"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Simulate a hand-edited log: point the index at the wrong line.
	inst, err := m.instance("personal")
	if err != nil {
		t.Fatalf("instance failed: %v", err)
	}
	idx := loadIndex(ctx, inst.indexPath())
	ie := idx[a.ID]
	ie.Line = 1
	idx[a.ID] = ie
	if err := saveIndex(inst.indexPath(), idx); err != nil {
		t.Fatalf("saveIndex failed: %v", err)
	}

	got, err := m.Get(ctx, "personal", a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "first" {
		t.Errorf("stale index returned wrong entry: %q", got.Content)
	}

	repaired := readIndexFile(t, m, "personal")
	if repaired[a.ID].Line != 0 {
		t.Errorf("index not repaired: line = %d, want 0", repaired[a.ID].Line)
	}
}

func TestCorruptLineResilience(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	a, err := m.Add(ctx, "personal", AddParams{Content: "valid one"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	inst, err := m.instance("personal")
	if err != nil {
		t.Fatalf("instance failed: %v", err)
	}
	f, err := os.OpenFile(inst.logPath(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("{this is not json\n"); err != nil {
		t.Fatalf("corrupt write: %v", err)
	}
	f.Close()

	b, err := m.Add(ctx, "personal", AddParams{Content: "valid two"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := m.Search(ctx, "personal", Filter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("search returned %d entries, want the 2 valid ones", len(results))
	}
	got := map[string]bool{results[0].ID: true, results[1].ID: true}
	if !got[a.ID] || !got[b.ID] {
		t.Errorf("search results = %v, want ids %s and %s", got, a.ID, b.ID)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	ctx := context.Background()

	for _, typ := range []core.MemoryType{core.MemoryNote, core.MemoryNote, core.MemoryFact} {
		if _, err := m.Add(ctx, "personal", AddParams{Content: "entry", Type: typ}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	stats := m.Stats(ctx, "personal")
	if stats.Error != "" {
		t.Fatalf("Stats error: %s", stats.Error)
	}
	if stats.MemoryName != "personal" {
		t.Errorf("memory name = %q", stats.MemoryName)
	}
	if stats.TotalEntries != 3 {
		t.Errorf("total entries = %d, want 3", stats.TotalEntries)
	}
	if stats.EntryTypes["note"] != 2 || stats.EntryTypes["fact"] != 1 {
		t.Errorf("entry types = %v", stats.EntryTypes)
	}
	if stats.SizeBytes == 0 {
		t.Error("size bytes not refreshed")
	}
	if stats.NewestEntry == nil || stats.OldestEntry == nil {
		t.Error("oldest/newest entry not set")
	}

	bad := m.Stats(ctx, "missing")
	if bad.Error == "" {
		t.Error("Stats for unknown instance should carry an error message")
	}
}
