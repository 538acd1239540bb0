package trash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandevgo/packrat/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "trash"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("setup mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("setup write: %v", err)
	}
}

// backdate rewrites an item's deleted_date, simulating an old deletion.
func backdate(t *testing.T, s *Store, trashID string, days int) {
	t.Helper()
	itemDir, item, err := s.findItem(context.Background(), trashID)
	if err != nil || item == nil {
		t.Fatalf("findItem(%s) = (%v, %v)", trashID, item, err)
	}
	item.DeletedDate = time.Now().UTC().AddDate(0, 0, -days)
	if err := writeItemMeta(filepath.Join(itemDir, metadataName), item); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}
}

func TestNewStore_CreatesBuckets(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "trash")
	if _, err := NewStore(root); err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	for _, bucket := range []string{"memories", "datastores", "chat_history", "templates"} {
		info, err := os.Stat(filepath.Join(root, bucket))
		if err != nil || !info.IsDir() {
			t.Errorf("bucket %s not created", bucket)
		}
	}
}

func TestMoveToTrash_InvalidType(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.MoveToTrash(context.Background(), "recordings", "x", nil, nil)
	if !errors.Is(err, core.ErrInvalidItemType) {
		t.Errorf("err = %v, want ErrInvalidItemType", err)
	}
}

func TestTrash_FileRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	original := filepath.Join(t.TempDir(), "notes", "memory.jsonl")
	content := "line one\nline two\n"
	writeTestFile(t, original, content)

	trashID, err := s.MoveToTrash(ctx, ItemMemory, "notes", []string{original}, map[string]any{"reason": "test"})
	if err != nil {
		t.Fatalf("MoveToTrash failed: %v", err)
	}
	if _, err := os.Stat(original); !os.IsNotExist(err) {
		t.Error("original file still exists after move")
	}

	if err := s.RestoreFromTrash(ctx, trashID); err != nil {
		t.Fatalf("RestoreFromTrash failed: %v", err)
	}

	restored, err := os.ReadFile(original)
	if err != nil {
		t.Fatalf("restored file unreadable: %v", err)
	}
	if !bytes.Equal(restored, []byte(content)) {
		t.Errorf("restored content = %q, want %q", restored, content)
	}
	if s.ItemInfo(ctx, trashID) != nil {
		t.Error("trash item still present after restore")
	}
}

func TestTrash_DirectoryRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	dir := filepath.Join(t.TempDir(), "datastore")
	writeTestFile(t, filepath.Join(dir, "index.faiss"), "vectors")
	writeTestFile(t, filepath.Join(dir, "sub", "chunks.json"), `{"chunks": []}`)

	trashID, err := s.MoveToTrash(ctx, ItemDatastore, "datastore", []string{dir}, nil)
	if err != nil {
		t.Fatalf("MoveToTrash failed: %v", err)
	}

	if err := s.RestoreFromTrash(ctx, trashID); err != nil {
		t.Fatalf("RestoreFromTrash failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "sub", "chunks.json"))
	if err != nil {
		t.Fatalf("nested file not restored: %v", err)
	}
	if string(data) != `{"chunks": []}` {
		t.Errorf("nested content = %q", data)
	}
}

func TestMoveToTrash_SkipsMissingPaths(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	real := filepath.Join(t.TempDir(), "real.json")
	writeTestFile(t, real, "{}")

	trashID, err := s.MoveToTrash(ctx, ItemTemplate, "tpl", []string{real, "/nonexistent/ghost.json"}, nil)
	if err != nil {
		t.Fatalf("MoveToTrash failed: %v", err)
	}

	info := s.ItemInfo(ctx, trashID)
	if info == nil {
		t.Fatal("ItemInfo returned nil")
	}
	if len(info.MovedItems) != 1 {
		t.Errorf("moved items = %d, want 1 (missing path skipped)", len(info.MovedItems))
	}
}

func TestRestore_ConflictFailsWholeRestore(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	original := filepath.Join(t.TempDir(), "session.json")
	writeTestFile(t, original, "old")

	trashID, err := s.MoveToTrash(ctx, ItemChatHistory, "session", []string{original}, nil)
	if err != nil {
		t.Fatalf("MoveToTrash failed: %v", err)
	}

	// Recreate the original: restore must refuse to overwrite it.
	writeTestFile(t, original, "new")

	err = s.RestoreFromTrash(ctx, trashID)
	if !errors.Is(err, core.ErrRestoreConflict) {
		t.Fatalf("err = %v, want ErrRestoreConflict", err)
	}

	data, _ := os.ReadFile(original)
	if string(data) != "new" {
		t.Error("conflicting file was overwritten")
	}
	if s.ItemInfo(ctx, trashID) == nil {
		t.Error("failed restore removed the trash item")
	}
}

func TestRestore_UnknownID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.RestoreFromTrash(context.Background(), "20200101_000000_ffffff"); err == nil {
		t.Fatal("expected error for unknown trash id")
	}
}

func TestListItems_AgeFilterAndOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	tmp := t.TempDir()

	writeTestFile(t, filepath.Join(tmp, "old.json"), "{}")
	oldID, err := s.MoveToTrash(ctx, ItemMemory, "old", []string{filepath.Join(tmp, "old.json")}, nil)
	if err != nil {
		t.Fatalf("MoveToTrash failed: %v", err)
	}
	backdate(t, s, oldID, 45)

	writeTestFile(t, filepath.Join(tmp, "recent.json"), "{}")
	recentID, err := s.MoveToTrash(ctx, ItemMemory, "recent", []string{filepath.Join(tmp, "recent.json")}, nil)
	if err != nil {
		t.Fatalf("MoveToTrash failed: %v", err)
	}

	all, err := s.ListItems(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d items, want 2", len(all))
	}
	if all[0].TrashID != recentID || all[1].TrashID != oldID {
		t.Errorf("order = [%s %s], want newest first", all[0].TrashID, all[1].TrashID)
	}
	if all[1].AgeDays < 44 {
		t.Errorf("age_days = %d, want ~45", all[1].AgeDays)
	}

	days := 30
	old, err := s.ListItems(ctx, ListFilter{OlderThanDays: &days})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(old) != 1 || old[0].TrashID != oldID {
		t.Errorf("age filter returned %v, want only %s", old, oldID)
	}
}

func TestEmptyTrash(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	tmp := t.TempDir()

	writeTestFile(t, filepath.Join(tmp, "old.json"), "{}")
	oldID, _ := s.MoveToTrash(ctx, ItemMemory, "old", []string{filepath.Join(tmp, "old.json")}, nil)
	backdate(t, s, oldID, 60)

	writeTestFile(t, filepath.Join(tmp, "recent.json"), "{}")
	recentID, _ := s.MoveToTrash(ctx, ItemMemory, "recent", []string{filepath.Join(tmp, "recent.json")}, nil)

	// Dry run: reports the old item, removes nothing.
	count, ids, err := s.EmptyTrash(ctx, EmptyOptions{OlderThanDays: 30, DryRun: true})
	if err != nil {
		t.Fatalf("EmptyTrash dry run failed: %v", err)
	}
	if count != 1 || ids[0] != oldID {
		t.Errorf("dry run = (%d, %v), want the old item only", count, ids)
	}
	if s.ItemInfo(ctx, oldID) == nil {
		t.Error("dry run deleted an item")
	}

	// Real purge removes only the old item.
	count, _, err = s.EmptyTrash(ctx, EmptyOptions{OlderThanDays: 30})
	if err != nil {
		t.Fatalf("EmptyTrash failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if s.ItemInfo(ctx, oldID) != nil {
		t.Error("old item survived the purge")
	}
	if s.ItemInfo(ctx, recentID) == nil {
		t.Error("recent item was purged")
	}

	// Force ignores age.
	count, _, err = s.EmptyTrash(ctx, EmptyOptions{OlderThanDays: 30, Force: true})
	if err != nil {
		t.Fatalf("EmptyTrash force failed: %v", err)
	}
	if count != 1 {
		t.Errorf("force count = %d, want 1", count)
	}
}

func TestEmptyTrash_UnreadableMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	itemDir := filepath.Join(s.root, "memories", "20240101_000000_abcdef")
	writeTestFile(t, filepath.Join(itemDir, metadataName), "{broken")

	count, _, err := s.EmptyTrash(ctx, EmptyOptions{OlderThanDays: 0})
	if err != nil {
		t.Fatalf("EmptyTrash failed: %v", err)
	}
	if count != 0 {
		t.Error("item with unreadable metadata purged without force")
	}

	count, _, err = s.EmptyTrash(ctx, EmptyOptions{Force: true})
	if err != nil {
		t.Fatalf("EmptyTrash force failed: %v", err)
	}
	if count != 1 {
		t.Error("force should purge unreadable items")
	}
}

func TestTrashStats(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	tmp := t.TempDir()

	writeTestFile(t, filepath.Join(tmp, "m.json"), "{}")
	memID, _ := s.MoveToTrash(ctx, ItemMemory, "m", []string{filepath.Join(tmp, "m.json")}, nil)
	backdate(t, s, memID, 40)

	writeTestFile(t, filepath.Join(tmp, "t.json"), "{}")
	if _, err := s.MoveToTrash(ctx, ItemTemplate, "t", []string{filepath.Join(tmp, "t.json")}, nil); err != nil {
		t.Fatalf("MoveToTrash failed: %v", err)
	}

	stats := s.Stats(ctx)
	if stats.TotalItems != 2 {
		t.Errorf("total = %d, want 2", stats.TotalItems)
	}
	if stats.ItemsByType["memories"] != 1 || stats.ItemsByType["templates"] != 1 {
		t.Errorf("by type = %v", stats.ItemsByType)
	}
	if stats.OldestItemDays < 39 {
		t.Errorf("oldest = %d, want ~40", stats.OldestItemDays)
	}
	if stats.ItemsOver30Days != 1 {
		t.Errorf("over 30 days = %d, want 1", stats.ItemsOver30Days)
	}
}

func TestTrashIDs_DistinctWithinSecond(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	tmp := t.TempDir()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		path := filepath.Join(tmp, "f"+time.Now().Format("150405.000000000")+".json")
		writeTestFile(t, path, "{}")
		id, err := s.MoveToTrash(ctx, ItemMemory, "same-second", []string{path}, nil)
		if err != nil {
			t.Fatalf("MoveToTrash failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate trash id %s", id)
		}
		seen[id] = true
	}
}

func TestItemInfo_MetadataFields(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "memory.jsonl")
	writeTestFile(t, path, "{}\n")

	trashID, err := s.MoveToTrash(ctx, ItemMemory, "personal", []string{path}, map[string]any{"entries": 1})
	if err != nil {
		t.Fatalf("MoveToTrash failed: %v", err)
	}

	info := s.ItemInfo(ctx, trashID)
	if info == nil {
		t.Fatal("ItemInfo returned nil")
	}
	if info.ItemType != ItemMemory || info.ItemName != "personal" {
		t.Errorf("item = %s/%s", info.ItemType, info.ItemName)
	}
	if len(info.MovedItems) != 1 || !filepath.IsAbs(info.MovedItems[0].OriginalPath) {
		t.Errorf("moved items = %v, want one absolute original path", info.MovedItems)
	}

	// The sidecar on disk is plain JSON with the recorded fields.
	raw, err := os.ReadFile(filepath.Join(s.root, "memories", trashID, metadataName))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	if onDisk["trash_id"] != trashID {
		t.Errorf("sidecar trash_id = %v", onDisk["trash_id"])
	}
	if onDisk["original_metadata"].(map[string]any)["entries"] != float64(1) {
		t.Errorf("sidecar original_metadata = %v", onDisk["original_metadata"])
	}
}
