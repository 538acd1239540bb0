package trash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/pkg/log"
)

// ItemType selects the trash bucket an item lands in.
type ItemType string

const (
	ItemMemory      ItemType = "memories"
	ItemDatastore   ItemType = "datastores"
	ItemChatHistory ItemType = "chat_history"
	ItemTemplate    ItemType = "templates"
)

var itemTypes = []ItemType{ItemMemory, ItemDatastore, ItemChatHistory, ItemTemplate}

const metadataName = "metadata.json"

// MovedItem records one path relocated into the trash.
type MovedItem struct {
	OriginalPath string `json:"original_path"`
	TrashPath    string `json:"trash_path"`
	IsDirectory  bool   `json:"is_directory"`
}

// Item is the metadata sidecar of one trashed item. AgeDays is computed at
// read time and never persisted.
type Item struct {
	TrashID          string         `json:"trash_id"`
	ItemType         ItemType       `json:"item_type"`
	ItemName         string         `json:"item_name"`
	DeletedDate      time.Time      `json:"deleted_date"`
	MovedItems       []MovedItem    `json:"moved_items"`
	OriginalMetadata map[string]any `json:"original_metadata,omitempty"`
	AgeDays          int            `json:"age_days,omitempty"`
}

// Store is the soft-delete mover: deletion of memories, datastores, chat
// history and templates routes through here instead of unlinking directly.
type Store struct {
	root string
}

// NewStore creates the four bucket directories eagerly.
func NewStore(root string) (*Store, error) {
	for _, t := range itemTypes {
		if err := os.MkdirAll(filepath.Join(root, string(t)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create trash bucket %s: %w", t, err)
		}
	}
	return &Store{root: root}, nil
}

// MoveToTrash relocates the given paths into a fresh trash folder as one
// logical item and returns its trash id. Missing paths are skipped with a
// warning. On failure the partially-created folder is removed best-effort
// and the underlying error is returned.
func (s *Store) MoveToTrash(ctx context.Context, itemType ItemType, itemName string, paths []string, meta map[string]any) (string, error) {
	if !validItemType(itemType) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidItemType, itemType)
	}

	trashID := newTrashID()
	itemDir := filepath.Join(s.root, string(itemType), trashID)
	if err := os.MkdirAll(itemDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create trash folder: %w", err)
	}

	item, err := s.moveAll(ctx, itemDir, trashID, itemType, itemName, paths, meta)
	if err != nil {
		if cleanupErr := os.RemoveAll(itemDir); cleanupErr != nil {
			log.FromCtx(ctx).Warn().Err(cleanupErr).Str("trash_id", trashID).Msg("failed to clean up partial trash folder")
		}
		return "", err
	}

	log.FromCtx(ctx).Info().
		Str("trash_id", trashID).
		Str("type", string(itemType)).
		Str("name", itemName).
		Int("moved", len(item.MovedItems)).
		Msg("item moved to trash")
	return trashID, nil
}

func (s *Store) moveAll(ctx context.Context, itemDir, trashID string, itemType ItemType, itemName string, paths []string, meta map[string]any) (*Item, error) {
	logger := log.FromCtx(ctx)

	item := &Item{
		TrashID:          trashID,
		ItemType:         itemType,
		ItemName:         itemName,
		DeletedDate:      time.Now().UTC(),
		MovedItems:       []MovedItem{},
		OriginalMetadata: meta,
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn().Str("path", abs).Msg("path to trash does not exist, skipping")
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
		}

		dest := filepath.Join(itemDir, filepath.Base(abs))
		if info.IsDir() {
			if err := copyDir(abs, dest); err != nil {
				return nil, err
			}
		} else {
			if err := copyFile(abs, dest); err != nil {
				return nil, err
			}
		}
		if err := os.RemoveAll(abs); err != nil {
			return nil, fmt.Errorf("failed to remove original %s: %w", abs, err)
		}

		item.MovedItems = append(item.MovedItems, MovedItem{
			OriginalPath: abs,
			TrashPath:    dest,
			IsDirectory:  info.IsDir(),
		})
	}

	if err := writeItemMeta(filepath.Join(itemDir, metadataName), item); err != nil {
		return nil, err
	}
	return item, nil
}

// RestoreFromTrash moves an item's files back to their original locations
// and removes the trash folder. The whole restore fails if any destination
// already exists; trashed copies that went missing are skipped with a
// warning. Registries are not touched: re-enabling a restored memory is the
// caller's follow-up.
func (s *Store) RestoreFromTrash(ctx context.Context, trashID string) error {
	itemDir, item, err := s.findItem(ctx, trashID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("trash item %q not found", trashID)
	}

	logger := log.FromCtx(ctx)

	// No silent overwrites: every destination must be free before anything
	// moves back.
	for _, mi := range item.MovedItems {
		if _, err := os.Stat(mi.OriginalPath); err == nil {
			return fmt.Errorf("%w: %s", core.ErrRestoreConflict, mi.OriginalPath)
		}
	}

	for _, mi := range item.MovedItems {
		if _, err := os.Stat(mi.TrashPath); err != nil {
			logger.Warn().Str("path", mi.TrashPath).Msg("trashed copy missing, skipping")
			continue
		}
		if err := os.MkdirAll(filepath.Dir(mi.OriginalPath), 0755); err != nil {
			return fmt.Errorf("failed to recreate parent of %s: %w", mi.OriginalPath, err)
		}
		if mi.IsDirectory {
			if err := copyDir(mi.TrashPath, mi.OriginalPath); err != nil {
				return err
			}
		} else {
			if err := copyFile(mi.TrashPath, mi.OriginalPath); err != nil {
				return err
			}
		}
	}

	if err := os.RemoveAll(itemDir); err != nil {
		return fmt.Errorf("restored but failed to remove trash folder: %w", err)
	}

	logger.Info().Str("trash_id", trashID).Str("name", item.ItemName).Msg("item restored from trash")
	return nil
}

// findItem scans all buckets for a trash id. A found-but-unreadable
// metadata file is an error for restore purposes; callers wanting the
// skip-on-corrupt behavior use scanBucket directly.
func (s *Store) findItem(ctx context.Context, trashID string) (string, *Item, error) {
	for _, t := range itemTypes {
		itemDir := filepath.Join(s.root, string(t), trashID)
		info, err := os.Stat(itemDir)
		if err != nil || !info.IsDir() {
			continue
		}
		item, err := readItemMeta(filepath.Join(itemDir, metadataName))
		if err != nil {
			return "", nil, fmt.Errorf("trash item %q has unreadable metadata: %w", trashID, err)
		}
		return itemDir, item, nil
	}
	return "", nil, nil
}

func validItemType(t ItemType) bool {
	for _, known := range itemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// newTrashID is second-resolution wall clock time plus a random suffix, so
// two deletions within the same second get distinct folders.
func newTrashID() string {
	u := uuid.New()
	return fmt.Sprintf("%s_%x", time.Now().UTC().Format("20060102_150405"), u[0:3])
}

func writeItemMeta(path string, item *Item) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trash metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write trash metadata: %w", err)
	}
	return nil
}

func readItemMeta(path string) (*Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}
