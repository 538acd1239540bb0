package trash

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sandevgo/packrat/pkg/log"
)

// reportingAgeDays is the fixed threshold Stats reports against, independent
// of the purge threshold a caller configures.
const reportingAgeDays = 30

// ListFilter narrows a trash listing. A zero ItemType means all buckets;
// a nil OlderThanDays applies no age filter.
type ListFilter struct {
	ItemType      ItemType
	OlderThanDays *int
}

// ListItems returns trashed items, most recently deleted first. Items with
// missing or corrupt metadata are skipped with a warning.
func (s *Store) ListItems(ctx context.Context, f ListFilter) ([]Item, error) {
	buckets := itemTypes
	if f.ItemType != "" {
		if !validItemType(f.ItemType) {
			return nil, fmt.Errorf("invalid trash item type: %q", f.ItemType)
		}
		buckets = []ItemType{f.ItemType}
	}

	now := time.Now().UTC()
	var items []Item
	for _, t := range buckets {
		for _, item := range s.scanBucket(ctx, t) {
			item.AgeDays = ageDays(now, item.DeletedDate)
			if f.OlderThanDays != nil {
				cutoff := now.AddDate(0, 0, -*f.OlderThanDays)
				if item.DeletedDate.After(cutoff) {
					continue
				}
			}
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].DeletedDate.After(items[j].DeletedDate)
	})
	return items, nil
}

// ItemInfo returns one item's metadata with age computed, or nil when not
// found or unreadable.
func (s *Store) ItemInfo(ctx context.Context, trashID string) *Item {
	for _, t := range itemTypes {
		itemDir := filepath.Join(s.root, string(t), trashID)
		info, err := os.Stat(itemDir)
		if err != nil || !info.IsDir() {
			continue
		}
		item, err := readItemMeta(filepath.Join(itemDir, metadataName))
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("trash_id", trashID).Msg("unreadable trash metadata")
			return nil
		}
		item.AgeDays = ageDays(time.Now().UTC(), item.DeletedDate)
		return item
	}
	return nil
}

// EmptyOptions controls a purge. Force treats every item as eligible
// regardless of age, including items with unreadable metadata. DryRun
// reports the would-delete set without touching the filesystem.
type EmptyOptions struct {
	OlderThanDays int
	Force         bool
	DryRun        bool
}

// EmptyTrash permanently deletes eligible items and returns their count and
// trash ids. Items with unreadable metadata are kept unless Force is set,
// to avoid deleting data blindly.
func (s *Store) EmptyTrash(ctx context.Context, opts EmptyOptions) (int, []string, error) {
	logger := log.FromCtx(ctx)
	cutoff := time.Now().UTC().AddDate(0, 0, -opts.OlderThanDays)

	var deleted []string
	for _, t := range itemTypes {
		bucket := filepath.Join(s.root, string(t))
		entries, err := os.ReadDir(bucket)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read trash bucket %s: %w", t, err)
		}

		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			itemDir := filepath.Join(bucket, e.Name())

			item, err := readItemMeta(filepath.Join(itemDir, metadataName))
			eligible := false
			switch {
			case err != nil:
				if opts.Force {
					eligible = true
				} else {
					logger.Warn().Str("trash_id", e.Name()).Msg("unreadable metadata, keeping item (use force to purge)")
				}
			case opts.Force:
				eligible = true
			default:
				eligible = !item.DeletedDate.After(cutoff)
			}
			if !eligible {
				continue
			}

			if !opts.DryRun {
				if err := os.RemoveAll(itemDir); err != nil {
					return len(deleted), deleted, fmt.Errorf("failed to delete trash item %s: %w", e.Name(), err)
				}
			}
			deleted = append(deleted, e.Name())
		}
	}

	if !opts.DryRun && len(deleted) > 0 {
		logger.Info().Int("count", len(deleted)).Msg("trash emptied")
	}
	return len(deleted), deleted, nil
}

// TrashStats aggregates the current trash contents.
type TrashStats struct {
	TotalItems      int            `json:"total_items"`
	ItemsByType     map[string]int `json:"items_by_type"`
	OldestItemDays  int            `json:"oldest_item_days"`
	ItemsOver30Days int            `json:"items_over_30_days"`
}

func (s *Store) Stats(ctx context.Context) TrashStats {
	stats := TrashStats{ItemsByType: make(map[string]int)}
	now := time.Now().UTC()

	for _, t := range itemTypes {
		for _, item := range s.scanBucket(ctx, t) {
			stats.TotalItems++
			stats.ItemsByType[string(t)]++

			age := ageDays(now, item.DeletedDate)
			if age > stats.OldestItemDays {
				stats.OldestItemDays = age
			}
			if age > reportingAgeDays {
				stats.ItemsOver30Days++
			}
		}
	}
	return stats
}

// scanBucket reads every parseable item in one bucket, skipping stray files
// and corrupt metadata with a warning.
func (s *Store) scanBucket(ctx context.Context, t ItemType) []Item {
	bucket := filepath.Join(s.root, string(t))
	entries, err := os.ReadDir(bucket)
	if err != nil {
		if !os.IsNotExist(err) {
			log.FromCtx(ctx).Warn().Err(err).Str("bucket", string(t)).Msg("failed to read trash bucket")
		}
		return nil
	}

	var items []Item
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		item, err := readItemMeta(filepath.Join(bucket, e.Name(), metadataName))
		if err != nil {
			log.FromCtx(ctx).Warn().Str("trash_id", e.Name()).Msg("skipping trash item with unreadable metadata")
			continue
		}
		items = append(items, *item)
	}
	return items
}

func ageDays(now, deleted time.Time) int {
	age := int(now.Sub(deleted).Hours() / 24)
	if age < 0 {
		return 0
	}
	return age
}
