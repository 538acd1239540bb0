package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/pkg/log"
)

// indexEntry locates one memory in the JSONL log. Line is the physical
// 0-based line of the entry; the store keeps it in sync on add/delete, but a
// hand-edited log can leave it stale (reads verify the id and fall back to a
// scan, see Get).
type indexEntry struct {
	Line      int             `json:"line"`
	Timestamp time.Time       `json:"timestamp"`
	Type      core.MemoryType `json:"type"`
	Tags      []string        `json:"tags"`
}

type index map[string]indexEntry

// loadIndex reads an instance's index file. Missing or corrupt files yield
// an empty index with a warning; a damaged index must never block access to
// the log itself.
func loadIndex(ctx context.Context, path string) index {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.FromCtx(ctx).Warn().Err(err).Str("path", path).Msg("failed to read index")
		}
		return make(index)
	}

	idx := make(index)
	if err := json.Unmarshal(data, &idx); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("path", path).Msg("corrupt index, starting empty")
		return make(index)
	}
	return idx
}

func saveIndex(path string, idx index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// rebuildIndex derives a fresh index from the surviving entries' physical
// positions. Used after delete, which renumbers every line.
func rebuildIndex(entries []core.MemoryEntry) index {
	idx := make(index, len(entries))
	for i, e := range entries {
		idx[e.ID] = indexEntry{
			Line:      i,
			Timestamp: e.Timestamp,
			Type:      e.Type,
			Tags:      e.Tags,
		}
	}
	return idx
}
