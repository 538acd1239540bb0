package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sandevgo/packrat/pkg/log"
)

// Statistics are display-only aggregates. They are refreshed best-effort and
// may lag the log; treat them as a cache, not a source of truth.
type Statistics struct {
	AverageImportance float64 `json:"average_importance"`
	MostAccessedID    string  `json:"most_accessed_id,omitempty"`
	TotalAccesses     int     `json:"total_accesses"`
}

// Metadata is the per-instance sidecar with aggregate counters.
type Metadata struct {
	TotalEntries int            `json:"total_entries"`
	LastUpdated  time.Time      `json:"last_updated"`
	CreatedDate  time.Time      `json:"created_date"`
	SizeBytes    int64          `json:"size_bytes"`
	OldestEntry  *time.Time     `json:"oldest_entry,omitempty"`
	NewestEntry  *time.Time     `json:"newest_entry,omitempty"`
	EntryTypes   map[string]int `json:"entry_types"`
	Statistics   Statistics     `json:"statistics"`
}

func loadMetadata(ctx context.Context, path string) *Metadata {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.FromCtx(ctx).Warn().Err(err).Str("path", path).Msg("failed to read metadata")
		}
		return newMetadata()
	}

	md := newMetadata()
	if err := json.Unmarshal(data, md); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("path", path).Msg("corrupt metadata, starting fresh")
		return newMetadata()
	}
	if md.EntryTypes == nil {
		md.EntryTypes = make(map[string]int)
	}
	return md
}

func newMetadata() *Metadata {
	return &Metadata{
		CreatedDate: time.Now().UTC(),
		EntryTypes:  make(map[string]int),
	}
}

func saveMetadata(path string, md *Metadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// refreshSize updates SizeBytes and LastUpdated from the log file on disk.
func (md *Metadata) refreshSize(logPath string) {
	md.LastUpdated = time.Now().UTC()
	if info, err := os.Stat(logPath); err == nil {
		md.SizeBytes = info.Size()
	} else {
		md.SizeBytes = 0
	}
}
