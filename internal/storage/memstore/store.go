package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/pkg/log"
)

// ErrNotFound marks a memory id that is absent from an instance.
var ErrNotFound = errors.New("memory entry not found")

const defaultImportance = 0.5

// AddParams describes a new memory entry. Zero values fall back to the
// defaults: type "note", importance 0.5, source "llm".
type AddParams struct {
	Content    string
	Type       core.MemoryType
	Tags       []string
	Importance *float64
	Source     string
	Metadata   map[string]any
}

// Changes lists the fields an Update touches. Nil fields are left as-is.
type Changes struct {
	Content    *string
	Tags       []string
	Importance *float64
	Metadata   map[string]any
}

// Add validates, appends one JSONL line and updates the index and metadata
// sidecars. The three writes are not atomic as a group: a crash between them
// can leave the sidecars behind the log, which reads tolerate.
func (m *Manager) Add(ctx context.Context, name string, p AddParams) (*core.MemoryEntry, error) {
	inst, err := m.instance(name)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(p.Content)
	if content == "" {
		return nil, core.ErrEmptyContent
	}

	importance := defaultImportance
	if p.Importance != nil {
		importance = *p.Importance
	}
	if importance < 0.0 || importance > 1.0 {
		return nil, core.ErrImportanceRange
	}

	entryType := p.Type
	if entryType == "" {
		entryType = core.MemoryNote
	}

	source := p.Source
	if source == "" {
		source = "llm"
	}

	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	if err := os.MkdirAll(inst.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create instance directory: %w", err)
	}

	now := time.Now().UTC()
	entry := core.MemoryEntry{
		ID:           newID(),
		Timestamp:    now,
		Type:         entryType,
		Content:      content,
		Tags:         tags,
		Importance:   importance,
		Source:       source,
		LastAccessed: now,
		AccessCount:  0,
		Metadata:     p.Metadata,
	}

	// The new entry lands at the current end of the log.
	lines, err := readLogLines(inst.logPath())
	if err != nil {
		return nil, err
	}
	lineNo := len(lines)

	if err := appendLog(inst.logPath(), entry); err != nil {
		return nil, err
	}

	idx := loadIndex(ctx, inst.indexPath())
	idx[entry.ID] = indexEntry{
		Line:      lineNo,
		Timestamp: entry.Timestamp,
		Type:      entry.Type,
		Tags:      entry.Tags,
	}
	if err := saveIndex(inst.indexPath(), idx); err != nil {
		return nil, err
	}

	md := loadMetadata(ctx, inst.metadataPath())
	md.TotalEntries++
	md.EntryTypes[string(entry.Type)]++
	md.NewestEntry = &entry.Timestamp
	if md.OldestEntry == nil {
		md.OldestEntry = &entry.Timestamp
	}
	md.refreshSize(inst.logPath())
	if err := saveMetadata(inst.metadataPath(), md); err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Debug().
		Str("memory", name).
		Str("id", entry.ID).
		Int("line", lineNo).
		Msg("memory added")
	return &entry, nil
}

// Get looks an entry up by id through the index. The id on the read line is
// verified; on a mismatch (stale index after an external edit) the log is
// scanned and the index entry repaired. Access stats on the returned copy
// are informational only and never persisted.
func (m *Manager) Get(ctx context.Context, name, id string) (*core.MemoryEntry, error) {
	inst, err := m.instance(name)
	if err != nil {
		return nil, err
	}

	idx := loadIndex(ctx, inst.indexPath())
	ie, ok := idx[id]
	if !ok {
		return nil, ErrNotFound
	}

	lines, err := readLogLines(inst.logPath())
	if err != nil {
		return nil, err
	}

	var entry *core.MemoryEntry
	if ie.Line >= 0 && ie.Line < len(lines) {
		var e core.MemoryEntry
		if err := json.Unmarshal([]byte(lines[ie.Line]), &e); err == nil && e.ID == id {
			entry = &e
		}
	}

	if entry == nil {
		// Stale or damaged index: scan the log and repair the entry.
		for i, line := range lines {
			var e core.MemoryEntry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				continue
			}
			if e.ID == id {
				entry = &e
				idx[id] = indexEntry{Line: i, Timestamp: e.Timestamp, Type: e.Type, Tags: e.Tags}
				if err := saveIndex(inst.indexPath(), idx); err != nil {
					log.FromCtx(ctx).Warn().Err(err).Str("id", id).Msg("failed to repair index")
				}
				break
			}
		}
	}

	if entry == nil {
		return nil, ErrNotFound
	}

	entry.AccessCount++
	entry.LastAccessed = time.Now().UTC()
	return entry, nil
}

// Update rewrites the whole log with the matched entry mutated in place.
// Metadata keys are merged into the existing map, other fields replace.
// Returns (false, nil) when the id is unknown.
func (m *Manager) Update(ctx context.Context, name, id string, ch Changes) (bool, error) {
	inst, err := m.instance(name)
	if err != nil {
		return false, err
	}

	if ch.Importance != nil && (*ch.Importance < 0.0 || *ch.Importance > 1.0) {
		return false, core.ErrImportanceRange
	}

	idx := loadIndex(ctx, inst.indexPath())
	if _, ok := idx[id]; !ok {
		return false, nil
	}

	lines, err := readLogLines(inst.logPath())
	if err != nil {
		return false, err
	}
	entries := parseEntries(ctx, lines)

	found := false
	tagsChanged := false
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		found = true

		if ch.Content != nil {
			entries[i].Content = strings.TrimSpace(*ch.Content)
		}
		if ch.Tags != nil {
			entries[i].Tags = ch.Tags
			tagsChanged = true
		}
		if ch.Importance != nil {
			entries[i].Importance = *ch.Importance
		}
		if ch.Metadata != nil {
			if entries[i].Metadata == nil {
				entries[i].Metadata = make(map[string]any, len(ch.Metadata))
			}
			for k, v := range ch.Metadata {
				entries[i].Metadata[k] = v
			}
		}
		entries[i].LastAccessed = time.Now().UTC()

		if tagsChanged {
			ie := idx[id]
			ie.Tags = entries[i].Tags
			idx[id] = ie
		}
		break
	}

	if !found {
		// Index pointed at an id the log no longer holds.
		return false, nil
	}

	if err := writeLog(inst.logPath(), entries); err != nil {
		return false, err
	}
	if tagsChanged {
		if err := saveIndex(inst.indexPath(), idx); err != nil {
			return false, err
		}
	}

	md := loadMetadata(ctx, inst.metadataPath())
	md.refreshSize(inst.logPath())
	if err := saveMetadata(inst.metadataPath(), md); err != nil {
		return false, err
	}

	log.FromCtx(ctx).Debug().Str("memory", name).Str("id", id).Msg("memory updated")
	return true, nil
}

// Delete rewrites the log without the matched entry and rebuilds the index
// from the survivors' new physical positions. Returns (false, nil) when the
// id is unknown.
func (m *Manager) Delete(ctx context.Context, name, id string) (bool, error) {
	inst, err := m.instance(name)
	if err != nil {
		return false, err
	}

	lines, err := readLogLines(inst.logPath())
	if err != nil {
		return false, err
	}
	entries := parseEntries(ctx, lines)

	survivors := make([]core.MemoryEntry, 0, len(entries))
	var deletedType core.MemoryType
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			deletedType = e.Type
			continue
		}
		survivors = append(survivors, e)
	}
	if !found {
		return false, nil
	}

	if err := writeLog(inst.logPath(), survivors); err != nil {
		return false, err
	}
	if err := saveIndex(inst.indexPath(), rebuildIndex(survivors)); err != nil {
		return false, err
	}

	md := loadMetadata(ctx, inst.metadataPath())
	if md.TotalEntries > 0 {
		md.TotalEntries--
	}
	if n := md.EntryTypes[string(deletedType)]; n > 0 {
		md.EntryTypes[string(deletedType)] = n - 1
	}
	md.refreshSize(inst.logPath())
	if err := saveMetadata(inst.metadataPath(), md); err != nil {
		return false, err
	}

	log.FromCtx(ctx).Debug().Str("memory", name).Str("id", id).Msg("memory deleted")
	return true, nil
}

// Stats returns the metadata sidecar augmented with the instance name.
// Failures are reported inside the result rather than raised.
type Stats struct {
	MemoryName string `json:"memory_name"`
	*Metadata
	Error string `json:"error,omitempty"`
}

func (m *Manager) Stats(ctx context.Context, name string) Stats {
	inst, err := m.instance(name)
	if err != nil {
		return Stats{MemoryName: name, Error: err.Error()}
	}
	return Stats{
		MemoryName: name,
		Metadata:   loadMetadata(ctx, inst.metadataPath()),
	}
}

func newID() string {
	u := uuid.New()
	return fmt.Sprintf("mem_%x", u[0:6])
}

// readLogLines returns the physical lines of a JSONL log. A missing file is
// an empty log, not an error.
func readLogLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	raw := strings.Split(string(data), "\n")
	lines := raw[:0]
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// parseEntries decodes log lines, skipping damaged ones. A single corrupt
// line must never block access to the rest of the store.
func parseEntries(ctx context.Context, lines []string) []core.MemoryEntry {
	entries := make([]core.MemoryEntry, 0, len(lines))
	for i, line := range lines {
		var e core.MemoryEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			log.FromCtx(ctx).Warn().Int("line", i).Msg("skipping unparseable log line")
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func appendLog(path string, e core.MemoryEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func writeLog(path string, entries []core.MemoryEntry) error {
	var sb strings.Builder
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to rewrite log: %w", err)
	}
	return nil
}
