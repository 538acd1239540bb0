package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sandevgo/packrat/pkg/log"
)

// Entry is one named instance in a registry file. Older registry files use
// "attached" instead of "enabled"; both mark the instance active.
type Entry struct {
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	Attached  bool   `json:"attached"`
	Directory string `json:"directory"`
}

func (e Entry) Active() bool {
	return e.Enabled || e.Attached
}

// Registry reads one section of a JSON registry file, e.g.
// {"memories": [{"name": ..., "enabled": true, "directory": ...}]},
// and keeps only the enabled entries. The same loader serves the memory,
// datastore and template registries; the section name selects which.
type Registry struct {
	path    string
	section string

	mu      sync.RWMutex
	entries map[string]Entry
	order   []string // file order of the enabled entries
}

func NewRegistry(path, section string) *Registry {
	return &Registry{
		path:    path,
		section: section,
		entries: make(map[string]Entry),
	}
}

// Load re-reads the registry file. A missing file yields an empty registry
// with a warning; a malformed file is an error.
func (r *Registry) Load(ctx context.Context) error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.FromCtx(ctx).Warn().Str("path", r.path).Msg("registry file not found, no instances enabled")
			r.mu.Lock()
			r.entries = make(map[string]Entry)
			r.order = nil
			r.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read registry: %w", err)
	}

	var sections map[string][]Entry
	if err := json.Unmarshal(data, &sections); err != nil {
		return fmt.Errorf("failed to parse registry: %w", err)
	}

	entries := make(map[string]Entry)
	var order []string
	for _, e := range sections[r.section] {
		if !e.Active() {
			continue
		}
		if _, dup := entries[e.Name]; !dup {
			order = append(order, e.Name)
		}
		entries[e.Name] = e
	}

	r.mu.Lock()
	r.entries = entries
	r.order = order
	r.mu.Unlock()

	log.FromCtx(ctx).Debug().
		Str("section", r.section).
		Int("enabled", len(entries)).
		Msg("registry loaded")
	return nil
}

// Get returns the enabled entry with the given name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e, ok
}

// Names returns the enabled instance names in file order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// First returns the first enabled entry in file order. It is the default
// instance for callers that do not name one.
func (r *Registry) First() (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return Entry{}, false
	}
	return r.entries[r.order[0]], true
}
