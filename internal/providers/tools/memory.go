package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/internal/storage/memstore"
)

const addMemorySchema = `
{
  "type": "object",
  "properties": {
    "content": { "type": "string", "description": "The information to remember" },
    "type": { "type": "string", "enum": ["note", "fact", "preference", "task", "context"], "description": "The kind of memory" },
    "tags": { "type": "array", "items": { "type": "string" }, "description": "Tags for later filtering" },
    "importance": { "type": "number", "minimum": 0.0, "maximum": 1.0, "description": "How important this memory is, 0.0 to 1.0" },
    "memory_name": { "type": "string", "description": "Target memory instance; defaults to the first enabled one" }
  },
  "required": ["content"]
}
`

const searchMemoriesSchema = `
{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "Substring to search for in memory content" },
    "tags": { "type": "array", "items": { "type": "string" }, "description": "Match entries carrying any of these tags" },
    "type": { "type": "string", "description": "Restrict to one memory type" },
    "min_importance": { "type": "number", "description": "Minimum importance threshold" },
    "limit": { "type": "integer", "description": "Maximum number of results, default 10" },
    "memory_name": { "type": "string", "description": "Target memory instance; defaults to the first enabled one" }
  }
}
`

const getMemorySchema = `
{
  "type": "object",
  "properties": {
    "memory_id": { "type": "string", "description": "The id of the memory to fetch" },
    "memory_name": { "type": "string", "description": "Target memory instance; defaults to the first enabled one" }
  },
  "required": ["memory_id"]
}
`

const updateMemorySchema = `
{
  "type": "object",
  "properties": {
    "memory_id": { "type": "string", "description": "The id of the memory to update" },
    "content": { "type": "string", "description": "Replacement content" },
    "tags": { "type": "array", "items": { "type": "string" }, "description": "Replacement tag list" },
    "importance": { "type": "number", "description": "Replacement importance, 0.0 to 1.0" },
    "memory_name": { "type": "string", "description": "Target memory instance; defaults to the first enabled one" }
  },
  "required": ["memory_id"]
}
`

const deleteMemorySchema = `
{
  "type": "object",
  "properties": {
    "memory_id": { "type": "string", "description": "The id of the memory to delete" },
    "memory_name": { "type": "string", "description": "Target memory instance; defaults to the first enabled one" }
  },
  "required": ["memory_id"]
}
`

const getMemoryStatsSchema = `
{
  "type": "object",
  "properties": {
    "memory_name": { "type": "string", "description": "Target memory instance; defaults to the first enabled one" }
  }
}
`

// Result is the uniform envelope relayed back to the model as a tool
// result. Handlers never return a Go error to the chat runtime; every
// failure is folded into the envelope.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

func (r Result) encode() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(data)
}

// Memory exposes the memory store as function-calling tools.
type Memory struct {
	store *memstore.Manager
}

func NewMemory(store *memstore.Manager) *Memory {
	return &Memory{store: store}
}

// resolveInstance picks the instance named in the arguments, or falls back
// to the first enabled one.
func (m *Memory) resolveInstance(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	def, ok := m.store.DefaultInstance()
	if !ok {
		return "", errors.New("no enabled memory instances")
	}
	return def, nil
}

func (m *Memory) AddMemory(ctx context.Context, args json.RawMessage) Result {
	var input struct {
		Content    string         `json:"content"`
		Type       string         `json:"type"`
		Tags       []string       `json:"tags"`
		Importance *float64       `json:"importance"`
		Source     string         `json:"source"`
		Metadata   map[string]any `json:"metadata"`
		MemoryName string         `json:"memory_name"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return failure("invalid arguments: %v", err)
	}

	name, err := m.resolveInstance(input.MemoryName)
	if err != nil {
		return failure("%v", err)
	}

	entry, err := m.store.Add(ctx, name, memstore.AddParams{
		Content:    input.Content,
		Type:       core.MemoryType(input.Type),
		Tags:       input.Tags,
		Importance: input.Importance,
		Source:     input.Source,
		Metadata:   input.Metadata,
	})
	if err != nil {
		return failure("%v", err)
	}
	return Result{Success: true, Message: fmt.Sprintf("Memory %s saved", entry.ID), Data: entry}
}

func (m *Memory) SearchMemories(ctx context.Context, args json.RawMessage) Result {
	var input struct {
		Query         string   `json:"query"`
		Tags          []string `json:"tags"`
		Type          string   `json:"type"`
		MinImportance *float64 `json:"min_importance"`
		Limit         int      `json:"limit"`
		MemoryName    string   `json:"memory_name"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return failure("invalid arguments: %v", err)
	}

	name, err := m.resolveInstance(input.MemoryName)
	if err != nil {
		return failure("%v", err)
	}

	entries, err := m.store.Search(ctx, name, memstore.Filter{
		Query:         input.Query,
		Tags:          input.Tags,
		Type:          core.MemoryType(input.Type),
		MinImportance: input.MinImportance,
		Limit:         input.Limit,
	})
	if err != nil {
		return failure("%v", err)
	}
	return Result{Success: true, Data: map[string]any{
		"results": entries,
		"count":   len(entries),
	}}
}

func (m *Memory) GetMemory(ctx context.Context, args json.RawMessage) Result {
	var input struct {
		MemoryID   string `json:"memory_id"`
		MemoryName string `json:"memory_name"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return failure("invalid arguments: %v", err)
	}

	name, err := m.resolveInstance(input.MemoryName)
	if err != nil {
		return failure("%v", err)
	}

	entry, err := m.store.Get(ctx, name, input.MemoryID)
	if errors.Is(err, memstore.ErrNotFound) {
		return failure("Memory '%s' not found", input.MemoryID)
	}
	if err != nil {
		return failure("%v", err)
	}
	return Result{Success: true, Data: entry}
}

func (m *Memory) UpdateMemory(ctx context.Context, args json.RawMessage) Result {
	var input struct {
		MemoryID   string         `json:"memory_id"`
		Content    *string        `json:"content"`
		Tags       []string       `json:"tags"`
		Importance *float64       `json:"importance"`
		Metadata   map[string]any `json:"metadata"`
		MemoryName string         `json:"memory_name"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return failure("invalid arguments: %v", err)
	}

	name, err := m.resolveInstance(input.MemoryName)
	if err != nil {
		return failure("%v", err)
	}

	ok, err := m.store.Update(ctx, name, input.MemoryID, memstore.Changes{
		Content:    input.Content,
		Tags:       input.Tags,
		Importance: input.Importance,
		Metadata:   input.Metadata,
	})
	if err != nil {
		return failure("Failed to update '%s': %v", input.MemoryID, err)
	}
	if !ok {
		return failure("Memory '%s' not found", input.MemoryID)
	}
	return Result{Success: true, Message: fmt.Sprintf("Memory %s updated", input.MemoryID)}
}

func (m *Memory) DeleteMemory(ctx context.Context, args json.RawMessage) Result {
	var input struct {
		MemoryID   string `json:"memory_id"`
		MemoryName string `json:"memory_name"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return failure("invalid arguments: %v", err)
	}

	name, err := m.resolveInstance(input.MemoryName)
	if err != nil {
		return failure("%v", err)
	}

	ok, err := m.store.Delete(ctx, name, input.MemoryID)
	if err != nil {
		return failure("Failed to delete '%s': %v", input.MemoryID, err)
	}
	if !ok {
		return failure("Memory '%s' not found", input.MemoryID)
	}
	return Result{Success: true, Message: fmt.Sprintf("Memory %s deleted", input.MemoryID)}
}

func (m *Memory) GetMemoryStats(ctx context.Context, args json.RawMessage) Result {
	var input struct {
		MemoryName string `json:"memory_name"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return failure("invalid arguments: %v", err)
		}
	}

	name, err := m.resolveInstance(input.MemoryName)
	if err != nil {
		return failure("%v", err)
	}

	stats := m.store.Stats(ctx, name)
	if stats.Error != "" {
		return failure("%s", stats.Error)
	}
	return Result{Success: true, Data: stats}
}

// Execute dispatches a tool call by name. An unknown name is a failure
// envelope, never a Go error.
func (m *Memory) Execute(ctx context.Context, name string, args json.RawMessage) Result {
	switch name {
	case "add_memory":
		return m.AddMemory(ctx, args)
	case "search_memories":
		return m.SearchMemories(ctx, args)
	case "get_memory":
		return m.GetMemory(ctx, args)
	case "update_memory":
		return m.UpdateMemory(ctx, args)
	case "delete_memory":
		return m.DeleteMemory(ctx, args)
	case "get_memory_stats":
		return m.GetMemoryStats(ctx, args)
	default:
		return failure("Unknown tool: %s", name)
	}
}

func (m *Memory) GetDefinitions() map[string]struct {
	Description string
	Schema      string
	Handler     func(context.Context, json.RawMessage) (string, error)
} {
	wrap := func(name string) func(context.Context, json.RawMessage) (string, error) {
		return func(ctx context.Context, args json.RawMessage) (string, error) {
			return m.Execute(ctx, name, args).encode(), nil
		}
	}
	return map[string]struct {
		Description string
		Schema      string
		Handler     func(context.Context, json.RawMessage) (string, error)
	}{
		"add_memory":       {"Store a new long-term memory", addMemorySchema, wrap("add_memory")},
		"search_memories":  {"Search stored memories by text, tags, type or importance", searchMemoriesSchema, wrap("search_memories")},
		"get_memory":       {"Fetch a single memory by id", getMemorySchema, wrap("get_memory")},
		"update_memory":    {"Update an existing memory's content, tags or importance", updateMemorySchema, wrap("update_memory")},
		"delete_memory":    {"Delete a memory by id", deleteMemorySchema, wrap("delete_memory")},
		"get_memory_stats": {"Report aggregate statistics for the memory store", getMemoryStatsSchema, wrap("get_memory_stats")},
	}
}
