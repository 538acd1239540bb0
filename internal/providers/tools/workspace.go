package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const wsReadSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "File path relative to the workspace" }
  },
  "required": ["path"]
}
`

const wsWriteSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "File path relative to the workspace" },
    "content": { "type": "string", "description": "The content to write" }
  },
  "required": ["path", "content"]
}
`

const wsListSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Directory path relative to the workspace, empty for the root" }
  }
}
`

const wsSearchSchema = `
{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "The string to search for" },
    "path": { "type": "string", "description": "Directory to search in, empty for the whole workspace" }
  },
  "required": ["query"]
}
`

const searchMatchLimit = 100

// Workspace gives the model file access confined to one directory.
// Paths are resolved relative to the root and may not escape it.
type Workspace struct {
	root string
}

func NewWorkspace(root string) *Workspace {
	if root == "" {
		root, _ = os.Getwd()
	}
	return &Workspace{root: root}
}

func (w *Workspace) resolve(p string) (string, error) {
	full := filepath.Join(w.root, filepath.Clean("/"+p))
	rel, err := filepath.Rel(w.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes the workspace", p)
	}
	return full, nil
}

func (w *Workspace) ReadFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	path, err := w.resolve(input.Path)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

func (w *Workspace) WriteFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	path, err := w.resolve(input.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(path, []byte(input.Content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(input.Content), input.Path), nil
}

func (w *Workspace) ListDir(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	path, err := w.resolve(input.Path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}

	var sb strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&sb, "[DIR]  %s\n", entry.Name())
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "[FILE] %s (%d bytes)\n", entry.Name(), info.Size())
	}
	if sb.Len() == 0 {
		return "(empty)", nil
	}
	return sb.String(), nil
}

func (w *Workspace) SearchFiles(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Query string `json:"query"`
		Path  string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if input.Query == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	start, err := w.resolve(input.Path)
	if err != nil {
		return "", err
	}

	var results strings.Builder
	matches := 0
	err = filepath.WalkDir(start, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != start {
				return filepath.SkipDir
			}
			return nil
		}
		matches += w.grepFile(path, input.Query, &results, searchMatchLimit-matches)
		if matches >= searchMatchLimit {
			results.WriteString("... (too many matches, stopping search)\n")
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	if matches == 0 {
		return "No matches found.", nil
	}
	return results.String(), nil
}

// grepFile appends up to limit matching lines and returns how many it found.
// Binary files are skipped.
func (w *Workspace) grepFile(path, query string, out *strings.Builder, limit int) int {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := file.Read(head)
	if bytes.IndexByte(head[:n], 0) >= 0 {
		return 0
	}
	if _, err := file.Seek(0, 0); err != nil {
		return 0
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}

	found := 0
	lineNum := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() && found < limit {
		lineNum++
		line := scanner.Text()
		if !strings.Contains(line, query) {
			continue
		}
		display := strings.TrimSpace(line)
		if len(display) > 200 {
			display = display[:200] + "..."
		}
		fmt.Fprintf(out, "%s:%d: %s\n", rel, lineNum, display)
		found++
	}
	return found
}

func (w *Workspace) GetDefinitions() map[string]struct {
	Description string
	Schema      string
	Handler     func(context.Context, json.RawMessage) (string, error)
} {
	return map[string]struct {
		Description string
		Schema      string
		Handler     func(context.Context, json.RawMessage) (string, error)
	}{
		"read_file":      {"Read a file from the workspace", wsReadSchema, w.ReadFile},
		"write_file":     {"Write content to a file in the workspace", wsWriteSchema, w.WriteFile},
		"list_directory": {"List a workspace directory", wsListSchema, w.ListDir},
		"search_files":   {"Search workspace files for a string", wsSearchSchema, w.SearchFiles},
	}
}
