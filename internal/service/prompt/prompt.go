// Package prompt resolves file-based prompt templates. Each template is a
// markdown file under the prompts directory; {name} placeholders are
// substituted from a variable map.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandevgo/packrat/internal/core"
)

const defaultSystemPrompt = `You are a personal assistant with a persistent memory.
Use the memory tools to store facts, preferences and tasks the user shares,
and to recall them when asked. Keep answers short and concrete.`

type Builder struct {
	dir string
}

func NewBuilder(dir string) *Builder {
	return &Builder{dir: dir}
}

// BuildPrompt reads <dir>/<name>.md and substitutes every {key} placeholder
// from vars. A missing template file is an error; a missing variable leaves
// the placeholder in place.
func (b *Builder) BuildPrompt(name string, vars map[string]string) (string, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, name+".md"))
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template %s: %w", name, err)
	}

	content := string(data)
	for k, v := range vars {
		content = strings.ReplaceAll(content, "{"+k+"}", v)
	}
	return content, nil
}

// SystemMessages assembles the conversation preamble from the optional
// system.md and identity.md files. With neither present, a built-in default
// keeps the assistant usable out of the box.
func (b *Builder) SystemMessages() []core.Message {
	messages := make([]core.Message, 0, 2)
	readFile := func(name string) string {
		content, err := os.ReadFile(filepath.Join(b.dir, name))
		if err != nil {
			return ""
		}
		return string(content)
	}

	if content := readFile("system.md"); content != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: content})
	}
	if content := readFile("identity.md"); content != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: content})
	}

	if len(messages) == 0 {
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: defaultSystemPrompt})
	}
	return messages
}
