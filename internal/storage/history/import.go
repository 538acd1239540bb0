package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/pkg/log"
)

const txtSeparator = "--------------------------------------------------------------------------------" // 80 dashes

var timestampLine = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ImportSession reads a session from a foreign export. The format is picked
// by extension (.json, .md, anything else is treated as plain text). A
// structurally invalid file yields (nil, nil) so the caller can report a
// clean user-facing error; only I/O failures are errors. The returned
// session has no id or message count yet; saving it assigns both.
func (s *Store) ImportSession(ctx context.Context, path string) (*core.ChatSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	var session *core.ChatSession
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		session = parseJSONSession(data)
	case ".md", ".markdown":
		session = parseMarkdownSession(data)
	default:
		session = parseTextSession(data)
	}

	if session == nil {
		log.FromCtx(ctx).Warn().Str("path", path).Msg("import file has no recognizable session structure")
		return nil, nil
	}

	log.FromCtx(ctx).Info().
		Str("path", path).
		Int("messages", len(session.Messages)).
		Msg("session imported")
	return session, nil
}

// parseJSONSession accepts an exported session as-is, requiring only that
// "messages" is a list.
func parseJSONSession(data []byte) *core.ChatSession {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	msgsRaw, ok := raw["messages"]
	if !ok {
		return nil
	}
	var messages []core.Message
	if err := json.Unmarshal(msgsRaw, &messages); err != nil {
		return nil
	}

	var session core.ChatSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil
	}
	session.SessionID = ""
	session.MessageCount = 0
	session.Messages = messages
	return &session
}

// parseMarkdownSession walks the markdown AST: headings naming a role open
// a message, everything until the next heading is its content. Timestamp
// and "Exported on" footer lines are dropped.
func parseMarkdownSession(data []byte) *core.ChatSession {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse(data)

	var messages []core.Message
	role := ""
	var content []string

	flush := func() {
		if role == "" {
			return
		}
		text := strings.TrimSpace(strings.Join(content, "\n"))
		if text != "" {
			messages = append(messages, core.Message{Role: role, Content: text})
		}
		content = nil
	}

	for _, node := range doc.GetChildren() {
		if h, ok := node.(*ast.Heading); ok {
			if r := roleFromHeading(nodeText(h)); r != "" {
				flush()
				role = r
			}
			continue
		}

		text := nodeText(node)
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "Exported on ") || timestampLine.MatchString(trimmed) {
			continue
		}
		if role != "" {
			content = append(content, trimmed)
		}
	}
	flush()

	if len(messages) == 0 {
		return nil
	}
	return &core.ChatSession{Messages: messages}
}

// parseTextSession scans a plain-text export: USER/ASSISTANT/SYSTEM marker
// lines open a message, 80-dash separators close one, and an "Exported on "
// footer ends the transcript.
func parseTextSession(data []byte) *core.ChatSession {
	var messages []core.Message
	role := ""
	var content []string

	flush := func() {
		if role == "" {
			return
		}
		text := strings.TrimSpace(strings.Join(content, "\n"))
		if text != "" {
			messages = append(messages, core.Message{Role: role, Content: text})
		}
		role = ""
		content = nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "Exported on ") {
			break
		}
		if trimmed == txtSeparator {
			flush()
			continue
		}
		if r := roleFromMarker(trimmed); r != "" {
			flush()
			role = r
			continue
		}
		if role != "" {
			content = append(content, line)
		}
	}
	flush()

	if len(messages) == 0 {
		return nil
	}
	return &core.ChatSession{Messages: messages}
}

func roleFromHeading(text string) string {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "user":
		return core.RoleUser
	case "assistant":
		return core.RoleAssistant
	case "system":
		return core.RoleSystem
	}
	return ""
}

func roleFromMarker(line string) string {
	switch strings.ToUpper(strings.TrimSuffix(line, ":")) {
	case "USER":
		return core.RoleUser
	case "ASSISTANT":
		return core.RoleAssistant
	case "SYSTEM":
		return core.RoleSystem
	}
	return ""
}

// nodeText collects the literal text beneath a node.
func nodeText(node ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Literal)
		case *ast.Code:
			sb.Write(t.Literal)
		case *ast.CodeBlock:
			sb.Write(t.Literal)
		}
		return ast.GoToNext
	})
	return sb.String()
}
