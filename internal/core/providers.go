package core

import "context"

type ChatProvider interface {
	Chat(ctx context.Context, history []Message, tools []Tool) (Message, error)
}

// ToolProvider aggregates callable tools for the chat runtime, regardless
// of whether they run in-process or on an external MCP server.
type ToolProvider interface {
	GetTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args string) (string, error)
}
