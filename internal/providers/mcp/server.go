package mcp

import (
	"context"
	"encoding/json"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sandevgo/packrat/internal/core"
)

// NewServer exposes the given toolsets over the MCP protocol, so external
// clients (editors, other agents) can read and write the same memory store
// the chat runtime uses.
func NewServer(toolsets ...Toolset) *server.MCPServer {
	s := server.NewMCPServer(
		core.AppName,
		core.AppVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, ts := range toolsets {
		for name, def := range ts.GetDefinitions() {
			tool := mcpproto.Tool{
				Name:           name,
				Description:    def.Description,
				RawInputSchema: json.RawMessage(def.Schema),
			}
			s.AddTool(tool, wrapHandler(def.Handler))
		}
	}
	return s
}

// ServeStdio blocks until stdin closes or the context is cancelled.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func wrapHandler(h NativeHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcpproto.NewToolResultError(err.Error()), nil
		}
		out, err := h(ctx, args)
		if err != nil {
			return mcpproto.NewToolResultError(err.Error()), nil
		}
		return mcpproto.NewToolResultText(out), nil
	}
}
