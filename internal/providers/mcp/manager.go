package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/pkg/log"
)

// NativeHandler defines a function signature for in-process tools.
type NativeHandler func(ctx context.Context, args json.RawMessage) (string, error)

// Toolset is anything exposing a bundle of native tools, matching the
// GetDefinitions convention of internal/providers/tools.
type Toolset interface {
	GetDefinitions() map[string]struct {
		Description string
		Schema      string
		Handler     func(context.Context, json.RawMessage) (string, error)
	}
}

type Timeouts struct {
	Connect  time.Duration
	ToolList time.Duration
	ToolCall time.Duration
}

func NewDefaultTimeouts() *Timeouts {
	return &Timeouts{
		Connect:  30 * time.Second,
		ToolList: 5 * time.Second,
		ToolCall: 2 * time.Minute,
	}
}

var _ core.ToolProvider = (*Manager)(nil)

// Manager aggregates native toolsets with tools served by external MCP
// servers listed in mcp_config.json. External tool names are prefixed with
// their server name so collisions stay unambiguous.
type Manager struct {
	configPath string
	timeouts   *Timeouts

	mu           sync.RWMutex
	config       Config
	clients      map[string]*client.Client
	toolToClient map[string]*client.Client
	cachedTools  []core.Tool
	cacheValid   bool

	nativeTools    map[string]NativeHandler
	nativeToolDefs []core.Tool
}

func NewManager(configPath string, toolsets ...Toolset) *Manager {
	m := &Manager{
		configPath:   configPath,
		timeouts:     NewDefaultTimeouts(),
		clients:      make(map[string]*client.Client),
		toolToClient: make(map[string]*client.Client),
		nativeTools:  make(map[string]NativeHandler),
	}
	for _, ts := range toolsets {
		m.registerToolset(ts)
	}
	return m
}

func (m *Manager) registerToolset(ts Toolset) {
	for name, def := range ts.GetDefinitions() {
		m.nativeTools[name] = def.Handler
		m.nativeToolDefs = append(m.nativeToolDefs, core.Tool{
			Type: "function",
			Function: core.Function{
				Name:        name,
				Description: def.Description,
				Parameters:  json.RawMessage(def.Schema),
			},
		})
	}
}

// Start loads mcp_config.json (a missing file means no external servers)
// and connects each configured server. Connection failures are logged and
// skipped so one dead server never blocks startup.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.loadConfig(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheValid = false

	for name, srv := range m.config.MCPServers {
		log.FromCtx(ctx).Info().Str("server", name).Msg("starting mcp connection")

		cli, err := m.connectServer(ctx, srv)
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Str("server", name).Msg("failed to connect mcp server")
			continue
		}
		m.clients[name] = cli
	}
	return nil
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, cli := range m.clients {
		if err := cli.Close(); err != nil {
			log.FromCtx(ctx).Error().Err(err).Str("server", name).Msg("failed to close mcp client")
		}
	}
	m.clients = make(map[string]*client.Client)
	return nil
}

func (m *Manager) connectServer(ctx context.Context, cfg ServerConfig) (*client.Client, error) {
	tt, err := cfg.GetTransport()
	if err != nil {
		return nil, err
	}
	transport, err := NewTransport(tt)
	if err != nil {
		return nil, err
	}

	cCtx, cancel := context.WithTimeout(ctx, m.timeouts.Connect)
	defer cancel()
	return transport(cCtx, cfg)
}

// GetTools returns the native definitions plus everything the connected
// servers advertise. Results are cached until the next Start.
func (m *Manager) GetTools(ctx context.Context) ([]core.Tool, error) {
	m.mu.RLock()
	if m.cacheValid {
		tools := m.cachedTools
		m.mu.RUnlock()
		return tools, nil
	}
	clients := make(map[string]*client.Client, len(m.clients))
	for k, v := range m.clients {
		clients[k] = v
	}
	m.mu.RUnlock()

	allTools := make([]core.Tool, len(m.nativeToolDefs))
	copy(allTools, m.nativeToolDefs)

	type toolResult struct {
		serverName string
		tools      []mcpproto.Tool
		err        error
	}
	results := make(chan toolResult, len(clients))
	var wg sync.WaitGroup

	for name, cli := range clients {
		wg.Add(1)
		go func(n string, c *client.Client) {
			defer wg.Done()
			tCtx, cancel := context.WithTimeout(ctx, m.timeouts.ToolList)
			defer cancel()

			resp, err := c.ListTools(tCtx, mcpproto.ListToolsRequest{})
			if err != nil {
				results <- toolResult{serverName: n, err: err}
				return
			}
			results <- toolResult{serverName: n, tools: resp.Tools}
		}(name, cli)
	}
	wg.Wait()
	close(results)

	routing := make(map[string]*client.Client)
	for res := range results {
		if res.err != nil {
			log.FromCtx(ctx).Error().Err(res.err).Str("server", res.serverName).Msg("failed to list tools")
			continue
		}
		for _, t := range res.tools {
			qualified := fmt.Sprintf("%s.%s", res.serverName, t.Name)
			routing[qualified] = clients[res.serverName]

			schemaBytes, _ := json.Marshal(t.InputSchema)
			allTools = append(allTools, core.Tool{
				Type: "function",
				Function: core.Function{
					Name:        qualified,
					Description: t.Description,
					Parameters:  schemaBytes,
				},
			})
		}
	}

	m.mu.Lock()
	m.cachedTools = allTools
	m.toolToClient = routing
	m.cacheValid = true
	m.mu.Unlock()

	return allTools, nil
}

// CallTool routes to a native handler first, then to the owning external
// server by the qualified tool name.
func (m *Manager) CallTool(ctx context.Context, name string, args string) (string, error) {
	log.FromCtx(ctx).Info().Str("tool", name).Msg("executing tool")

	if handler, ok := m.nativeTools[name]; ok {
		return handler(ctx, json.RawMessage(args))
	}

	m.mu.RLock()
	cli, ok := m.toolToClient[name]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}

	argsMap := make(map[string]any)
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return "", fmt.Errorf("invalid json arguments: %w", err)
		}
	}

	serverName, toolName, _ := strings.Cut(name, ".")
	req := mcpproto.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = argsMap

	tCtx, cancel := context.WithTimeout(ctx, m.timeouts.ToolCall)
	defer cancel()

	res, err := cli.CallTool(tCtx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", serverName, err)
	}

	var output strings.Builder
	for _, content := range res.Content {
		if text, ok := content.(mcpproto.TextContent); ok {
			output.WriteString(text.Text + "\n")
		} else if textPtr, ok := content.(*mcpproto.TextContent); ok {
			output.WriteString(textPtr.Text + "\n")
		}
	}
	if res.IsError {
		return "", fmt.Errorf("tool execution failed: %s", output.String())
	}
	return output.String(), nil
}

func (m *Manager) loadConfig(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.FromCtx(ctx).Debug().Str("path", m.configPath).Msg("no mcp config, native tools only")
			m.config = Config{MCPServers: make(map[string]ServerConfig)}
			return nil
		}
		return fmt.Errorf("failed to read mcp config: %w", err)
	}

	if err := json.Unmarshal(data, &m.config); err != nil {
		return fmt.Errorf("failed to parse mcp config: %w", err)
	}
	return nil
}
