package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/sandevgo/packrat/internal/config"
	"github.com/sandevgo/packrat/internal/providers/llm"
	"github.com/sandevgo/packrat/internal/providers/mcp"
	"github.com/sandevgo/packrat/internal/providers/tools"
	"github.com/sandevgo/packrat/internal/registry"
	"github.com/sandevgo/packrat/internal/service/agent"
	"github.com/sandevgo/packrat/internal/service/command"
	"github.com/sandevgo/packrat/internal/service/prompt"
	"github.com/sandevgo/packrat/internal/storage/history"
	"github.com/sandevgo/packrat/internal/storage/memstore"
	"github.com/sandevgo/packrat/internal/storage/trash"
	"github.com/sandevgo/packrat/internal/transport/cli"
	"github.com/sandevgo/packrat/pkg/log"
	"github.com/sandevgo/packrat/pkg/srv"
)

// stores bundles the file-backed layers every subcommand needs.
type stores struct {
	registry *registry.Registry
	memory   *memstore.Manager
	trash    *trash.Store
	history  *history.Store
}

// initRuntime is the common subcommand preamble: load .env, set up the
// logger and parse the app config.
func initRuntime(ctx context.Context) (context.Context, func(), *config.AppConfig) {
	ctx, flush := setupLogger(ctx)
	initEnv(ctx)
	return ctx, flush, config.NewAppConfig(ctx)
}

func newStores(ctx context.Context, cfg *config.AppConfig) (*stores, error) {
	reg := registry.NewRegistry(cfg.GetMemoryRegistryPath(), "memories")
	if err := reg.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load memory registry: %w", err)
	}

	tr, err := trash.NewStore(cfg.GetTrashPath())
	if err != nil {
		return nil, fmt.Errorf("failed to init trash store: %w", err)
	}

	hist, err := history.NewStore(cfg.GetHistoryPath(), tr)
	if err != nil {
		return nil, fmt.Errorf("failed to init history store: %w", err)
	}

	return &stores{
		registry: reg,
		memory:   memstore.NewManager(cfg.GetMemoryRoot(), reg),
		trash:    tr,
		history:  hist,
	}, nil
}

// NewServices wires the full chat runtime: stores, LLM provider, MCP
// manager with the native memory toolset, the agent and the readline
// transport. stop ends the process when the REPL exits.
func NewServices(ctx context.Context, cfg *config.AppConfig, stop context.CancelFunc) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	st, err := newStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	aiProvider, err := llm.NewProvider(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM provider")
	}

	fetch := tools.NewFetch()
	mcpManager := mcp.NewManager(
		cfg.GetMCPConfigPath(),
		tools.NewMemory(st.memory),
		fetch,
		tools.NewWorkspace(cfg.GetDataPath()),
	)

	ag := agent.NewAgent(
		cfg,
		aiProvider,
		mcpManager,
		prompt.NewBuilder(cfg.GetPromptsPath()),
		agent.NewExecutor(mcpManager),
		st.history,
	)

	router := command.NewRouter(
		command.NewToolsCommand(mcpManager),
		command.NewMemoryCommand(st.memory),
		command.NewHistoryCommand(st.history),
	)

	repl, err := cli.NewReadLine(ag, router, cfg, stop)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize readline")
	}

	// Shutdown runs in slice order: close the REPL, let the agent finish
	// its background pass and save the session, then drop MCP clients.
	services = append(services, repl, ag, mcpManager, srv.NewCleanup(fetch.Close))

	return services
}

func initEnv(ctx context.Context) {
	const envFile = ".env"

	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return
	}
	log.FromCtx(ctx).Debug().Str("path", envFile).Msg("loaded .env file")
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
