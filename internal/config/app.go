package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/packrat/pkg/log"
)

type AppConfig struct {
	DataPath string `env:"PACKRAT_DATA_PATH" envDefault:".packrat"`

	// LLM endpoint
	LLMProvider string `env:"PACKRAT_LLM_PROVIDER" envDefault:"openai"`
	BaseURL     string `env:"PACKRAT_BASE_URL" envDefault:"http://localhost:8080"`
	APIKey      string `env:"PACKRAT_API_KEY"`
	Model       string `env:"PACKRAT_MODEL" envDefault:"local"`

	// Tool execution
	ToolsEnabled      bool   `env:"PACKRAT_TOOLS_ENABLED" envDefault:"true"`
	ToolExecutionMode string `env:"PACKRAT_TOOL_EXECUTION_MODE" envDefault:"dual_pass_write_only"`

	// Context management
	ContextTokenBudget int `env:"PACKRAT_CONTEXT_TOKEN_BUDGET" envDefault:"6000"`

	// Trash retention
	TrashRetentionDays int `env:"PACKRAT_TRASH_RETENTION_DAYS" envDefault:"30"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	return c
}

func (c AppConfig) GetDataPath() string {
	return c.DataPath
}

func (c AppConfig) GetMemoryRoot() string {
	return filepath.Join(c.DataPath, "memory")
}

func (c AppConfig) GetMemoryRegistryPath() string {
	return filepath.Join(c.DataPath, "memory", "memory_registry.json")
}

func (c AppConfig) GetTrashPath() string {
	return filepath.Join(c.DataPath, "trash")
}

func (c AppConfig) GetHistoryPath() string {
	return filepath.Join(c.DataPath, "history")
}

func (c AppConfig) GetPromptsPath() string {
	return filepath.Join(c.DataPath, "prompts")
}

func (c AppConfig) GetMCPConfigPath() string {
	return filepath.Join(c.DataPath, "mcp_config.json")
}
