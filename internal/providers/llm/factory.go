package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/packrat/internal/config"
	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/pkg/log"
)

// NewProvider creates the appropriate ChatProvider based on configuration.
func NewProvider(ctx context.Context, cfg *config.AppConfig) (core.ChatProvider, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.LLMProvider).
		Str("model", cfg.Model).
		Msg("starting llm provider")

	switch cfg.LLMProvider {
	case "openai":
		return NewOpenAI(cfg.APIKey, "", cfg.Model), nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "compat":
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}
