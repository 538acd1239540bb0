package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sandevgo/packrat/internal/config"
	"github.com/sandevgo/packrat/internal/registry"
	"github.com/sandevgo/packrat/pkg/env"
	"github.com/sandevgo/packrat/pkg/log"
)

const defaultSystemMD = `You are a personal assistant with a persistent memory.
Use the memory tools to store facts, preferences and tasks the user shares,
and to recall them when asked. Keep answers short and concrete.
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory layout and default configuration",
	Long:  `Scaffolds the data directory: memory registry with a default instance, prompts, trash buckets and a .env with the current settings. Existing files are left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()
		logger := log.FromCtx(ctx)

		dirs := []string{
			filepath.Join(cfg.GetMemoryRoot(), "main"),
			cfg.GetTrashPath(),
			cfg.GetHistoryPath(),
			cfg.GetPromptsPath(),
		}
		for _, dir := range dirs {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}

		created, err := writeRegistryDefault(cfg)
		if err != nil {
			return err
		}
		if created {
			logger.Info().Str("path", cfg.GetMemoryRegistryPath()).Msg("created memory registry")
		}

		created, err = writeIfAbsent(filepath.Join(cfg.GetPromptsPath(), "system.md"), defaultSystemMD)
		if err != nil {
			return err
		}
		if created {
			logger.Info().Msg("created default system prompt")
		}

		created, err = writeEnvDefault(cfg)
		if err != nil {
			return err
		}
		if created {
			logger.Info().Msg("created .env with current settings")
		}

		fmt.Printf("initialized %s\n", cfg.GetDataPath())
		return nil
	},
}

func writeRegistryDefault(cfg *config.AppConfig) (bool, error) {
	sections := map[string][]registry.Entry{
		"memories": {{Name: "main", Enabled: true, Directory: "main"}},
	}
	data, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return false, err
	}
	return writeIfAbsent(cfg.GetMemoryRegistryPath(), string(data)+"\n")
}

func writeEnvDefault(cfg *config.AppConfig) (bool, error) {
	content, err := env.MarshalEnv(cfg)
	if err != nil {
		return false, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return writeIfAbsent(".env", content)
}

func writeIfAbsent(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
