package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sandevgo/packrat/pkg/log"
	"github.com/sandevgo/packrat/pkg/srv"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the interactive chat session",
	Long:  `Starts the chat REPL with the configured LLM provider, memory tools and MCP servers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// The REPL cancels this context when the user types 'exit'.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ctx, flush, cfg := initRuntime(ctx)
		defer flush()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting packrat")

		services := NewServices(ctx, cfg, cancel)

		srv.StartServices(ctx, services)
		srv.ShutdownServices(ctx, services)

		logger.Info().Msg("packrat has been shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
