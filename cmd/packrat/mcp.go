package main

import (
	"github.com/spf13/cobra"

	"github.com/sandevgo/packrat/internal/providers/mcp"
	"github.com/sandevgo/packrat/internal/providers/tools"
	"github.com/sandevgo/packrat/pkg/log"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server mode",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the memory tools as an MCP server on stdio",
	Long:  `Runs a Model Context Protocol server over stdio so external clients can use Packrat's memory tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}

		log.FromCtx(ctx).Info().Msg("serving memory tools over stdio")
		return mcp.ServeStdio(mcp.NewServer(tools.NewMemory(st.memory)))
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
