package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyDays   int
	historyDryRun bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage chat history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}

		sessions, err := st.history.ListSessions(ctx, historyLimit, historyDays)
		if err != nil {
			return err
		}
		return printJSON(sessions)
	},
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Move old chat sessions to the trash",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}

		count, paths, err := st.history.PurgeOldSessions(ctx, historyDays, historyDryRun)
		if err != nil {
			return err
		}

		if historyDryRun {
			fmt.Printf("would purge %d session(s)\n", count)
		} else {
			fmt.Printf("purged %d session(s)\n", count)
		}
		for _, p := range paths {
			fmt.Printf("  %s\n", p)
		}
		return nil
	},
}

var historyImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a session from a JSON, Markdown or plain text export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}

		session, err := st.history.ImportSession(ctx, args[0])
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("could not recognize a chat session in %s", args[0])
		}

		meta := session.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		meta["imported_from"] = args[0]

		saved, err := st.history.SaveSession(ctx, session.Messages, meta)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d message(s) as session %s\n", saved.MessageCount, saved.SessionID)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum sessions to list")
	historyListCmd.Flags().IntVar(&historyDays, "days", 0, "only sessions from the last N days")

	historyPurgeCmd.Flags().IntVar(&historyDays, "days", 30, "purge sessions older than N days")
	historyPurgeCmd.Flags().BoolVar(&historyDryRun, "dry-run", false, "report without purging")

	historyCmd.AddCommand(historyListCmd, historyPurgeCmd, historyImportCmd)
	rootCmd.AddCommand(historyCmd)
}
