package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/packrat/internal/storage/trash"
)

var (
	trashType      string
	trashOlderThan int
	trashForce     bool
	trashDryRun    bool
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Manage soft-deleted items",
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items in the trash",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}

		f := trash.ListFilter{ItemType: trash.ItemType(trashType)}
		if cmd.Flags().Changed("older-than") {
			f.OlderThanDays = &trashOlderThan
		}

		items, err := st.trash.ListItems(ctx, f)
		if err != nil {
			return err
		}
		return printJSON(items)
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore <trash-id>",
	Short: "Restore a trashed item to its original location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}

		if err := st.trash.RestoreFromTrash(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("restored %s\n", args[0])
		return nil
	},
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Permanently delete old trashed items",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}

		days := trashOlderThan
		if !cmd.Flags().Changed("older-than") {
			days = cfg.TrashRetentionDays
		}

		count, ids, err := st.trash.EmptyTrash(ctx, trash.EmptyOptions{
			OlderThanDays: days,
			Force:         trashForce,
			DryRun:        trashDryRun,
		})
		if err != nil {
			return err
		}

		if trashDryRun {
			fmt.Printf("would delete %d item(s)\n", count)
		} else {
			fmt.Printf("deleted %d item(s)\n", count)
		}
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

var trashStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show trash statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}
		return printJSON(st.trash.Stats(ctx))
	},
}

func init() {
	trashListCmd.Flags().StringVar(&trashType, "type", "", "filter by item type: memories, datastores, chat_history, templates")
	trashListCmd.Flags().IntVar(&trashOlderThan, "older-than", 0, "only items older than N days")

	trashEmptyCmd.Flags().IntVar(&trashOlderThan, "older-than", 0, "delete items older than N days (default: retention setting)")
	trashEmptyCmd.Flags().BoolVar(&trashForce, "force", false, "also delete items with unreadable metadata")
	trashEmptyCmd.Flags().BoolVar(&trashDryRun, "dry-run", false, "report without deleting")

	trashCmd.AddCommand(trashListCmd, trashRestoreCmd, trashEmptyCmd, trashStatsCmd)
	rootCmd.AddCommand(trashCmd)
}
