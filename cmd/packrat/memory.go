package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/internal/storage/memstore"
)

var (
	memInstance   string
	memType       string
	memTags       string
	memImportance float64
	memSource     string
	memLimit      int
	memMinImp     float64
	memContent    string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage memory entries",
}

func resolveMemoryInstance(mgr *memstore.Manager) (string, error) {
	if memInstance != "" {
		return memInstance, nil
	}
	name, ok := mgr.DefaultInstance()
	if !ok {
		return "", errors.New("no enabled memory instances, check the registry")
	}
	return name, nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a memory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}
		name, err := resolveMemoryInstance(st.memory)
		if err != nil {
			return err
		}

		params := memstore.AddParams{
			Content: args[0],
			Type:    core.MemoryType(memType),
			Tags:    splitTags(memTags),
			Source:  memSource,
		}
		if cmd.Flags().Changed("importance") {
			params.Importance = &memImportance
		}

		entry, err := st.memory.Add(ctx, name, params)
		if err != nil {
			return err
		}
		return printJSON(entry)
	},
}

var memorySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memory entries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}
		name, err := resolveMemoryInstance(st.memory)
		if err != nil {
			return err
		}

		f := memstore.Filter{
			Tags:  splitTags(memTags),
			Type:  core.MemoryType(memType),
			Limit: memLimit,
		}
		if len(args) > 0 {
			f.Query = args[0]
		}
		if cmd.Flags().Changed("min-importance") {
			f.MinImportance = &memMinImp
		}

		entries, err := st.memory.Search(ctx, name, f)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"results": entries, "count": len(entries)})
	},
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one memory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}
		name, err := resolveMemoryInstance(st.memory)
		if err != nil {
			return err
		}

		entry, err := st.memory.Get(ctx, name, args[0])
		if errors.Is(err, memstore.ErrNotFound) {
			return fmt.Errorf("memory %q not found in %q", args[0], name)
		}
		if err != nil {
			return err
		}
		return printJSON(entry)
	},
}

var memoryUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a memory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}
		name, err := resolveMemoryInstance(st.memory)
		if err != nil {
			return err
		}

		var ch memstore.Changes
		if cmd.Flags().Changed("content") {
			ch.Content = &memContent
		}
		if cmd.Flags().Changed("tags") {
			ch.Tags = splitTags(memTags)
		}
		if cmd.Flags().Changed("importance") {
			ch.Importance = &memImportance
		}

		ok, err := st.memory.Update(ctx, name, args[0], ch)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("memory %q not found in %q", args[0], name)
		}
		fmt.Printf("updated %s\n", args[0])
		return nil
	},
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a memory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}
		name, err := resolveMemoryInstance(st.memory)
		if err != nil {
			return err
		}

		ok, err := st.memory.Delete(ctx, name, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("memory %q not found in %q", args[0], name)
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory instance statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}

		if memInstance != "" {
			return printJSON(st.memory.Stats(ctx, memInstance))
		}

		var all []memstore.Stats
		for _, name := range st.memory.Instances() {
			all = append(all, st.memory.Stats(ctx, name))
		}
		return printJSON(all)
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled memory instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush, cfg := initRuntime(cmd.Context())
		defer flush()

		st, err := newStores(ctx, cfg)
		if err != nil {
			return err
		}
		return printJSON(st.memory.Instances())
	},
}

func init() {
	memoryCmd.PersistentFlags().StringVarP(&memInstance, "memory", "m", "", "memory instance name (default: first enabled)")

	memoryAddCmd.Flags().StringVar(&memType, "type", "", "entry type: note, fact, preference, task, context")
	memoryAddCmd.Flags().StringVar(&memTags, "tags", "", "comma-separated tags")
	memoryAddCmd.Flags().Float64Var(&memImportance, "importance", 0, "importance between 0 and 1")
	memoryAddCmd.Flags().StringVar(&memSource, "source", "user", "entry source")

	memorySearchCmd.Flags().StringVar(&memType, "type", "", "filter by entry type")
	memorySearchCmd.Flags().StringVar(&memTags, "tags", "", "filter by comma-separated tags")
	memorySearchCmd.Flags().Float64Var(&memMinImp, "min-importance", 0, "minimum importance")
	memorySearchCmd.Flags().IntVar(&memLimit, "limit", 10, "maximum results")

	memoryUpdateCmd.Flags().StringVar(&memContent, "content", "", "new content")
	memoryUpdateCmd.Flags().StringVar(&memTags, "tags", "", "new comma-separated tags")
	memoryUpdateCmd.Flags().Float64Var(&memImportance, "importance", 0, "new importance")

	memoryCmd.AddCommand(memoryAddCmd, memorySearchCmd, memoryGetCmd, memoryUpdateCmd, memoryDeleteCmd, memoryStatsCmd, memoryListCmd)
	rootCmd.AddCommand(memoryCmd)
}
