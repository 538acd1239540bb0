package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/packrat/internal/storage/memstore"
)

type memoryCommand struct {
	store     *memstore.Manager
	formatter *Formatter
}

func NewMemoryCommand(store *memstore.Manager) Command {
	return &memoryCommand{
		store:     store,
		formatter: NewFormatter(),
	}
}

func (c *memoryCommand) Name() string        { return "memory" }
func (c *memoryCommand) Description() string { return "Show memory instance statistics" }

func (c *memoryCommand) Execute(ctx context.Context, args []string) (string, error) {
	names := c.store.Instances()
	if len(args) > 0 {
		names = args
	}
	if len(names) == 0 {
		return c.formatter.Combine(
			c.formatter.Title("Memory"),
			c.formatter.Muted("No enabled memory instances."),
		), nil
	}

	var items []string
	for _, name := range names {
		stats := c.store.Stats(ctx, name)
		if stats.Error != "" {
			items = append(items, fmt.Sprintf("%s: %s", name, stats.Error))
			continue
		}
		items = append(items, fmt.Sprintf("%s: %d entries, %d bytes",
			name, stats.TotalEntries, stats.SizeBytes))
	}

	return c.formatter.Combine(
		c.formatter.Title("Memory"),
		c.formatter.List(items),
	), nil
}
