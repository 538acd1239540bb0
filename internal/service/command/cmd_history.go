package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sandevgo/packrat/internal/storage/history"
)

type historyCommand struct {
	store     *history.Store
	formatter *Formatter
}

func NewHistoryCommand(store *history.Store) Command {
	return &historyCommand{
		store:     store,
		formatter: NewFormatter(),
	}
}

func (c *historyCommand) Name() string        { return "history" }
func (c *historyCommand) Description() string { return "List recent chat sessions" }

func (c *historyCommand) Execute(ctx context.Context, args []string) (string, error) {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return "", fmt.Errorf("usage: /history [count]")
		}
		limit = n
	}

	sessions, err := c.store.ListSessions(ctx, limit, 0)
	if err != nil {
		return "", err
	}

	if len(sessions) == 0 {
		return c.formatter.Combine(
			c.formatter.Title("History"),
			c.formatter.Muted("No saved sessions."),
		), nil
	}

	items := make([]string, len(sessions))
	for i, s := range sessions {
		items[i] = fmt.Sprintf("%s: %d message(s), %s",
			s.SessionID, s.MessageCount, s.Timestamp.Format("2006-01-02 15:04"))
	}

	return c.formatter.Combine(
		c.formatter.Title("History"),
		c.formatter.List(items),
	), nil
}
