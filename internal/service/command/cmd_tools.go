package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/packrat/internal/core"
)

type toolsCommand struct {
	tools     core.ToolProvider
	formatter *Formatter
}

func NewToolsCommand(tools core.ToolProvider) Command {
	return &toolsCommand{
		tools:     tools,
		formatter: NewFormatter(),
	}
}

func (c *toolsCommand) Name() string        { return "tools" }
func (c *toolsCommand) Description() string { return "List the tools available to the model" }

func (c *toolsCommand) Execute(ctx context.Context, args []string) (string, error) {
	tools, err := c.tools.GetTools(ctx)
	if err != nil {
		return "", err
	}

	if len(tools) == 0 {
		return c.formatter.Combine(
			c.formatter.Title("Tools"),
			c.formatter.Muted("No tools are currently available."),
		), nil
	}

	items := make([]string, len(tools))
	for i, tool := range tools {
		desc := strings.Join(strings.Fields(tool.Function.Description), " ")
		if len(desc) > 120 {
			desc = desc[:117] + "..."
		}
		items[i] = fmt.Sprintf("%s: %s", tool.Function.Name, desc)
	}

	return c.formatter.Combine(
		c.formatter.Title("Tools"),
		c.formatter.Label("Available", fmt.Sprintf("%d", len(tools))),
		c.formatter.List(items),
	), nil
}
