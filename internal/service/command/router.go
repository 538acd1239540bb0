package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Command is one REPL slash command, e.g. "/tools".
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args []string) (string, error)
}

type Router struct {
	commands map[string]Command
}

func NewRouter(commands ...Command) *Router {
	r := &Router{
		commands: make(map[string]Command),
	}
	for _, cmd := range commands {
		r.commands[cmd.Name()] = cmd
	}
	r.commands["help"] = &helpCommand{router: r}
	return r
}

// Execute runs input as a slash command. The second return value reports
// whether the input was a command at all; plain chat goes to the agent.
func (r *Router) Execute(ctx context.Context, input string) (string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.Fields(input)
	name := strings.TrimPrefix(parts[0], "/")

	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command: /%s (try /help)", name), true
	}

	result, err := cmd.Execute(ctx, parts[1:])
	if err != nil {
		return fmt.Sprintf("Error: %v", err), true
	}
	return result, true
}

type helpCommand struct {
	router *Router
}

func (c *helpCommand) Name() string        { return "help" }
func (c *helpCommand) Description() string { return "List available commands" }

func (c *helpCommand) Execute(ctx context.Context, args []string) (string, error) {
	names := make([]string, 0, len(c.router.commands))
	for name := range c.router.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "  /%-10s %s\n", name, c.router.commands[name].Description())
	}
	return sb.String(), nil
}
