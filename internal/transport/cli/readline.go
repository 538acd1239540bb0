package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sandevgo/packrat/internal/config"
	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/internal/service/agent"
	"github.com/sandevgo/packrat/internal/service/command"
	"github.com/sandevgo/packrat/internal/service/ui"
	"github.com/sandevgo/packrat/pkg/log"
)

// ReadLine is the interactive chat transport. Typing 'exit' (or Ctrl+D)
// ends the session and stops the process via the stop callback. Lines
// starting with '/' are dispatched to the command router instead of the
// model.
type ReadLine struct {
	cfg    *config.AppConfig
	agent  *agent.Agent
	router *command.Router
	rl     *readline.Instance
	stop   context.CancelFunc
}

func NewReadLine(ag *agent.Agent, router *command.Router, cfg *config.AppConfig, stop context.CancelFunc) (*ReadLine, error) {
	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.DataPath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:    cfg,
		agent:  ag,
		router: router,
		rl:     rl,
		stop:   stop,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("chat started. Type 'exit' to quit.")

	defer r.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if out, handled := r.router.Execute(ctx, line); handled {
			fmt.Fprintln(r.rl.Stdout(), out)
			continue
		}

		_, err = r.agent.Run(ctx, line, func(msg core.Message) {
			if msg.Content != "" {
				fmt.Fprintf(r.rl.Stdout(), "%s\n", msg.Content)
			}
			if len(msg.ToolCalls) > 0 {
				fmt.Fprintf(r.rl.Stdout(), "[System] Processing %d tool call(s)...\n", len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					fmt.Fprintf(r.rl.Stdout(), "  > Calling %s %s...\n", tc.Function.Name, tc.Function.Arguments)
				}
			}
		})

		if err != nil {
			logger.Error().Err(err).Msg("agent run failed")
			fmt.Fprintln(r.rl.Stdout(), ui.WarnStyle.Render(fmt.Sprintf("Error: %v", err)))
		}
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
