package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/sandevgo/packrat/internal/config"
	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/internal/service/classify"
	"github.com/sandevgo/packrat/internal/service/prompt"
	"github.com/sandevgo/packrat/internal/storage/history"
	"github.com/sandevgo/packrat/pkg/log"
	"github.com/sandevgo/packrat/pkg/retry"
)

// Agent runs the chat loop: classify the message, pick a pass strategy,
// hand tool calls to the executor, keep the session transcript. The
// transcript is written to the history store on shutdown.
type Agent struct {
	cfg      *config.AppConfig
	ai       core.ChatProvider
	tools    core.ToolProvider
	prompter *prompt.Builder
	executor *Executor
	sessions *history.Store
	retrier  *retry.Retrier

	mu         sync.Mutex
	transcript []core.Message
	background sync.WaitGroup
}

func NewAgent(
	cfg *config.AppConfig,
	ai core.ChatProvider,
	tools core.ToolProvider,
	prompter *prompt.Builder,
	executor *Executor,
	sessions *history.Store,
) *Agent {
	return &Agent{
		cfg:      cfg,
		ai:       ai,
		tools:    tools,
		prompter: prompter,
		executor: executor,
		sessions: sessions,
		retrier:  retry.NewDefaultRetrier(),
	}
}

func (a *Agent) Start(ctx context.Context) error {
	return nil
}

// Shutdown waits for any background write pass and persists the session.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.background.Wait()

	a.mu.Lock()
	transcript := make([]core.Message, len(a.transcript))
	copy(transcript, a.transcript)
	a.mu.Unlock()

	if len(transcript) == 0 || a.sessions == nil {
		return nil
	}

	_, err := a.sessions.SaveSession(ctx, transcript, map[string]any{
		"source": "agent",
		"model":  a.cfg.Model,
	})
	return err
}

// Run handles one user turn and returns the assistant's final text.
// onUpdate fires for every assistant message, including intermediate
// tool-calling ones.
func (a *Agent) Run(ctx context.Context, input string, onUpdate func(core.Message)) (string, error) {
	logger := log.FromCtx(ctx)

	toolDefs := a.availableTools(ctx)
	op := classify.DetectOperationType(input)
	dualPass := classify.ShouldUseDualPass(op, a.cfg.ToolExecutionMode, len(toolDefs) > 0)

	logger.Debug().
		Str("operation", string(op)).
		Bool("dual_pass", dualPass).
		Int("tools", len(toolDefs)).
		Msg("classified user message")

	a.appendMessage(core.Message{Role: core.RoleUser, Content: input})

	if dualPass {
		return a.runDualPass(ctx, toolDefs, onUpdate)
	}
	return a.runToolLoop(ctx, toolDefs, onUpdate)
}

// runDualPass answers immediately without tools, then repeats the request
// with tools in the background so the memory write still happens. The
// background pass reuses the transcript as it was at answer time; its own
// messages are appended when it finishes.
func (a *Agent) runDualPass(ctx context.Context, toolDefs []core.Tool, onUpdate func(core.Message)) (string, error) {
	reply, err := a.chat(ctx, a.snapshot(), nil)
	if err != nil {
		return "", err
	}
	reply.ToolCalls = nil
	a.appendMessage(reply)
	if onUpdate != nil {
		onUpdate(reply)
	}

	base := a.snapshot()
	bgCtx := context.WithoutCancel(ctx)
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.backgroundWritePass(bgCtx, base, toolDefs)
	}()

	return reply.Content, nil
}

func (a *Agent) backgroundWritePass(ctx context.Context, messages []core.Message, toolDefs []core.Tool) {
	logger := log.FromCtx(ctx)

	for {
		msg, err := a.chat(ctx, messages, toolDefs)
		if err != nil {
			logger.Error().Err(err).Msg("background write pass failed")
			return
		}
		if len(msg.ToolCalls) == 0 {
			logger.Debug().Msg("background write pass made no tool calls")
			return
		}

		messages = append(messages, msg)
		results := a.executor.Execute(ctx, msg.ToolCalls)
		messages = append(messages, results...)
		a.appendMessage(msg)
		a.appendMessage(results...)
	}
}

// runToolLoop is the single-pass path: the model sees the tools directly
// and the loop continues until it stops calling them.
func (a *Agent) runToolLoop(ctx context.Context, toolDefs []core.Tool, onUpdate func(core.Message)) (string, error) {
	var finalContent string

	for {
		msg, err := a.chat(ctx, a.snapshot(), toolDefs)
		if err != nil {
			return "", err
		}
		a.appendMessage(msg)
		if onUpdate != nil {
			onUpdate(msg)
		}
		if msg.Content != "" {
			finalContent = msg.Content
		}
		if len(msg.ToolCalls) == 0 {
			return finalContent, nil
		}

		results := a.executor.Execute(ctx, msg.ToolCalls)
		a.appendMessage(results...)
	}
}

// chat assembles system prompt + trimmed history and calls the provider
// with retry; local servers routinely fail the first request during a cold
// model load.
func (a *Agent) chat(ctx context.Context, transcript []core.Message, toolDefs []core.Tool) (core.Message, error) {
	messages := a.prompter.SystemMessages()
	messages = append(messages, trimToBudget(sanitizeToolCalls(ctx, transcript), a.cfg.ContextTokenBudget)...)

	var reply core.Message
	err := a.retrier.Do(ctx, func() error {
		var chatErr error
		reply, chatErr = a.ai.Chat(ctx, messages, toolDefs)
		return chatErr
	})
	if err != nil {
		return core.Message{}, fmt.Errorf("chat provider: %w", err)
	}
	return reply, nil
}

func (a *Agent) availableTools(ctx context.Context) []core.Tool {
	if !a.cfg.ToolsEnabled || a.tools == nil {
		return nil
	}
	toolDefs, err := a.tools.GetTools(ctx)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to list tools")
		return nil
	}
	return toolDefs
}

func (a *Agent) appendMessage(msgs ...core.Message) {
	a.mu.Lock()
	a.transcript = append(a.transcript, msgs...)
	a.mu.Unlock()
}

func (a *Agent) snapshot() []core.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.Message, len(a.transcript))
	copy(out, a.transcript)
	return out
}
