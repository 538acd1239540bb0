package agent

import (
	"context"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/pkg/log"
)

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			panic(err)
		}
		tk = enc
	})
	return tk
}

func countTokens(msg core.Message) int {
	text := msg.Content
	for _, tc := range msg.ToolCalls {
		text += tc.Function.Name + tc.Function.Arguments
	}
	return len(getTokenizer().Encode(text, nil, nil))
}

// sanitizeToolCalls drops tool result messages whose originating
// assistant tool call is no longer in the transcript. Providers reject
// a tool message without its matching call.
func sanitizeToolCalls(ctx context.Context, msgs []core.Message) []core.Message {
	known := make(map[string]bool)
	for _, msg := range msgs {
		for _, tc := range msg.ToolCalls {
			known[tc.ID] = true
		}
	}

	var out []core.Message
	for _, msg := range msgs {
		if msg.Role == core.RoleTool && !known[msg.ToolCallID] {
			log.FromCtx(ctx).Debug().Str("tool_call_id", msg.ToolCallID).Msg("dropping orphaned tool result")
			continue
		}
		out = append(out, msg)
	}
	return out
}

// trimToBudget keeps the newest messages that fit within budget tokens.
// Assistant tool calls and their results are kept or dropped together,
// so the cut never lands inside a call group. A budget of zero or less
// disables trimming.
func trimToBudget(msgs []core.Message, budget int) []core.Message {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	total := 0
	cut := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		total += countTokens(msgs[i])
		if total > budget {
			break
		}
		cut = i
	}
	if cut == 0 {
		return msgs
	}
	if cut == len(msgs) {
		// Even the newest message blows the budget. Keep it anyway.
		cut = len(msgs) - 1
	}

	// Move the cut forward past any tool results whose call fell above it.
	for cut < len(msgs) && msgs[cut].Role == core.RoleTool {
		cut++
	}
	return msgs[cut:]
}
