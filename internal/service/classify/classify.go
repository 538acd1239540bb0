// Package classify maps a free-text user message to a memory operation type
// and decides whether the chat runtime should run a second, tool-enabled pass.
package classify

import (
	"regexp"
	"strings"
)

type OperationType string

const (
	OperationRead    OperationType = "READ"
	OperationWrite   OperationType = "WRITE"
	OperationGeneral OperationType = "GENERAL"
)

// Execution modes for ShouldUseDualPass.
const (
	ModeSinglePass        = "single_pass"
	ModeDualPassAll       = "dual_pass_all"
	ModeDualPassWriteOnly = "dual_pass_write_only"
)

// Read patterns are checked before write patterns, so a message matching
// both is classified READ. Order within each list matters too; the first
// match wins.
var readPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bwhat(?:'s| is| are)\s+my\b`),
	regexp.MustCompile(`\bwho(?:'s| is)\s+my\b`),
	regexp.MustCompile(`\bdo you (?:know|remember)\b`),
	regexp.MustCompile(`\bcan you (?:recall|tell me|remind me)\b`),
	regexp.MustCompile(`\bwhat did i (?:say|tell|mention)\b`),
	regexp.MustCompile(`\b(?:retrieve|recall|look up)\b`),
	regexp.MustCompile(`\b(?:find|search|get)\b.*\b(?:memor|note|stored|saved)`),
	regexp.MustCompile(`\bshow me\b`),
	regexp.MustCompile(`\btell me about\b`),
}

var writePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:remember|memorize|store|save|keep track of|note)\s+(?:that\s+)?`),
	regexp.MustCompile(`\bmy\s+\w+(?:\s+\w+)?\s+is\b`),
	regexp.MustCompile(`\bi\s+(?:am|like|prefer|want|need)\b`),
	regexp.MustCompile(`\badd\s+(?:this|that|to)\b`),
	regexp.MustCompile(`\bput\s+(?:this|that)?\s*in\b`),
	regexp.MustCompile(`\bwrite\s+(?:this|that)?\s*down\b`),
}

// DetectOperationType classifies a user message. No match means GENERAL.
func DetectOperationType(message string) OperationType {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return OperationGeneral
	}
	for _, re := range readPatterns {
		if re.MatchString(msg) {
			return OperationRead
		}
	}
	for _, re := range writePatterns {
		if re.MatchString(msg) {
			return OperationWrite
		}
	}
	return OperationGeneral
}

// ShouldUseDualPass decides whether to stream a tool-free answer now and
// re-run the request with tools in the background. Unknown modes fall back
// to single-pass.
func ShouldUseDualPass(op OperationType, mode string, toolsAvailable bool) bool {
	if !toolsAvailable {
		return false
	}
	switch mode {
	case ModeSinglePass:
		return false
	case ModeDualPassAll:
		return true
	case ModeDualPassWriteOnly:
		return op == OperationWrite
	default:
		return false
	}
}
