package memory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// DefaultCompressionThresholdTokens is the estimated-prompt-token count
// that triggers compression (§4.H).
const DefaultCompressionThresholdTokens = 60_000

// DefaultPreserveRecent is how many of the most recent messages are left
// untouched by compression.
const DefaultPreserveRecent = 10

// SummaryPrefix is prepended to the synthetic system message carrying
// the compressed summary.
const SummaryPrefix = "[Previous conversation summary] "

// Summarizer produces a text summary of a message slice. Bound to the
// FLASH-tier provider at call sites.
type Summarizer interface {
	Summarize(ctx context.Context, messages []Message) (string, error)
}

// referencePatterns extract durable references that must survive
// summarization even if the LLM's summary drops them: file paths, URLs,
// tool names, and shell commands.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://\S+`),
	regexp.MustCompile(`(?:/[\w.\-]+)+\.\w+`),
	regexp.MustCompile(`` + "`[\\w.\\-]+`"),
}

// Compressor performs context compression over a Window.
type Compressor struct {
	Threshold      int
	PreserveRecent int
	Tokenizer      Tokenizer
	Summarizer     Summarizer
}

// NewCompressor builds a compressor with the spec defaults; pass a
// Tokenizer for accurate token counts or nil for the length heuristic.
func NewCompressor(summarizer Summarizer, tok Tokenizer) *Compressor {
	return &Compressor{
		Threshold:      DefaultCompressionThresholdTokens,
		PreserveRecent: DefaultPreserveRecent,
		Tokenizer:      tok,
		Summarizer:     summarizer,
	}
}

// MaybeCompress checks the estimated token count of messages and, if
// over Threshold, compresses everything older than the last
// PreserveRecent messages into a single synthetic system message. If
// compression is not needed or fails, the original messages are returned
// unchanged.
func (c *Compressor) MaybeCompress(ctx context.Context, messages []Message) ([]Message, error) {
	if EstimateMessagesTokens(c.Tokenizer, messages) <= c.Threshold {
		return messages, nil
	}

	splitIdx := splitPoint(messages, c.PreserveRecent)
	if splitIdx <= 0 {
		return messages, nil // nothing old enough to compress
	}

	older := messages[:splitIdx]
	recent := messages[splitIdx:]

	summary, err := c.Summarizer.Summarize(ctx, older)
	if err != nil {
		return messages, nil // preserve originals intact on failure
	}

	refs := extractReferences(older)
	if len(refs) > 0 {
		summary = summary + "\n\n## Extracted References (automated)\n" + strings.Join(refs, "\n")
	}

	synthetic := Message{Role: RoleSystem, Content: SummaryPrefix + summary}

	out := make([]Message, 0, len(recent)+2)
	if len(recent) > 0 && recent[0].Role == RoleSystem {
		// shouldn't happen given splitPoint semantics, but stay defensive
		out = append(out, recent[0])
		recent = recent[1:]
	}
	out = append(out, synthetic)
	out = append(out, recent...)
	return out, nil
}

// splitPoint finds the index preserveRecent messages back from the end,
// then snaps backward so an assistant message carrying tool calls is
// never separated from its tool responses (§4.H).
func splitPoint(messages []Message, preserveRecent int) int {
	idx := len(messages) - preserveRecent
	if idx <= 0 {
		return 0
	}
	for idx > 0 {
		prev := messages[idx-1]
		if prev.Role == RoleAssistant && prev.HasToolCalls() {
			idx--
			continue
		}
		if idx < len(messages) && messages[idx].Role == RoleTool {
			idx--
			continue
		}
		break
	}
	return idx
}

// extractReferences regex-scans messages for file paths, URLs, and
// backtick-quoted tool/command names, deduplicating while preserving
// first-seen order.
func extractReferences(messages []Message) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range messages {
		for _, re := range referencePatterns {
			for _, match := range re.FindAllString(m.Content, -1) {
				if !seen[match] {
					seen[match] = true
					out = append(out, fmt.Sprintf("- %s", match))
				}
			}
		}
		for _, tc := range m.ToolCalls {
			key := fmt.Sprintf("`%s`", tc.Name)
			if !seen[key] {
				seen[key] = true
				out = append(out, fmt.Sprintf("- %s", key))
			}
		}
	}
	return out
}
