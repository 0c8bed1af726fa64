package usage

import "github.com/agentgraph/orchestrator/internal/llm"

// RecordFromChunks forwards chunks unmodified, accumulating the
// highest input/output token counts a provider reports across the
// stream (providers report running or final totals on later chunks, not
// a delta per chunk) and recording one Record against tracker once the
// stream closes. A nil tracker makes this a transparent passthrough, so
// callers can wire it unconditionally.
func RecordFromChunks(tracker *Tracker, model string, tier llm.Tier, chunks <-chan *llm.CompletionChunk) <-chan *llm.CompletionChunk {
	if tracker == nil {
		return chunks
	}

	out := make(chan *llm.CompletionChunk)
	go func() {
		defer close(out)
		var inputTokens, outputTokens int
		for c := range chunks {
			if c.InputTokens > inputTokens {
				inputTokens = c.InputTokens
			}
			if c.OutputTokens > outputTokens {
				outputTokens = c.OutputTokens
			}
			out <- c
		}
		if inputTokens > 0 || outputTokens > 0 {
			tracker.Record(model, tier, inputTokens, outputTokens, 0)
		}
	}()
	return out
}
