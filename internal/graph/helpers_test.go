package graph

import (
	"context"

	"github.com/agentgraph/orchestrator/internal/llm"
	"github.com/agentgraph/orchestrator/internal/memory"
)

// fakeLLMProvider is a minimal llm.Provider double that replays a fixed
// script of replies, one per call, looping the final entry once exhausted.
type fakeLLMProvider struct {
	name    string
	replies []string
	calls   int
}

func (f *fakeLLMProvider) Name() string        { return f.name }
func (f *fakeLLMProvider) SupportsTools() bool  { return true }
func (f *fakeLLMProvider) Models() []llm.Model  { return nil }

func (f *fakeLLMProvider) Complete(_ context.Context, _ *llm.CompletionRequest) (<-chan *llm.CompletionChunk, error) {
	reply := ""
	if len(f.replies) > 0 {
		idx := f.calls
		if idx >= len(f.replies) {
			idx = len(f.replies) - 1
		}
		reply = f.replies[idx]
	}
	f.calls++

	ch := make(chan *llm.CompletionChunk, 2)
	ch <- &llm.CompletionChunk{Text: reply}
	ch <- &llm.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func newFakeRouter(flashReplies, proReplies []string) *llm.Router {
	byTier := map[llm.Tier]llm.Provider{}
	if flashReplies != nil {
		byTier[llm.TierFlash] = &fakeLLMProvider{name: "flash-fake", replies: flashReplies}
	}
	if proReplies != nil {
		byTier[llm.TierPro] = &fakeLLMProvider{name: "pro-fake", replies: proReplies}
	}
	return llm.NewRouter(byTier)
}

func buildMessages(userTurns ...string) []memory.Message {
	var out []memory.Message
	for i, content := range userTurns {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		out = append(out, memory.Message{Role: role, Content: content})
	}
	return out
}

// scriptedToolProvider emits a tool call on its first invocation and a
// plain textual reply on every call after, modeling one react iteration
// that calls a tool followed by a terminal response.
type scriptedToolProvider struct {
	toolName   string
	toolArgs   string
	finalReply string
	calls      int
}

func (p *scriptedToolProvider) Name() string       { return "scripted-fake" }
func (p *scriptedToolProvider) SupportsTools() bool { return true }
func (p *scriptedToolProvider) Models() []llm.Model { return nil }

func (p *scriptedToolProvider) Complete(_ context.Context, _ *llm.CompletionRequest) (<-chan *llm.CompletionChunk, error) {
	ch := make(chan *llm.CompletionChunk, 3)
	if p.calls == 0 {
		ch <- &llm.CompletionChunk{ToolCall: &llm.ToolCallRef{ID: "call-1", Name: p.toolName, Arguments: []byte(p.toolArgs)}}
	} else {
		ch <- &llm.CompletionChunk{Text: p.finalReply}
	}
	p.calls++
	ch <- &llm.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

type fakeSubgraph struct {
	runFn func(ctx context.Context, state *RunState) error
}

func (f *fakeSubgraph) Run(ctx context.Context, state *RunState) error {
	return f.runFn(ctx, state)
}
