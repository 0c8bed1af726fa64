package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agentgraph/orchestrator/internal/llm"
	"github.com/agentgraph/orchestrator/internal/memory"
	"github.com/agentgraph/orchestrator/internal/observability"
	"github.com/agentgraph/orchestrator/internal/tools"
	"github.com/agentgraph/orchestrator/internal/usage"
	"github.com/agentgraph/orchestrator/pkg/events"
)

var toolTracer = observability.NewTracer("orchestrator.tools")

// modelName resolves the best label available for tier for usage
// accounting: a provider's first declared model, falling back to its
// name, falling back to the tier itself.
func modelName(router *llm.Router, tier llm.Tier) string {
	p, ok := router.Provider(tier)
	if !ok {
		return string(tier)
	}
	if models := p.Models(); len(models) > 0 {
		return models[0].ID
	}
	return p.Name()
}

// ReactConfig configures the task subgraph's tool-use loop (§4.I).
type ReactConfig struct {
	MaxIterations    int
	MaxContentLength int
	ToolConcurrency  int
	ToolBudget       int
	SystemPrompt     string
	EnablePlanning   bool
}

// DefaultReactConfig returns the spec defaults: 20 iterations, 500-char
// tool result truncation, concurrency 4.
func DefaultReactConfig() ReactConfig {
	return ReactConfig{
		MaxIterations:    20,
		MaxContentLength: 500,
		ToolConcurrency:  4,
		ToolBudget:       maxInlineTools,
	}
}

func (c ReactConfig) withDefaults() ReactConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = 500
	}
	if c.ToolConcurrency <= 0 {
		c.ToolConcurrency = 4
	}
	if c.ToolBudget <= 0 {
		c.ToolBudget = maxInlineTools
	}
	return c
}

// TaskSubgraph implements entry -> plan(optional) -> react -> finalize ->
// exit, the default chat/app/image/data agent (§4.I).
type TaskSubgraph struct {
	Router    *llm.Router
	Tier      llm.Tier
	Tools     *tools.Registry
	Bus       *events.Bus
	Config    ReactConfig
	AgentType string
}

// NewTaskSubgraph builds a task subgraph backed by router's PRO tier.
func NewTaskSubgraph(router *llm.Router, reg *tools.Registry, bus *events.Bus, cfg ReactConfig) *TaskSubgraph {
	if bus == nil {
		bus = events.NewBus(0)
	}
	return &TaskSubgraph{
		Router: router, Tier: llm.TierPro, Tools: reg, Bus: bus,
		Config: cfg.withDefaults(), AgentType: "task",
	}
}

func (s *TaskSubgraph) Run(ctx context.Context, state *RunState) error {
	if s.Config.EnablePlanning {
		if err := s.plan(ctx, state); err != nil {
			return fmt.Errorf("graph/task: plan: %w", err)
		}
	}
	if err := s.react(ctx, state); err != nil {
		return err
	}
	s.finalize(state)
	return nil
}

func (s *TaskSubgraph) plan(ctx context.Context, state *RunState) error {
	s.Bus.Emit(events.Stage("plan", "drafting an execution plan", events.StageRunning))

	req := &llm.CompletionRequest{
		System:    "Draft a brief numbered plan for the upcoming task. Do not execute anything yet.",
		Messages:  toCompletionMessages(state.Messages),
		MaxTokens: 512,
	}
	chunks, err := s.Router.Complete(ctx, s.Tier, req)
	if err != nil {
		s.Bus.Emit(events.Stage("plan", "", events.StageFailed))
		return err
	}
	tracker, _ := usage.FromContext(ctx)
	chunks = usage.RecordFromChunks(tracker, modelName(s.Router, s.Tier), s.Tier, chunks)
	text, err := llm.CollectText(chunks)
	if err != nil {
		s.Bus.Emit(events.Stage("plan", "", events.StageFailed))
		return err
	}

	state.Messages = append(state.Messages, memory.Message{Role: memory.RoleAssistant, Content: "Plan:\n" + text})
	s.Bus.Emit(events.Stage("plan", "", events.StageCompleted))
	return nil
}

func (s *TaskSubgraph) react(ctx context.Context, state *RunState) error {
	s.Bus.Emit(events.Stage("react", "tool-use loop", events.StageRunning))

	allowed := s.Tools.ForAgent(s.AgentType)

	for iter := 0; iter < s.Config.MaxIterations; iter++ {
		active := NarrowToolSet(allowed, latestUserTurn(state.Messages), state.InvokedTools, s.Config.ToolBudget)

		req := &llm.CompletionRequest{
			System:    s.Config.SystemPrompt,
			Messages:  toCompletionMessages(state.Messages),
			Tools:     s.toolDefs(active),
			MaxTokens: 4096,
		}

		chunks, err := s.Router.Complete(ctx, s.Tier, req)
		if err != nil {
			s.Bus.Emit(events.Stage("react", "", events.StageFailed))
			return fmt.Errorf("graph/task: completion: %w", err)
		}
		tracker, _ := usage.FromContext(ctx)
		chunks = usage.RecordFromChunks(tracker, modelName(s.Router, s.Tier), s.Tier, chunks)

		text, toolCalls, err := drainReactChunks(chunks, s.Bus)
		if err != nil {
			s.Bus.Emit(events.Stage("react", "", events.StageFailed))
			return fmt.Errorf("graph/task: stream: %w", err)
		}

		if len(toolCalls) == 0 {
			state.Messages = append(state.Messages, memory.Message{Role: memory.RoleAssistant, Content: text})
			state.Result = text
			s.Bus.Emit(events.Stage("react", "", events.StageCompleted))
			return nil
		}

		assistantMsg := memory.Message{Role: memory.RoleAssistant, Content: text}
		for _, tc := range toolCalls {
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, memory.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: string(tc.Arguments)})
		}
		state.Messages = append(state.Messages, assistantMsg)

		for _, r := range s.executeTools(ctx, toolCalls) {
			state.InvokedTools[r.call.Name] = true

			if handoff, ok := parseHandoffResult(r.result); ok && r.err == nil {
				state.PendingHandoff = handoff
				s.Bus.Emit(events.Stage("react", "", events.StageCompleted))
				return nil
			}

			content := r.result
			if r.err != nil {
				content = fmt.Sprintf("error: %s", r.err.Error())
			}
			truncated := truncate(content, s.Config.MaxContentLength)
			s.Bus.Emit(events.ToolResult(r.call.Name, r.call.ID, truncated))
			state.Messages = append(state.Messages, memory.Message{Role: memory.RoleTool, Content: truncated, ToolCallID: r.call.ID})
		}

		if state.PendingHandoff != nil {
			s.Bus.Emit(events.Stage("react", "", events.StageCompleted))
			return nil
		}
	}

	s.Bus.Emit(events.Stage("react", "max iterations reached", events.StageCompleted))
	return nil
}

func (s *TaskSubgraph) finalize(state *RunState) {
	s.Bus.Emit(events.Stage("finalize", "", events.StageRunning))
	if state.Result == "" && state.PendingHandoff == nil {
		state.Result = "max iterations reached without a terminal response"
	}
	s.Bus.Emit(events.Stage("finalize", "", events.StageCompleted))
}

func (s *TaskSubgraph) toolDefs(names []string) []llm.ToolDef {
	out := make([]llm.ToolDef, 0, len(names))
	for _, name := range names {
		t, ok := s.Tools.Get(name)
		if !ok {
			continue
		}
		out = append(out, llm.ToolDef{Name: t.Name, Description: t.Description, Schema: t.Schema})
	}
	return out
}

type toolExecResult struct {
	call   llm.ToolCallRef
	result string
	err    error
}

// executeTools runs calls in parallel up to s.Config.ToolConcurrency
// (§4.I: "execute the tools in parallel, bounded concurrency, default 4").
func (s *TaskSubgraph) executeTools(ctx context.Context, calls []llm.ToolCallRef) []toolExecResult {
	results := make([]toolExecResult, len(calls))
	sem := make(chan struct{}, s.Config.ToolConcurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		s.Bus.Emit(events.ToolCall(call.Name, call.ID, call.Arguments))
		go func(idx int, c llm.ToolCallRef) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = toolExecResult{call: c, err: ctx.Err()}
				return
			}

			t, ok := s.Tools.Get(c.Name)
			if !ok {
				results[idx] = toolExecResult{call: c, err: fmt.Errorf("unknown tool %q", c.Name)}
				return
			}
			if err := s.Tools.ValidateArgs(c.Name, c.Arguments); err != nil {
				results[idx] = toolExecResult{call: c, err: err}
				return
			}
			toolCtx, span := toolTracer.TraceToolExecution(ctx, c.Name)
			out, err := t.Handler(toolCtx, c.Arguments)
			toolTracer.RecordError(span, err)
			span.End()
			results[idx] = toolExecResult{call: c, result: out, err: err}
		}(i, call)
	}

	wg.Wait()
	return results
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

// toCompletionMessages maps the memory window onto the llm package's wire
// shape. System messages are dropped here since they're carried via
// CompletionRequest.System by each caller.
func toCompletionMessages(messages []memory.Message) []llm.CompletionMessage {
	out := make([]llm.CompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case memory.RoleSystem:
			continue
		case memory.RoleTool:
			out = append(out, llm.CompletionMessage{Role: "tool", ToolResults: []llm.ToolResultRef{{ToolCallID: m.ToolCallID, Content: m.Content}}})
		default:
			out = append(out, llm.CompletionMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}

// drainReactChunks collects a completion stream into its terminal text and
// any requested tool calls, forwarding text chunks onward as token events
// with zero buffering (§4.I/§5).
func drainReactChunks(chunks <-chan *llm.CompletionChunk, bus *events.Bus) (string, []llm.ToolCallRef, error) {
	var text strings.Builder
	var calls []llm.ToolCallRef

	for c := range chunks {
		if c.Error != nil {
			return text.String(), calls, c.Error
		}
		if c.Text != "" {
			bus.Emit(events.Token(c.Text))
			text.WriteString(c.Text)
		}
		if c.ToolCall != nil {
			calls = append(calls, *c.ToolCall)
		}
		if c.Done {
			break
		}
	}
	return text.String(), calls, nil
}
