// Package llm provides the multi-tier LLM provider abstraction (§4 ambient
// stack): a single streaming interface implemented by adapters over the
// Anthropic, Gemini, and OpenAI SDKs, selected by Tier.
package llm

import (
	"context"
	"encoding/json"
)

// Tier is the cost/capability class a request is routed to.
type Tier string

const (
	// TierFlash is the cheap, fast tier used for routing decisions and
	// context compression.
	TierFlash Tier = "flash"
	// TierPro is the default tier for task/research agent turns.
	TierPro Tier = "pro"
	// TierMax is reserved for turns that need the strongest available
	// model (complex planning, final synthesis).
	TierMax Tier = "max"
)

// Provider is the unified streaming interface every adapter implements.
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
	Name() string
	Models() []Model
	SupportsTools() bool
}

// CompletionRequest is a provider-agnostic completion call.
type CompletionRequest struct {
	Model                string
	System               string
	Messages             []CompletionMessage
	Tools                []ToolDef
	MaxTokens            int
	EnableThinking       bool
	ThinkingBudgetTokens int
}

// CompletionMessage is one turn in the conversation being sent.
type CompletionMessage struct {
	Role        string // "user", "assistant", "tool"
	Content     string
	ToolCalls   []ToolCallRef
	ToolResults []ToolResultRef
}

// ToolCallRef is an assistant-issued tool invocation request.
type ToolCallRef struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResultRef is the result of a tool invocation fed back to the model.
type ToolResultRef struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// ToolDef describes a callable tool to the model.
type ToolDef struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// CompletionChunk is one streamed unit of a response.
type CompletionChunk struct {
	Text         string
	ToolCall     *ToolCallRef
	Done         bool
	Error        error
	Thinking     string
	InputTokens  int
	OutputTokens int
}

// Model describes a model this provider can serve.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
	Tier           Tier
}
