package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// AnthropicProvider serves the PRO and MAX tiers via Claude.
type AnthropicProvider struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
	tier         Tier
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
	Tier         Tier
}

// NewAnthropicProvider builds a provider bound to cfg.Tier (PRO or MAX).
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm/anthropic: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.Tier == "" {
		cfg.Tier = TierPro
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
		tier:         cfg.Tier,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) SupportsTools() bool { return true }

func (p *AnthropicProvider) Models() []Model {
	return []Model{
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200_000, SupportsVision: true, Tier: TierMax},
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200_000, SupportsVision: true, Tier: TierPro},
	}
}

func (p *AnthropicProvider) getModel(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// Complete streams a completion. A failure to build the request is retried
// with exponential backoff up to maxRetries times before an error chunk is
// emitted; errors the API reports while the response streams are emitted
// as an error chunk without a retry.
func (p *AnthropicProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	chunks := make(chan *CompletionChunk, 16)

	go func() {
		defer close(chunks)

		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		var err error

		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			stream, err = p.createStream(ctx, req)
			if err == nil {
				break
			}
			if attempt == p.maxRetries {
				chunks <- &CompletionChunk{Error: fmt.Errorf("llm/anthropic: %w", err)}
				return
			}
			select {
			case <-time.After(p.retryDelay * time.Duration(1<<attempt)):
			case <-ctx.Done():
				chunks <- &CompletionChunk{Error: ctx.Err()}
				return
			}
		}

		p.processStream(stream, chunks)
	}()

	return chunks, nil
}

func (p *AnthropicProvider) createStream(ctx context.Context, req *CompletionRequest) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("converting messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.getModel(req.Model)),
		Messages:  messages,
		MaxTokens: int64(maxTokensOrDefault(req.MaxTokens)),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	if len(req.Tools) > 0 {
		params.Tools = p.convertTools(req.Tools)
	}

	if req.EnableThinking {
		budget := int64(req.ThinkingBudgetTokens)
		if budget < 1024 {
			budget = 10_000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	return p.client.Messages.NewStreaming(ctx, params), nil
}

func (p *AnthropicProvider) convertMessages(messages []CompletionMessage) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "user":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case "tool":
			for _, tr := range m.ToolResults {
				out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError)))
			}
		default:
			return nil, fmt.Errorf("unsupported role %q", m.Role)
		}
	}
	return out, nil
}

func (p *AnthropicProvider) convertTools(tools []ToolDef) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{}, t.Name))
	}
	return out
}

// processStream drains the SDK's SSE stream, translating each event into
// a CompletionChunk.
func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *CompletionChunk) {
	var message anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			chunks <- &CompletionChunk{Error: fmt.Errorf("llm/anthropic: accumulating stream event: %w", err)}
			return
		}

		switch delta := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if text := delta.Delta.Text; text != "" {
				chunks <- &CompletionChunk{Text: text}
			}
			if thinking := delta.Delta.Thinking; thinking != "" {
				chunks <- &CompletionChunk{Thinking: thinking}
			}
		}
	}
	if err := stream.Err(); err != nil {
		chunks <- &CompletionChunk{Error: fmt.Errorf("llm/anthropic: stream error: %w", err)}
		return
	}

	for _, block := range message.Content {
		if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			chunks <- &CompletionChunk{ToolCall: &ToolCallRef{ID: tu.ID, Name: tu.Name, Arguments: tu.Input}}
		}
	}

	chunks <- &CompletionChunk{
		Done:         true,
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}
