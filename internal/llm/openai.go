package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider is the third provider adapter (§4 DOMAIN STACK); it can be
// bound to any tier through OpenAIConfig.Tier. The daemon's wiring uses it
// for the PRO tier only when no Anthropic key is configured.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	tier         Tier
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Tier         Tier
}

// NewOpenAIProvider builds a provider bound to cfg.Tier.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm/openai: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openai.GPT4o
	}
	if cfg.Tier == "" {
		cfg.Tier = TierPro
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
		tier:         cfg.Tier,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) SupportsTools() bool { return true }

func (p *OpenAIProvider) Models() []Model {
	return []Model{
		{ID: openai.GPT4o, Name: "GPT-4o", ContextSize: 128_000, SupportsVision: true, Tier: p.tier},
	}
}

func (p *OpenAIProvider) getModel(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// Complete streams a chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	messages := p.convertMessages(req.System, req.Messages)

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:     p.getModel(req.Model),
		Messages:  messages,
		MaxTokens: maxTokensOrDefault(req.MaxTokens),
		Tools:     p.convertTools(req.Tools),
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm/openai: starting stream: %w", err)
	}

	chunks := make(chan *CompletionChunk, 16)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				chunks <- &CompletionChunk{Done: true}
				return
			}
			if err != nil {
				chunks <- &CompletionChunk{Error: fmt.Errorf("llm/openai: %w", err)}
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content != "" {
					chunks <- &CompletionChunk{Text: choice.Delta.Content}
				}
				for _, tc := range choice.Delta.ToolCalls {
					chunks <- &CompletionChunk{ToolCall: &ToolCallRef{
						ID:        tc.ID,
						Name:      tc.Function.Name,
						Arguments: []byte(tc.Function.Arguments),
					}}
				}
			}
		}
	}()

	return chunks, nil
}

func (p *OpenAIProvider) convertMessages(system string, messages []CompletionMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		switch m.Role {
		case "tool":
			for _, tr := range m.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
		default:
			out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		}
	}
	return out
}

func (p *OpenAIProvider) convertTools(tools []ToolDef) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	return out
}
