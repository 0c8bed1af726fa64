package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider serves the FLASH tier: routing decisions and context
// compression, where low latency and cost matter more than top-end
// reasoning quality.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

// GeminiConfig configures a GeminiProvider.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
}

// NewGeminiProvider builds a FLASH-tier provider over the Gemini API.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm/gemini: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm/gemini: creating client: %w", err)
	}

	return &GeminiProvider{client: client, defaultModel: cfg.DefaultModel}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) SupportsTools() bool { return true }

func (p *GeminiProvider) Models() []Model {
	return []Model{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextSize: 1_000_000, SupportsVision: true, Tier: TierFlash},
	}
}

func (p *GeminiProvider) getModel(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// Complete streams a completion over the Gemini content-generation API.
func (p *GeminiProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	contents := p.convertMessages(req.Messages)

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokensOrDefault(req.MaxTokens)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	chunks := make(chan *CompletionChunk, 16)

	go func() {
		defer close(chunks)

		var inputTokens, outputTokens int
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.getModel(req.Model), contents, cfg) {
			if err != nil {
				chunks <- &CompletionChunk{Error: fmt.Errorf("llm/gemini: %w", err)}
				return
			}
			if resp == nil {
				continue
			}
			if resp.UsageMetadata != nil {
				inputTokens = int(resp.UsageMetadata.PromptTokenCount)
				outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						chunks <- &CompletionChunk{Text: part.Text}
					}
				}
			}
		}

		chunks <- &CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
	}()

	return chunks, nil
}

func (p *GeminiProvider) convertMessages(messages []CompletionMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		if m.Content == "" {
			continue
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}
