package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentgraph/orchestrator/internal/memory"
	"github.com/agentgraph/orchestrator/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// Router dispatches a completion request to whichever provider is
// registered for the requested tier.
type Router struct {
	byTier map[Tier]Provider
	tracer *observability.Tracer
}

// NewRouter builds a router from a tier-to-provider map.
func NewRouter(byTier map[Tier]Provider) *Router {
	return &Router{byTier: byTier, tracer: observability.NewTracer("orchestrator.llm")}
}

// Provider returns the provider registered for tier, if any.
func (r *Router) Provider(tier Tier) (Provider, bool) {
	p, ok := r.byTier[tier]
	return p, ok
}

// Complete routes req to the provider for tier, tracing the call as a
// client span that closes once the response stream is fully drained.
func (r *Router) Complete(ctx context.Context, tier Tier, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	p, ok := r.byTier[tier]
	if !ok {
		return nil, fmt.Errorf("llm: no provider registered for tier %q", tier)
	}

	spanCtx, span := r.tracer.TraceLLMRequest(ctx, p.Name(), string(tier), req.Model)
	chunks, err := p.Complete(spanCtx, req)
	if err != nil {
		r.tracer.RecordError(span, err)
		span.End()
		return nil, err
	}
	return r.traceChunks(chunks, span), nil
}

// traceChunks forwards chunks unmodified, ending span once the upstream
// channel closes or yields a terminal error.
func (r *Router) traceChunks(chunks <-chan *CompletionChunk, span trace.Span) <-chan *CompletionChunk {
	out := make(chan *CompletionChunk)
	go func() {
		defer close(out)
		defer span.End()
		for c := range chunks {
			if c.Error != nil {
				r.tracer.RecordError(span, c.Error)
			}
			out <- c
		}
	}()
	return out
}

// CollectText drains chunks and concatenates their text, returning the
// first error encountered (if any) along with whatever text accumulated
// before it.
func CollectText(chunks <-chan *CompletionChunk) (string, error) {
	var sb strings.Builder
	for c := range chunks {
		if c.Error != nil {
			return sb.String(), c.Error
		}
		sb.WriteString(c.Text)
		if c.Done {
			break
		}
	}
	return sb.String(), nil
}

// FlashSummarizer adapts the router's FLASH tier into the memory
// package's Summarizer interface, used for context compression (§4.H).
type FlashSummarizer struct {
	Router *Router
}

func (f *FlashSummarizer) Summarize(ctx context.Context, messages []memory.Message) (string, error) {
	var transcript strings.Builder
	for _, m := range messages {
		transcript.WriteString(string(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	chunks, err := f.Router.Complete(ctx, TierFlash, &CompletionRequest{
		System:    "Summarize the conversation into durable facts, decisions, and open threads. Be concise.",
		Messages:  []CompletionMessage{{Role: "user", Content: transcript.String()}},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	return CollectText(chunks)
}
