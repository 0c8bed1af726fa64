// Package observability wraps OpenTelemetry's global tracer API with the
// span helpers the rest of the orchestrator calls at its LLM and tool
// boundaries. It never registers its own SDK/exporter pipeline: whatever
// process embeds this module is free to install a TracerProvider (or
// leave the default no-op one in place) via otel.SetTracerProvider, and
// these helpers just pick it up.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer provides the orchestrator's span vocabulary over a named
// OpenTelemetry tracer.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer bound to serviceName. With no TracerProvider
// registered by the embedding process, every span it starts is a
// non-recording no-op, so this is always safe to construct.
func NewTracer(serviceName string) *Tracer {
	return &Tracer{tracer: otel.Tracer(serviceName)}
}

// SpanOptions configures span creation.
type SpanOptions struct {
	Kind       trace.SpanKind
	Attributes []attribute.KeyValue
}

// Start opens a span and returns the context carrying it.
func (t *Tracer) Start(ctx context.Context, name string, opts ...SpanOptions) (context.Context, trace.Span) {
	var options []trace.SpanStartOption
	if len(opts) > 0 {
		opt := opts[0]
		if opt.Kind != 0 {
			options = append(options, trace.WithSpanKind(opt.Kind))
		}
		if len(opt.Attributes) > 0 {
			options = append(options, trace.WithAttributes(opt.Attributes...))
		}
	}
	return t.tracer.Start(ctx, name, options...)
}

// RecordError marks span as failed and attaches err, a no-op if err is nil.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceLLMRequest opens a client span for one completion call against a
// tiered provider.
func (t *Tracer) TraceLLMRequest(ctx context.Context, provider, tier, model string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("llm.%s", provider), SpanOptions{
		Kind: trace.SpanKindClient,
		Attributes: []attribute.KeyValue{
			attribute.String("llm.provider", provider),
			attribute.String("llm.tier", tier),
			attribute.String("llm.model", model),
		},
	})
}

// TraceToolExecution opens an internal span for one tool invocation.
func (t *Tracer) TraceToolExecution(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("tool.%s", toolName), SpanOptions{
		Kind: trace.SpanKindInternal,
		Attributes: []attribute.KeyValue{
			attribute.String("tool.name", toolName),
		},
	})
}

// TraceSupervisorNode opens an internal span for one node transition in
// the supervisor graph (route, handoff, agent run).
func (t *Tracer) TraceSupervisorNode(ctx context.Context, node string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("supervisor.%s", node), SpanOptions{
		Kind: trace.SpanKindInternal,
		Attributes: []attribute.KeyValue{
			attribute.String("supervisor.node", node),
		},
	})
}
