package graph

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/agentgraph/orchestrator/internal/llm"
	"github.com/agentgraph/orchestrator/pkg/events"
)

// lowConfidenceThreshold is the routing confidence floor below which the
// routing event is flagged low_confidence (§4.J).
const lowConfidenceThreshold = 0.5

const routingSystemPrompt = `You are a routing classifier for a multi-agent system.
Given the user's query, choose exactly one agent: "task", "research", or "data".
Respond with a single JSON object: {"agent": "...", "confidence": 0.0-1.0, "reason": "..."}`

// RouteDecision is the supervisor router's output for one routing pass.
type RouteDecision struct {
	Agent      AgentType
	Confidence float64
	Reason     string
}

// Router is the supervisor graph's router node: it picks the agent
// subgraph that should handle the current state (§4.J Router).
type Router struct {
	LLM  *llm.Router
	Tier llm.Tier
}

// NewRouter builds a router backed by llmRouter's FLASH tier.
func NewRouter(llmRouter *llm.Router) *Router {
	return &Router{LLM: llmRouter, Tier: llm.TierFlash}
}

// Route decides which subgraph handles state (§4.J). It emits nothing
// itself; the supervisor turns the decision into the routing event via
// buildRoutingEvent (§6).
func (r *Router) Route(ctx context.Context, state *RunState) RouteDecision {
	if strings.TrimSpace(state.Query) == "" {
		return RouteDecision{Agent: AgentTask, Reason: "empty query, defaulting to task agent"}
	}

	if state.PendingHandoff != nil {
		target, ok := ResolveAgentAlias(state.PendingHandoff.TargetAgent)
		if !ok {
			target = AgentTask
		}
		decision := RouteDecision{Agent: target, Confidence: 1, Reason: "pending handoff: " + state.PendingHandoff.TaskDescription}
		state.PendingHandoff = nil
		return decision
	}

	if explicit, ok := ResolveAgentAlias(state.ExplicitMode); ok {
		return RouteDecision{Agent: explicit, Confidence: 1, Reason: "explicit mode: " + state.ExplicitMode}
	}

	return r.classify(ctx, state.Query)
}

func (r *Router) classify(ctx context.Context, query string) RouteDecision {
	req := &llm.CompletionRequest{
		System:    routingSystemPrompt,
		Messages:  []llm.CompletionMessage{{Role: "user", Content: query}},
		MaxTokens: 256,
	}
	chunks, err := r.LLM.Complete(ctx, r.Tier, req)
	if err != nil {
		return RouteDecision{Agent: AgentTask, Reason: "routing LLM call failed: " + err.Error()}
	}
	text, err := llm.CollectText(chunks)
	if err != nil {
		return RouteDecision{Agent: AgentTask, Reason: "routing LLM call failed: " + err.Error()}
	}

	if decision, ok := parseJSONRouting(text); ok {
		return decision
	}
	if decision, ok := parseLineRouting(text); ok {
		return decision
	}
	return RouteDecision{Agent: AgentTask, Reason: "could not parse routing response, defaulting to task"}
}

type routingJSON struct {
	Agent      string  `json:"agent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func parseJSONRouting(text string) (RouteDecision, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return RouteDecision{}, false
	}
	var parsed routingJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return RouteDecision{}, false
	}
	agent, ok := ResolveAgentAlias(parsed.Agent)
	if !ok {
		return RouteDecision{}, false
	}
	return RouteDecision{Agent: agent, Confidence: parsed.Confidence, Reason: parsed.Reason}, true
}

// parseLineRouting is the fallback parser for AGENT:/REASON: lines when the
// model doesn't return valid JSON (§4.J).
func parseLineRouting(text string) (RouteDecision, bool) {
	var agentStr, reason string
	found := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "AGENT:"):
			agentStr = strings.TrimSpace(line[len("AGENT:"):])
			found = true
		case strings.HasPrefix(strings.ToUpper(line), "REASON:"):
			reason = strings.TrimSpace(line[len("REASON:"):])
		}
	}
	if !found {
		return RouteDecision{}, false
	}
	agent, ok := ResolveAgentAlias(agentStr)
	if !ok {
		return RouteDecision{}, false
	}
	return RouteDecision{Agent: agent, Confidence: 1, Reason: reason}, true
}

// buildRoutingEvent is called by the supervisor (which owns the Bus) to
// translate a RouteDecision into the wire-format routing event (§6).
func buildRoutingEvent(d RouteDecision, warning string) events.Event {
	e := events.Event{
		Type:   events.TypeRouting,
		Agent:  string(d.Agent),
		Reason: d.Reason,
		Confidence: d.Confidence,
	}
	if warning != "" {
		e.Message = warning
	}
	if d.Confidence > 0 && d.Confidence < lowConfidenceThreshold {
		e.LowConfidence = true
	}
	return e
}
