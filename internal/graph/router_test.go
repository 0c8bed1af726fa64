package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterEmptyQueryShortCircuitsToTask(t *testing.T) {
	r := NewRouter(newFakeRouter(nil, nil))
	state := NewRunState("t1", "", "")
	decision := r.Route(context.Background(), state)
	assert.Equal(t, AgentTask, decision.Agent)
}

func TestRouterBypassesLLMOnPendingHandoff(t *testing.T) {
	r := NewRouter(newFakeRouter(nil, nil))
	state := NewRunState("t1", "do something", "")
	state.PendingHandoff = &HandoffRequest{TargetAgent: "research", TaskDescription: "dig deeper"}

	decision := r.Route(context.Background(), state)
	assert.Equal(t, AgentResearch, decision.Agent)
	assert.Nil(t, state.PendingHandoff, "pending handoff must be cleared once consumed")
}

func TestRouterBypassesLLMOnExplicitMode(t *testing.T) {
	r := NewRouter(newFakeRouter(nil, nil))
	state := NewRunState("t1", "hi", "data")
	decision := r.Route(context.Background(), state)
	assert.Equal(t, AgentData, decision.Agent)
}

func TestRouterParsesJSONClassification(t *testing.T) {
	r := NewRouter(newFakeRouter([]string{`{"agent": "research", "confidence": 0.9, "reason": "needs sources"}`}, nil))
	state := NewRunState("t1", "find me papers on X", "")
	decision := r.Route(context.Background(), state)
	assert.Equal(t, AgentResearch, decision.Agent)
	assert.Equal(t, 0.9, decision.Confidence)
}

func TestRouterFallsBackToLineParsingOnInvalidJSON(t *testing.T) {
	r := NewRouter(newFakeRouter([]string{"AGENT: data\nREASON: looks like a data question"}, nil))
	state := NewRunState("t1", "analyze this csv", "")
	decision := r.Route(context.Background(), state)
	assert.Equal(t, AgentData, decision.Agent)
}

func TestRouterDefaultsToTaskOnUnparsableResponse(t *testing.T) {
	r := NewRouter(newFakeRouter([]string{"not json and no AGENT: line"}, nil))
	state := NewRunState("t1", "whatever", "")
	decision := r.Route(context.Background(), state)
	assert.Equal(t, AgentTask, decision.Agent)
}

func TestBuildRoutingEventFlagsLowConfidence(t *testing.T) {
	e := buildRoutingEvent(RouteDecision{Agent: AgentTask, Confidence: 0.2}, "")
	assert.True(t, e.LowConfidence)

	e = buildRoutingEvent(RouteDecision{Agent: AgentTask, Confidence: 0.9}, "")
	assert.False(t, e.LowConfidence)
}
