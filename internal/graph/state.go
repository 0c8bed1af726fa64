// Package graph implements the supervisor and agent subgraphs (§4.I/§4.J):
// a router that dispatches to one of three agent subgraphs, a bounded
// react/tool-execution loop, a research pipeline with per-scenario and
// per-depth parameters, handoff propagation between agents, and
// checkpointing of run state between node transitions.
package graph

import (
	"strings"
	"time"

	"github.com/agentgraph/orchestrator/internal/memory"
)

// AgentType identifies one of the three subgraphs a run can be routed to.
type AgentType string

const (
	AgentTask     AgentType = "task"
	AgentResearch AgentType = "research"
	AgentData     AgentType = "data"
)

// agentAliases maps legacy UI mode names onto the three canonical agents
// (§4.J: "chat/app/image/writing → task").
var agentAliases = map[string]AgentType{
	"chat":     AgentTask,
	"app":      AgentTask,
	"image":    AgentTask,
	"writing":  AgentTask,
	"task":     AgentTask,
	"research": AgentResearch,
	"data":     AgentData,
}

// ResolveAgentAlias normalizes a user- or UI-supplied mode string into one
// of the three canonical agent types.
func ResolveAgentAlias(name string) (AgentType, bool) {
	a, ok := agentAliases[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// HandoffRequest is what a subgraph produces instead of a terminal result
// when an agent calls the handoff tool (§4.I).
type HandoffRequest struct {
	TargetAgent     string
	TaskDescription string
	Context         string
}

// RunState is the state object threaded between supervisor node
// transitions and checkpointed after each one (§4.J Checkpointing).
type RunState struct {
	ThreadID     string
	Query        string
	ExplicitMode string

	Messages []memory.Message
	Shared   *memory.SharedContext

	PendingHandoff *HandoffRequest
	HandoffHistory []memory.HandoffRecord
	HandoffCount   int

	CurrentAgent AgentType
	InvokedTools map[string]bool

	Result    string
	Error     string
	StartedAt time.Time
}

// NewRunState builds a fresh run state for a new thread.
func NewRunState(threadID, query, explicitMode string) *RunState {
	return &RunState{
		ThreadID:     threadID,
		Query:        query,
		ExplicitMode: explicitMode,
		Messages:     []memory.Message{{Role: memory.RoleUser, Content: query}},
		Shared:       &memory.SharedContext{},
		InvokedTools: make(map[string]bool),
		StartedAt:    time.Now(),
	}
}

// handoffMatrix is the static table of which targets each agent may reach
// (§4.J Handoff check).
var handoffMatrix = map[AgentType][]AgentType{
	AgentTask:     {AgentResearch, AgentData},
	AgentResearch: {AgentTask, AgentData},
	AgentData:     {AgentTask, AgentResearch},
}

// DefaultMaxHandoffs bounds the number of handoffs a single run may chain
// through before the supervisor gives up and terminates.
const DefaultMaxHandoffs = 5

// validHandoff reports whether from may hand off to target per the static
// matrix.
func validHandoff(from AgentType, target AgentType) bool {
	for _, allowed := range handoffMatrix[from] {
		if allowed == target {
			return true
		}
	}
	return false
}
