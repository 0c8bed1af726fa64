package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentgraph/orchestrator/internal/tools"
)

// handoffMarker prefixes the handoff tool's result string so the react
// loop can recognize "this call produced a pending handoff" without
// widening the tools.Handler signature (§4.I: "instead of producing a
// result, the agent returns a pending handoff").
const handoffMarker = "__graph_handoff__:"

type handoffParams struct {
	TargetAgent     string `json:"target_agent"`
	TaskDescription string `json:"task_description"`
	Context         string `json:"context"`
}

// NewHandoffTool builds the generic handoff tool every agent subgraph
// registers. Its handler never fails on well-formed input: it encodes the
// request behind handoffMarker and lets the calling subgraph's react loop
// unpack it and convert it into a RunState.PendingHandoff.
func NewHandoffTool() tools.Tool {
	return tools.Tool{
		Name:        "handoff_to_agent",
		Description: "Hand off the current task to another agent (task, research, or data) with context.",
		Category:    tools.CategoryToolSearch,
		Handler: func(_ context.Context, params json.RawMessage) (string, error) {
			var p handoffParams
			if err := json.Unmarshal(params, &p); err != nil {
				return "", fmt.Errorf("handoff_to_agent: invalid params: %w", err)
			}
			if p.TargetAgent == "" {
				return "", fmt.Errorf("handoff_to_agent: target_agent is required")
			}
			encoded, err := json.Marshal(HandoffRequest{
				TargetAgent:     p.TargetAgent,
				TaskDescription: p.TaskDescription,
				Context:         p.Context,
			})
			if err != nil {
				return "", err
			}
			return handoffMarker + string(encoded), nil
		},
	}
}

// parseHandoffResult extracts a HandoffRequest from a tool result string,
// if it carries the marker.
func parseHandoffResult(result string) (*HandoffRequest, bool) {
	if len(result) < len(handoffMarker) || result[:len(handoffMarker)] != handoffMarker {
		return nil, false
	}
	var req HandoffRequest
	if err := json.Unmarshal([]byte(result[len(handoffMarker):]), &req); err != nil {
		return nil, false
	}
	return &req, true
}
