package graph

import (
	"context"
	"errors"
	"time"

	"github.com/agentgraph/orchestrator/internal/memory"
	"github.com/agentgraph/orchestrator/pkg/events"
)

// DefaultSubgraphTimeout and AppBuilderSubgraphTimeout are the subgraph
// invocation budgets from §4.J/§5.
const (
	DefaultSubgraphTimeout    = 300 * time.Second
	AppBuilderSubgraphTimeout = 600 * time.Second
)

// Subgraph is any node the supervisor can dispatch a run to.
type Subgraph interface {
	Run(ctx context.Context, state *RunState) error
}

// Supervisor implements the router -> subgraph -> check_for_handoff ->
// (router|EXIT) graph (§4.J). A research run goes straight from its
// subgraph to the handoff check; there is no separate research_post step.
type Supervisor struct {
	Router      *Router
	Subgraphs   map[AgentType]Subgraph
	Bus         *events.Bus
	Checkpoints CheckpointStore
	MaxHandoffs int
}

// NewSupervisor wires a router, the three agent subgraphs, and an
// optional checkpoint store (defaults to an in-memory one).
func NewSupervisor(router *Router, subgraphs map[AgentType]Subgraph, bus *events.Bus, checkpoints CheckpointStore) *Supervisor {
	if bus == nil {
		bus = events.NewBus(0)
	}
	if checkpoints == nil {
		checkpoints = NewMemoryCheckpointStore()
	}
	return &Supervisor{
		Router: router, Subgraphs: subgraphs, Bus: bus,
		Checkpoints: checkpoints, MaxHandoffs: DefaultMaxHandoffs,
	}
}

// Run drives state through the supervisor graph until a subgraph produces
// a terminal result, a timeout fires, or the handoff budget is exhausted.
func (s *Supervisor) Run(ctx context.Context, state *RunState) error {
	maxHandoffs := s.MaxHandoffs
	if maxHandoffs <= 0 {
		maxHandoffs = DefaultMaxHandoffs
	}

	for {
		decision := s.Router.Route(ctx, state)
		s.Bus.Emit(buildRoutingEvent(decision, ""))
		state.CurrentAgent = decision.Agent

		sub, ok := s.Subgraphs[decision.Agent]
		if !ok {
			s.Bus.Emit(events.Err("no subgraph registered for agent "+string(decision.Agent), "router", "", ""))
			return nil
		}

		subCtx, cancel := context.WithTimeout(ctx, s.timeoutFor(state))
		err := sub.Run(subCtx, state)
		cancel()

		_ = s.Checkpoints.Save(ctx, state.ThreadID, state)

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				state.Result = "the request timed out before completing"
				s.Bus.Emit(events.Err("subgraph timed out", string(decision.Agent), "", ""))
				return nil
			}
			s.Bus.Emit(events.Err(err.Error(), string(decision.Agent), "", ""))
			return err
		}

		if state.PendingHandoff == nil {
			s.Bus.Emit(events.Complete())
			return nil
		}

		if !s.acceptHandoff(state, decision.Agent, maxHandoffs) {
			s.Bus.Emit(events.Complete())
			return nil
		}
		// loop back to the router with the cleared/updated state
	}
}

// acceptHandoff validates a subgraph's pending handoff against the static
// matrix and the MAX_HANDOFFS cap (§4.J Handoff check). On success it
// records the handoff and leaves state.PendingHandoff set so the next
// Route() call picks it up; on failure it clears it so the run terminates.
func (s *Supervisor) acceptHandoff(state *RunState, from AgentType, maxHandoffs int) bool {
	target, ok := ResolveAgentAlias(state.PendingHandoff.TargetAgent)
	if !ok || !validHandoff(from, target) || state.HandoffCount >= maxHandoffs {
		state.PendingHandoff = nil
		return false
	}

	state.HandoffCount++
	state.HandoffHistory = append(state.HandoffHistory, memory.HandoffRecord{
		FromAgent: string(from), ToAgent: string(target), Reason: state.PendingHandoff.TaskDescription,
	})
	state.Shared.HandoffHistory = state.HandoffHistory

	s.Bus.Emit(events.Event{
		Type: events.TypeHandoff, Source: string(from), Target: string(target), Task: state.PendingHandoff.TaskDescription,
	})
	return true
}

func (s *Supervisor) timeoutFor(state *RunState) time.Duration {
	if state.ExplicitMode == "app" {
		return AppBuilderSubgraphTimeout
	}
	return DefaultSubgraphTimeout
}
