package graph

import (
	"strings"

	"github.com/agentgraph/orchestrator/internal/memory"
)

// maxInlineTools is the budget above which the active tool set is
// narrowed rather than handed to the model whole (§4.I Progressive tool
// selection). It is deliberately a tool *count*, not a token estimate:
// the caller already knows its model's context budget and can pass a
// different ceiling via NarrowToolSet's budget parameter.
const maxInlineTools = 12

// alwaysOnTools are kept in the active set regardless of narrowing.
var alwaysOnTools = map[string]bool{
	"search_tools":      true,
	"handoff_to_agent":  true,
}

// NarrowToolSet implements §4.I's progressive tool selection: if the
// agent's full allowed set exceeds budget, the active set is narrowed to
// the always-on subset plus tools selected by (a) keyword match against
// the latest user turn, (b) tools already invoked this run, and (c) a
// baseline drawn from the front of the declared allow-list (a stable
// proxy for "the agent's primary categories", since allowed is already
// filtered to those categories by tools.Registry.ForAgent).
func NarrowToolSet(allowed []string, latestUserTurn string, invoked map[string]bool, budget int) []string {
	if budget <= 0 {
		budget = maxInlineTools
	}
	if len(allowed) <= budget {
		return allowed
	}

	selected := make(map[string]bool, budget)
	var out []string

	add := func(name string) {
		if selected[name] {
			return
		}
		selected[name] = true
		out = append(out, name)
	}

	for name := range alwaysOnTools {
		for _, a := range allowed {
			if a == name {
				add(name)
			}
		}
	}

	lowerTurn := strings.ToLower(latestUserTurn)
	for _, name := range allowed {
		if len(out) >= budget {
			break
		}
		if strings.Contains(lowerTurn, strings.ToLower(name)) {
			add(name)
		}
	}

	for _, name := range allowed {
		if len(out) >= budget {
			break
		}
		if invoked[name] {
			add(name)
		}
	}

	for _, name := range allowed {
		if len(out) >= budget {
			break
		}
		add(name)
	}

	return out
}

// latestUserTurn returns the content of the most recent user message, used
// as the keyword-match signal for progressive tool selection.
func latestUserTurn(messages []memory.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == memory.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
