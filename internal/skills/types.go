// Package skills implements the three-level progressive skill cache
// (§4.F): a declarative catalog of higher-order procedures composed of
// tools and LLM calls, each promotable from bare metadata up through an
// instantiated executor to its loaded resources, plus a restricted
// runtime for dynamically supplied (non-builtin) skill source.
package skills

import (
	"context"
	"encoding/json"
)

// Level is how much of a skill is currently resident.
type Level int

const (
	// L1Metadata is id/name/category/schema/tags/enabled only, loaded
	// eagerly for every built-in skill at startup.
	L1Metadata Level = iota
	// L2Instructions additionally holds an instantiated Executor.
	L2Instructions
	// L3Resources additionally holds any large per-skill assets.
	L3Resources
)

func (l Level) String() string {
	switch l {
	case L1Metadata:
		return "L1"
	case L2Instructions:
		return "L2"
	case L3Resources:
		return "L3"
	default:
		return "unknown"
	}
}

// Metadata is the L1 payload, present for every registered skill
// regardless of load level.
type Metadata struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	ParamSchema json.RawMessage `json:"param_schema,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Enabled     bool            `json:"enabled"`
}

// Executor is the L2 payload: a skill's actual behavior, either as a
// sub-graph to run through the agent graph runner or as a direct
// params-in/result-out call.
type Executor interface {
	// CreateGraph returns an opaque graph descriptor the caller's graph
	// runner knows how to execute. Skills that don't compose a graph
	// return nil, nil and are invoked purely via Execute.
	CreateGraph(ctx context.Context) (any, error)
	// Execute runs the skill directly, used by skills with no graph.
	Execute(ctx context.Context, params json.RawMessage) (string, error)
}

// ResourceLoader lazily produces a skill's L3 assets (prompt templates,
// reference data, embedded files) on first need.
type ResourceLoader func(ctx context.Context) (map[string]any, error)

// Builtin is how a compiled-in skill registers itself: its metadata plus
// factories for the L2 executor and L3 resources, each invoked only on
// promotion so startup stays cheap.
type Builtin struct {
	Metadata    Metadata
	NewExecutor func() Executor
	LoadResources ResourceLoader
}
