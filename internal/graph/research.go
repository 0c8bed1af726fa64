package graph

import (
	"context"
	"fmt"

	"github.com/agentgraph/orchestrator/internal/llm"
	"github.com/agentgraph/orchestrator/internal/usage"
	"github.com/agentgraph/orchestrator/pkg/events"
)

// Scenario selects the per-domain prompt set for the research subgraph.
type Scenario string

const (
	ScenarioAcademic Scenario = "academic"
	ScenarioMarket   Scenario = "market"
	ScenarioTechnical Scenario = "technical"
	ScenarioNews     Scenario = "news"
)

// Depth controls how much of the pipeline runs (§4.I: "QUICK skips
// synthesize and produces a concise report").
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// depthParams are the per-depth knobs resolved at init_config.
type depthParams struct {
	MaxSources    int
	RunSynthesize bool
}

func paramsForDepth(d Depth) depthParams {
	switch d {
	case DepthDeep:
		return depthParams{MaxSources: 15, RunSynthesize: true}
	case DepthStandard:
		return depthParams{MaxSources: 8, RunSynthesize: true}
	default: // DepthQuick
		return depthParams{MaxSources: 4, RunSynthesize: false}
	}
}

var scenarioPrompts = map[Scenario]string{
	ScenarioAcademic:  "You are a research assistant focused on peer-reviewed literature and methodology.",
	ScenarioMarket:    "You are a market research analyst focused on competitive landscape and sizing.",
	ScenarioTechnical: "You are a technical researcher focused on implementation detail and trade-offs.",
	ScenarioNews:      "You are a news researcher focused on recency and source corroboration.",
}

func promptForScenario(s Scenario) string {
	if p, ok := scenarioPrompts[s]; ok {
		return p
	}
	return scenarioPrompts[ScenarioTechnical]
}

// SearchResult is one hit returned by a SearchProvider.
type SearchResult struct {
	Title           string
	URL             string
	Snippet         string
	RelevanceScore  float64
}

// SearchProvider performs the external web/document search the research
// subgraph's search node calls.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// ResearchConfig configures one research subgraph run.
type ResearchConfig struct {
	Scenario Scenario
	Depth    Depth
}

// ResearchSubgraph implements init_config -> search -> analyze ->
// [synthesize] -> write -> exit (§4.I).
type ResearchSubgraph struct {
	Router   *llm.Router
	Tier     llm.Tier
	Search   SearchProvider
	Bus      *events.Bus
	Config   ResearchConfig
}

// NewResearchSubgraph builds a research subgraph. search may be nil, in
// which case the search node falls back to synthetic mock sources as
// though the provider had errored.
func NewResearchSubgraph(router *llm.Router, search SearchProvider, bus *events.Bus, cfg ResearchConfig) *ResearchSubgraph {
	if bus == nil {
		bus = events.NewBus(0)
	}
	if cfg.Scenario == "" {
		cfg.Scenario = ScenarioTechnical
	}
	if cfg.Depth == "" {
		cfg.Depth = DepthStandard
	}
	return &ResearchSubgraph{Router: router, Tier: llm.TierPro, Search: search, Bus: bus, Config: cfg}
}

func (s *ResearchSubgraph) Run(ctx context.Context, state *RunState) error {
	params := s.initConfig()

	sources := s.search(ctx, state.Query, params.MaxSources)
	state.Shared.ResearchSources = append(state.Shared.ResearchSources, sourcesToStrings(sources)...)

	findings, err := s.analyze(ctx, state, sources)
	if err != nil {
		return fmt.Errorf("graph/research: analyze: %w", err)
	}
	state.Shared.ResearchFindings = append(state.Shared.ResearchFindings, findings)

	if params.RunSynthesize {
		synthesis, err := s.synthesize(ctx, state, findings)
		if err != nil {
			return fmt.Errorf("graph/research: synthesize: %w", err)
		}
		findings = synthesis
	}

	report, err := s.write(ctx, state, findings)
	if err != nil {
		return fmt.Errorf("graph/research: write: %w", err)
	}
	state.Result = report
	return nil
}

func (s *ResearchSubgraph) initConfig() depthParams {
	s.Bus.Emit(events.Event{Type: events.TypeConfig, Depth: string(s.Config.Depth), Scenario: string(s.Config.Scenario)})
	return paramsForDepth(s.Config.Depth)
}

func (s *ResearchSubgraph) search(ctx context.Context, query string, maxResults int) []SearchResult {
	s.Bus.Emit(events.Stage("search", "", events.StageRunning))
	defer s.Bus.Emit(events.Stage("search", "", events.StageCompleted))

	if s.Search != nil {
		results, err := s.Search.Search(ctx, query, maxResults)
		if err == nil {
			for _, r := range results {
				s.emitSource(r)
			}
			return results
		}
	}

	// Provider unset or errored: fall back to synthetic mock sources so
	// downstream analyze/write still have something to work with (§4.I).
	mock := mockSources(query, maxResults)
	for _, r := range mock {
		s.emitSource(r)
	}
	return mock
}

func (s *ResearchSubgraph) emitSource(r SearchResult) {
	s.Bus.Emit(events.Event{
		Type: events.TypeSource, Title: r.Title, URL: r.URL, Snippet: r.Snippet,
		RelevanceScore: r.RelevanceScore,
	})
}

func mockSources(query string, n int) []SearchResult {
	if n <= 0 {
		n = 1
	}
	out := make([]SearchResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, SearchResult{
			Title:          fmt.Sprintf("Synthetic source %d for %q", i+1, query),
			URL:            fmt.Sprintf("https://example.invalid/mock-source-%d", i+1),
			Snippet:        "search provider unavailable; this is a placeholder result",
			RelevanceScore: 0,
		})
	}
	return out
}

func sourcesToStrings(sources []SearchResult) []string {
	out := make([]string, 0, len(sources))
	for _, r := range sources {
		out = append(out, fmt.Sprintf("%s (%s)", r.Title, r.URL))
	}
	return out
}

func (s *ResearchSubgraph) analyze(ctx context.Context, state *RunState, sources []SearchResult) (string, error) {
	s.Bus.Emit(events.Stage("analyze", "", events.StageRunning))

	req := &llm.CompletionRequest{
		System:   promptForScenario(s.Config.Scenario),
		Messages: []llm.CompletionMessage{{Role: "user", Content: s.analyzePrompt(state.Query, sources)}},
		MaxTokens: 2048,
	}
	chunks, err := s.Router.Complete(ctx, s.Tier, req)
	if err != nil {
		s.Bus.Emit(events.Stage("analyze", "", events.StageFailed))
		return "", err
	}
	tracker, _ := usage.FromContext(ctx)
	chunks = usage.RecordFromChunks(tracker, modelName(s.Router, s.Tier), s.Tier, chunks)
	text, err := llm.CollectText(chunks)
	if err != nil {
		s.Bus.Emit(events.Stage("analyze", "", events.StageFailed))
		return "", err
	}
	s.Bus.Emit(events.Stage("analyze", "", events.StageCompleted))
	return text, nil
}

func (s *ResearchSubgraph) analyzePrompt(query string, sources []SearchResult) string {
	prompt := "Analyze the following sources for the query: " + query + "\n\n"
	for _, r := range sources {
		prompt += fmt.Sprintf("- %s: %s\n", r.Title, r.Snippet)
	}
	return prompt
}

func (s *ResearchSubgraph) synthesize(ctx context.Context, state *RunState, findings string) (string, error) {
	s.Bus.Emit(events.Stage("synthesize", "", events.StageRunning))

	req := &llm.CompletionRequest{
		System:    promptForScenario(s.Config.Scenario),
		Messages:  []llm.CompletionMessage{{Role: "user", Content: "Synthesize these findings into a coherent narrative:\n" + findings}},
		MaxTokens: 2048,
	}
	chunks, err := s.Router.Complete(ctx, s.Tier, req)
	if err != nil {
		s.Bus.Emit(events.Stage("synthesize", "", events.StageFailed))
		return "", err
	}
	tracker, _ := usage.FromContext(ctx)
	chunks = usage.RecordFromChunks(tracker, modelName(s.Router, s.Tier), s.Tier, chunks)
	text, err := llm.CollectText(chunks)
	if err != nil {
		s.Bus.Emit(events.Stage("synthesize", "", events.StageFailed))
		return "", err
	}
	s.Bus.Emit(events.Stage("synthesize", "", events.StageCompleted))
	return text, nil
}

func (s *ResearchSubgraph) write(ctx context.Context, state *RunState, findings string) (string, error) {
	s.Bus.Emit(events.Stage("write", "", events.StageRunning))

	req := &llm.CompletionRequest{
		System:    "Write the final report for the user. Be direct and well-organized.",
		Messages:  []llm.CompletionMessage{{Role: "user", Content: findings}},
		MaxTokens: 4096,
	}
	chunks, err := s.Router.Complete(ctx, s.Tier, req)
	if err != nil {
		s.Bus.Emit(events.Stage("write", "", events.StageFailed))
		return "", err
	}
	tracker, _ := usage.FromContext(ctx)
	chunks = usage.RecordFromChunks(tracker, modelName(s.Router, s.Tier), s.Tier, chunks)

	text, _, err := drainReactChunks(chunks, s.Bus)
	if err != nil {
		s.Bus.Emit(events.Stage("write", "", events.StageFailed))
		return "", err
	}
	s.Bus.Emit(events.Stage("write", "", events.StageCompleted))
	return text, nil
}
