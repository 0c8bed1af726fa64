// Package daemon wires every orchestrator component (events, circuit
// breakers, sandboxes, tools, skills, guardrails, memory, LLM providers,
// the supervisor graph, HITL, usage accounting, and the streaming bridge)
// into a running App, the way the gateway package assembles Nexus's own
// channel/provider/server stack behind a single constructor.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentgraph/orchestrator/internal/circuitbreaker"
	"github.com/agentgraph/orchestrator/internal/config"
	"github.com/agentgraph/orchestrator/internal/graph"
	"github.com/agentgraph/orchestrator/internal/guardrail"
	"github.com/agentgraph/orchestrator/internal/hitl"
	"github.com/agentgraph/orchestrator/internal/llm"
	"github.com/agentgraph/orchestrator/internal/sandbox"
	"github.com/agentgraph/orchestrator/internal/skills"
	"github.com/agentgraph/orchestrator/internal/streaming"
	"github.com/agentgraph/orchestrator/internal/tools"
	"github.com/agentgraph/orchestrator/internal/usage"
	"github.com/agentgraph/orchestrator/pkg/events"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// App holds every wired component a run needs. Per-run state (the
// supervisor's bus and the subgraphs bound to it) is built fresh for each
// call to NewRun so concurrent runs never interleave events on one
// channel; everything else here is process-wide and shared.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Redis       *redis.Client
	Breakers    *circuitbreaker.Registry
	Sandboxes   *sandbox.Manager
	Tools       *tools.Registry
	Skills      *skills.Registry
	Watcher     *skills.Watcher
	Guardrails  *guardrail.Chain
	LLMRouter   *llm.Router
	GraphRouter *graph.Router
	Checkpoints graph.CheckpointStore
	Bridge      *streaming.Bridge
	Worker      *streaming.WorkerBridge
}

// Run bundles the per-call supervisor, event bus, HITL manager, and usage
// tracker its subgraphs and tool handlers share.
type Run struct {
	Supervisor *graph.Supervisor
	Bus        *events.Bus
	HITL       *hitl.Manager
	Usage      *usage.Tracker
	State      *graph.RunState
}

// NewRun builds an isolated supervisor + event bus + HITL manager + usage
// tracker for one thread/query, sharing the app's Redis connection and
// LLM/tool registries.
func (a *App) NewRun(threadID, query, explicitMode, userID string) *Run {
	bus := events.NewBus(64)

	taskSubgraph := graph.NewTaskSubgraph(a.LLMRouter, a.Tools, bus, graph.ReactConfig{
		ToolConcurrency: a.Config.Graph.ToolConcurrency,
	})
	dataSubgraph := graph.NewTaskSubgraph(a.LLMRouter, a.Tools, bus, graph.ReactConfig{
		ToolConcurrency: a.Config.Graph.ToolConcurrency,
	})
	dataSubgraph.AgentType = string(graph.AgentData)
	researchSubgraph := graph.NewResearchSubgraph(a.LLMRouter, nil, bus, graph.ResearchConfig{})

	supervisor := graph.NewSupervisor(a.GraphRouter, map[graph.AgentType]graph.Subgraph{
		graph.AgentTask:     taskSubgraph,
		graph.AgentResearch: researchSubgraph,
		graph.AgentData:     dataSubgraph,
	}, bus, a.Checkpoints)
	supervisor.MaxHandoffs = a.Config.Graph.MaxHandoffs

	hitlManager := hitl.NewManager(a.Redis, busInterruptEmitter{bus: bus})

	return &Run{
		Supervisor: supervisor,
		Bus:        bus,
		HITL:       hitlManager,
		Usage:      usage.NewTracker(threadID, userID),
		State:      graph.NewRunState(threadID, query, explicitMode),
	}
}

// New builds and wires an App from cfg. Callers own Close()ing it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})

	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{})

	sandboxes, err := buildSandboxManager(cfg, breakers, logger)
	if err != nil {
		return nil, fmt.Errorf("daemon: building sandbox manager: %w", err)
	}

	toolReg, err := buildToolRegistry(sandboxes)
	if err != nil {
		return nil, fmt.Errorf("daemon: building tool registry: %w", err)
	}

	skillReg := skills.NewRegistry(nil)
	loader := skills.NewDynamicLoader(skills.ToolCaller(func(ctx context.Context, name string, params json.RawMessage) (string, error) {
		tool, ok := toolReg.Get(name)
		if !ok {
			return "", fmt.Errorf("daemon: unknown tool %q", name)
		}
		return tool.Handler(ctx, params)
	}))
	var watcher *skills.Watcher
	if !cfg.Skills.DisableFileWatch {
		watcher = skills.NewWatcher(cfg.Skills.Dir, cfg.Skills.WatchDebounce, loader, skillReg, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("skills: failed to start file watcher", "error", err, "dir", cfg.Skills.Dir)
			watcher = nil
		}
	}

	llmRouter, err := buildLLMRouter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("daemon: building LLM router: %w", err)
	}

	chain := guardrail.NewChain()
	graphRouter := graph.NewRouter(llmRouter)
	checkpoints := graph.NewMemoryCheckpointStore()

	return &App{
		Config:      cfg,
		Logger:      logger,
		Redis:       rdb,
		Breakers:    breakers,
		Sandboxes:   sandboxes,
		Tools:       toolReg,
		Skills:      skillReg,
		Watcher:     watcher,
		Guardrails:  chain,
		LLMRouter:   llmRouter,
		GraphRouter: graphRouter,
		Checkpoints: checkpoints,
		Bridge:      streaming.NewBridge(sandboxes),
		Worker:      streaming.NewWorkerBridge(rdb),
	}, nil
}

// Close releases the daemon's long-lived connections.
func (a *App) Close() error {
	if a.Watcher != nil {
		_ = a.Watcher.Close()
	}
	return a.Redis.Close()
}

func buildSandboxManager(cfg *config.Config, breakers *circuitbreaker.Registry, logger *slog.Logger) (*sandbox.Manager, error) {
	factories := make(map[sandbox.Kind]sandbox.Factory)

	if cfg.Sandbox.Firecracker.Enabled {
		factories[sandbox.KindExecution] = sandbox.NewFirecrackerFactory(sandbox.FirecrackerConfig{
			KernelImagePath: cfg.Sandbox.Firecracker.KernelImage,
			RootFSTemplate:  cfg.Sandbox.Firecracker.RootDrivePath,
		})
	} else {
		factories[sandbox.KindExecution] = sandbox.NewMockFactory(sandbox.KindExecution)
	}

	if cfg.Sandbox.Playwright.Enabled {
		pw, err := sandbox.NewPlaywrightFactory(sandbox.PlaywrightConfig{
			Headless: cfg.Sandbox.Playwright.Headless,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("starting playwright driver: %w", err)
		}
		factories[sandbox.KindDesktop] = pw
	} else {
		factories[sandbox.KindDesktop] = sandbox.NewMockFactory(sandbox.KindDesktop)
	}

	return sandbox.NewManager(factories, breakers), nil
}

func buildToolRegistry(sandboxes *sandbox.Manager) (*tools.Registry, error) {
	catalog := []tools.Tool{newEchoTool(), newAskHumanTool(), graph.NewHandoffTool()}

	// search_tools is registered as an MCP-category tool below (RegisterMCPTool
	// always tags it CategoryMCP), so every agent that should see it needs
	// CategoryMCP in its allow-list alongside its own domain categories.
	reg, err := tools.NewRegistry(catalog, map[string][]tools.Category{
		"task":     {tools.CategoryFileOps, tools.CategoryCodeExec, tools.CategoryToolSearch, tools.CategoryMCP, tools.CategoryHITL},
		"research": {tools.CategorySearch, tools.CategoryToolSearch, tools.CategoryMCP, tools.CategoryHITL},
		"data":     {tools.CategoryFileOps, tools.CategoryCodeExec, tools.CategoryMCP, tools.CategoryHITL},
	})
	if err != nil {
		return nil, err
	}
	reg.RegisterMCPTool(tools.NewSearchTool(reg))
	return reg, nil
}

func buildLLMRouter(ctx context.Context, cfg *config.Config) (*llm.Router, error) {
	byTier := make(map[llm.Tier]llm.Provider)

	if cfg.LLM.AnthropicAPIKey != "" {
		p, err := llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: cfg.LLM.AnthropicAPIKey, Tier: llm.TierPro})
		if err != nil {
			return nil, err
		}
		byTier[llm.TierPro] = p

		maxProvider, err := llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: cfg.LLM.AnthropicAPIKey, Tier: llm.TierMax, DefaultModel: "claude-opus-4-20250514"})
		if err != nil {
			return nil, err
		}
		byTier[llm.TierMax] = maxProvider
	}

	if cfg.LLM.OpenAIAPIKey != "" {
		p, err := llm.NewOpenAIProvider(llm.OpenAIConfig{APIKey: cfg.LLM.OpenAIAPIKey, Tier: llm.TierPro})
		if err != nil {
			return nil, err
		}
		if _, ok := byTier[llm.TierPro]; !ok {
			byTier[llm.TierPro] = p
		}
	}

	if cfg.LLM.GeminiAPIKey != "" {
		p, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{APIKey: cfg.LLM.GeminiAPIKey})
		if err != nil {
			return nil, err
		}
		byTier[llm.TierFlash] = p
	} else if p, ok := byTier[llm.TierPro]; ok {
		byTier[llm.TierFlash] = p
	}

	return llm.NewRouter(byTier), nil
}

// busInterruptEmitter adapts the shared event bus to hitl.EventEmitter.
type busInterruptEmitter struct {
	bus *events.Bus
}

func (e busInterruptEmitter) EmitInterrupt(i hitl.Interrupt) {
	e.bus.Emit(events.Event{
		Type:          events.TypeInterrupt,
		InterruptID:   i.InterruptID,
		InterruptType: string(i.Kind),
		Message:       i.Message,
		DefaultAction: i.DefaultAction,
	})
}

// newAskHumanTool implements create_interrupt/wait_for_response as a tool
// (§4.L) over whatever hitl.Manager is bound to the call's context by
// Server.handleCreateRun; a tool handler reached through many layers of
// the react loop has no other way back to the run's manager.
func newAskHumanTool() tools.Tool {
	return tools.Tool{
		Name:        "ask_human",
		Description: "Pause the run and ask a human to approve, decide between options, or answer a question before continuing.",
		Category:    tools.CategoryHITL,
		Schema:      json.RawMessage(`{"type":"object","properties":{"kind":{"type":"string","enum":["approval","decision","input"]},"message":{"type":"string"},"timeout_seconds":{"type":"integer"}},"required":["kind","message"]}`),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			manager, threadID, ok := hitl.FromContext(ctx)
			if !ok {
				return "", fmt.Errorf("daemon: ask_human called outside a run with a bound hitl manager")
			}

			var p struct {
				Kind           string `json:"kind"`
				Message        string `json:"message"`
				TimeoutSeconds int    `json:"timeout_seconds"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return "", err
			}

			interruptID := uuid.NewString()
			kind := hitl.Kind(p.Kind)
			if err := manager.CreateInterrupt(ctx, threadID, interruptID, hitl.Interrupt{
				Kind:       kind,
				Message:    p.Message,
				TimeoutSec: p.TimeoutSeconds,
			}); err != nil {
				return "", fmt.Errorf("ask_human: creating interrupt: %w", err)
			}

			resp, err := manager.WaitForResponse(ctx, threadID, interruptID, p.TimeoutSeconds)
			if err != nil {
				if errors.Is(err, hitl.ErrTimeout) {
					out, _ := json.Marshal(hitl.Response{Action: kind.DefaultAction(), InterruptID: interruptID})
					return string(out), nil
				}
				return "", fmt.Errorf("ask_human: waiting for response: %w", err)
			}

			out, err := json.Marshal(resp)
			return string(out), err
		},
	}
}

func newEchoTool() tools.Tool {
	return tools.Tool{
		Name:        "echo",
		Description: "Echo back the provided text. Used for smoke-testing the tool-execution path.",
		Category:    tools.CategoryFileOps,
		Schema:      json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			var p struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return "", err
			}
			return p.Text, nil
		},
	}
}
