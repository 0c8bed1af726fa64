// Package config loads the orchestrator's YAML configuration file, applying
// environment-variable expansion and overrides the way the gateway's own
// config loader does (server/database/auth/logging sections, defaults
// applied after decode, then validated).
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the orchestrator daemon's top-level configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Redis        RedisConfig        `yaml:"redis"`
	LLM          LLMConfig          `yaml:"llm"`
	Sandbox      SandboxConfig      `yaml:"sandbox"`
	Tools        ToolsConfig        `yaml:"tools"`
	Skills       SkillsConfig       `yaml:"skills"`
	Memory       MemoryConfig       `yaml:"memory"`
	Graph        GraphConfig        `yaml:"graph"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig configures the HTTP listener serving SSE runs and health
// checks.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RedisConfig configures the shared Redis connection backing HITL
// interrupts and the research worker's streaming bridge.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LLMConfig configures the three tiered providers.
type LLMConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`

	// ProProvider, MaxProvider and FlashProvider are defaulted below but are
	// not read when the daemon builds its providers: PRO and MAX use
	// Anthropic when its key is set (PRO falls back to OpenAI otherwise),
	// and FLASH uses Gemini when its key is set, else the PRO provider.
	ProProvider  string `yaml:"pro_provider"`   // "anthropic" (default) or "openai"
	MaxProvider   string `yaml:"max_provider"`   // "anthropic" (default) or "openai"
	FlashProvider string `yaml:"flash_provider"` // "gemini" (default) or "openai"
}

// SandboxConfig configures the execution/desktop sandbox pools.
type SandboxConfig struct {
	Firecracker FirecrackerSandboxConfig `yaml:"firecracker"`
	Playwright  PlaywrightSandboxConfig  `yaml:"playwright"`
}

// FirecrackerSandboxConfig configures the code-execution sandbox factory.
type FirecrackerSandboxConfig struct {
	Enabled       bool   `yaml:"enabled"`
	KernelImage   string `yaml:"kernel_image"`
	RootDrivePath string `yaml:"root_drive_path"`
}

// PlaywrightSandboxConfig configures the desktop/browser sandbox factory.
type PlaywrightSandboxConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Headless bool   `yaml:"headless"`
	Browser  string `yaml:"browser"`
}

// ToolsConfig configures the tool registry's MCP server list.
type ToolsConfig struct {
	MCPServers []string `yaml:"mcp_servers"`
}

// SkillsConfig configures the dynamic skill watcher.
type SkillsConfig struct {
	Dir              string        `yaml:"dir"`
	WatchDebounce    time.Duration `yaml:"watch_debounce"`
	DisableFileWatch bool          `yaml:"disable_file_watch"`
}

// MemoryConfig configures the sliding window's size and how many recent
// messages it preserves.
type MemoryConfig struct {
	MaxMessages    int `yaml:"max_messages"`
	PreserveRecent int `yaml:"preserve_recent"`
}

// GraphConfig configures the supervisor graph's handoff and concurrency
// limits.
type GraphConfig struct {
	MaxHandoffs     int `yaml:"max_handoffs"`
	ToolConcurrency int `yaml:"tool_concurrency"`
}

// LoggingConfig configures the daemon's structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads, expands, decodes, defaults, and validates the config file at
// path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ORCHESTRATORD_HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("ORCHESTRATORD_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLM.AnthropicAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.LLM.OpenAIAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		cfg.LLM.GeminiAPIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.LLM.ProProvider == "" {
		cfg.LLM.ProProvider = "anthropic"
	}
	if cfg.LLM.MaxProvider == "" {
		cfg.LLM.MaxProvider = "anthropic"
	}
	if cfg.LLM.FlashProvider == "" {
		cfg.LLM.FlashProvider = "gemini"
	}
	if cfg.Skills.Dir == "" {
		cfg.Skills.Dir = "./skills"
	}
	if cfg.Skills.WatchDebounce == 0 {
		cfg.Skills.WatchDebounce = 500 * time.Millisecond
	}
	if cfg.Memory.MaxMessages == 0 {
		cfg.Memory.MaxMessages = 50
	}
	if cfg.Memory.PreserveRecent == 0 {
		cfg.Memory.PreserveRecent = 10
	}
	if cfg.Graph.MaxHandoffs == 0 {
		cfg.Graph.MaxHandoffs = 5
	}
	if cfg.Graph.ToolConcurrency == 0 {
		cfg.Graph.ToolConcurrency = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range", cfg.Server.Port)
	}
	if cfg.LLM.AnthropicAPIKey == "" && cfg.LLM.OpenAIAPIKey == "" {
		return fmt.Errorf("config: at least one of llm.anthropic_api_key or llm.openai_api_key is required")
	}
	return nil
}
