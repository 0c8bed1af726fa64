package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orchestratord.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  anthropic_api_key: sk-test
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, "anthropic", cfg.LLM.ProProvider)
	assert.Equal(t, "gemini", cfg.LLM.FlashProvider)
	assert.Equal(t, 5, cfg.Graph.MaxHandoffs)
	assert.Equal(t, 4, cfg.Graph.ToolConcurrency)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  bogus_field: true
llm:
  anthropic_api_key: sk-test
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRequiresAnLLMAPIKey(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "anthropic_api_key")
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-from-env")
	path := writeConfig(t, `
llm:
  anthropic_api_key: ${TEST_ANTHROPIC_KEY}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.AnthropicAPIKey)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 99999
llm:
  anthropic_api_key: sk-test
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "port")
}
