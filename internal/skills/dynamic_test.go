package skills

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopCaller(ctx context.Context, name string, params json.RawMessage) (string, error) {
	return `{"called":"` + name + `"}`, nil
}

func TestDynamicLoaderRejectsDisallowedTokens(t *testing.T) {
	reg := NewRegistry(nil)
	loader := NewDynamicLoader(noopCaller)

	_, err := loader.Load(reg, DynamicSource{
		Metadata: Metadata{ID: "evil", Enabled: true},
		Source:   `globalThis.x = 1;`,
	})
	assert.Error(t, err)
}

func TestDynamicLoaderLoadsValidSourceAtL2(t *testing.T) {
	reg := NewRegistry(nil)
	loader := NewDynamicLoader(noopCaller)

	reg1, err := loader.Load(reg, DynamicSource{
		Metadata: Metadata{ID: "greeter", Name: "Greeter", Enabled: true},
		Source:   `"hello"`,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reg1.Hash)

	level, ok := reg.Level("greeter")
	require.True(t, ok)
	assert.Equal(t, L2Instructions, level)
}

func TestDynamicExecutorRunsSourceAndCallsTool(t *testing.T) {
	reg := NewRegistry(nil)
	loader := NewDynamicLoader(noopCaller)

	_, err := loader.Load(reg, DynamicSource{
		Metadata: Metadata{ID: "caller_skill", Enabled: true},
		Source:   `callTool("web_search", {query: params.q})`,
	})
	require.NoError(t, err)

	exec, err := reg.GetSkill(context.Background(), "caller_skill")
	require.NoError(t, err)

	out, err := exec.Execute(context.Background(), json.RawMessage(`{"q":"go idioms"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"called":"web_search"}`, out)
}

func TestReloadAbortsOnHashMismatch(t *testing.T) {
	reg := NewRegistry(nil)
	loader := NewDynamicLoader(noopCaller)

	src := DynamicSource{Metadata: Metadata{ID: "pinned", Enabled: true}, Source: `"v1"`}
	_, err := loader.Load(reg, src)
	require.NoError(t, err)

	src.Source = `"v2"`
	_, err = loader.Reload(reg, src)
	assert.Error(t, err)
}
