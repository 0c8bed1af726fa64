package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, params json.RawMessage) (string, error) {
	return string(params), nil
}

func testCatalog() []Tool {
	return []Tool{
		{Name: "web_search", Category: CategorySearch, Description: "search the web", Handler: echoHandler},
		{Name: "read_file", Category: CategoryFileOps, Description: "read a file from the sandbox", Handler: echoHandler},
		{Name: "run_shell", Category: CategoryShell, Description: "run a shell command", Handler: echoHandler},
	}
}

func TestNewRegistryRejectsDuplicateNames(t *testing.T) {
	catalog := append(testCatalog(), Tool{Name: "web_search", Category: CategorySearch})
	_, err := NewRegistry(catalog, nil)
	assert.Error(t, err)
}

func TestNewRegistryRejectsUnnamedTool(t *testing.T) {
	_, err := NewRegistry([]Tool{{Category: CategorySearch}}, nil)
	assert.Error(t, err)
}

func TestForAgentResolvesCategoryAllowList(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), map[string][]Category{
		"researcher": {CategorySearch},
		"coder":      {CategoryFileOps, CategoryShell},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"web_search"}, reg.ForAgent("researcher"))
	assert.ElementsMatch(t, []string{"read_file", "run_shell"}, reg.ForAgent("coder"))
	assert.Empty(t, reg.ForAgent("unknown_agent"))
}

func TestRegisterAndUnregisterMCPTools(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), nil)
	require.NoError(t, err)

	reg.RegisterMCPTool(Tool{Name: "mcp_github_search", Description: "[MCP: github] search repos"})
	reg.RegisterMCPTool(Tool{Name: "mcp_github_list_issues", Description: "[MCP: github] list issues"})
	reg.RegisterMCPTool(Tool{Name: "mcp_linear_create_issue", Description: "[MCP: linear] create issue"})

	tool, ok := reg.Get("mcp_github_search")
	require.True(t, ok)
	assert.Equal(t, CategoryMCP, tool.Category)

	reg.UnregisterMCPToolsForServer("mcp_github")

	_, ok = reg.Get("mcp_github_search")
	assert.False(t, ok)
	_, ok = reg.Get("mcp_github_list_issues")
	assert.False(t, ok)
	_, ok = reg.Get("mcp_linear_create_issue")
	assert.True(t, ok)
}

func TestGetPrefersMCPOverStaticOnNameCollision(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), nil)
	require.NoError(t, err)

	reg.RegisterMCPTool(Tool{Name: "web_search", Description: "mcp override"})

	tool, ok := reg.Get("web_search")
	require.True(t, ok)
	assert.Equal(t, "mcp override", tool.Description)
}

func TestSearchToolsSubstringMatchRanksFirst(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), nil)
	require.NoError(t, err)

	results := searchTools(reg.All(), "shell")
	require.NotEmpty(t, results)
	assert.Equal(t, "run_shell", results[0].Name)
}

func TestSearchToolsCapsAtEightResults(t *testing.T) {
	var catalog []Tool
	for i := 0; i < 20; i++ {
		catalog = append(catalog, Tool{
			Name:        "tool_" + string(rune('a'+i)),
			Description: "does file operations",
			Category:    CategoryFileOps,
		})
	}
	results := searchTools(catalog, "file")
	assert.Len(t, results, maxSearchResults)
}

func TestSearchToolsEmptyQueryReturnsNoResults(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), nil)
	require.NoError(t, err)

	results := searchTools(reg.All(), "")
	assert.Empty(t, results)
}

func TestSearchToolHandlerReturnsJSON(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), nil)
	require.NoError(t, err)

	search := NewSearchTool(reg)
	out, err := search.Handler(context.Background(), json.RawMessage(`{"query":"web"}`))
	require.NoError(t, err)

	var results []searchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "web_search", results[0].Name)
}
