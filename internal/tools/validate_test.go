package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaCatalog() []Tool {
	return []Tool{
		{
			Name:        "write_file",
			Category:    CategoryFileOps,
			Description: "write a file into the sandbox",
			Schema:      json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`),
			Handler:     echoHandler,
		},
		{
			Name:        "no_schema_tool",
			Category:    CategoryFileOps,
			Description: "has no declared schema",
			Handler:     echoHandler,
		},
	}
}

func TestValidateArgsAcceptsConformingParams(t *testing.T) {
	reg, err := NewRegistry(schemaCatalog(), nil)
	require.NoError(t, err)

	err = reg.ValidateArgs("write_file", json.RawMessage(`{"path":"a.txt","content":"hi"}`))
	assert.NoError(t, err)
}

func TestValidateArgsRejectsMissingRequiredField(t *testing.T) {
	reg, err := NewRegistry(schemaCatalog(), nil)
	require.NoError(t, err)

	err = reg.ValidateArgs("write_file", json.RawMessage(`{"path":"a.txt"}`))
	assert.Error(t, err)
}

func TestValidateArgsRejectsWrongType(t *testing.T) {
	reg, err := NewRegistry(schemaCatalog(), nil)
	require.NoError(t, err)

	err = reg.ValidateArgs("write_file", json.RawMessage(`{"path":123,"content":"hi"}`))
	assert.Error(t, err)
}

func TestValidateArgsSkipsToolsWithNoSchema(t *testing.T) {
	reg, err := NewRegistry(schemaCatalog(), nil)
	require.NoError(t, err)

	err = reg.ValidateArgs("no_schema_tool", json.RawMessage(`{"anything":"goes"}`))
	assert.NoError(t, err)
}

func TestValidateArgsRejectsUnknownTool(t *testing.T) {
	reg, err := NewRegistry(schemaCatalog(), nil)
	require.NoError(t, err)

	err = reg.ValidateArgs("does_not_exist", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestValidateArgsRejectsMalformedJSON(t *testing.T) {
	reg, err := NewRegistry(schemaCatalog(), nil)
	require.NoError(t, err)

	err = reg.ValidateArgs("write_file", json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestCompileSchemaCachesCompiledSchema(t *testing.T) {
	schema := json.RawMessage(`{"type":"object"}`)
	first, err := compileSchema("cache_probe", schema)
	require.NoError(t, err)

	second, err := compileSchema("cache_probe", schema)
	require.NoError(t, err)

	assert.Same(t, first, second)
}
