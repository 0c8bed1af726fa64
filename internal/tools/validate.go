package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache holds one compiled *jsonschema.Schema per distinct schema
// body, keyed on the raw bytes, so a tool invoked repeatedly across a run
// only pays the compile cost once.
var schemaCache sync.Map

func compileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	compiled, err := jsonschema.CompileString(name+".schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateArgs checks params against the named tool's declared JSON schema
// before a handler runs. A tool with no schema is always considered valid —
// not every tool (handoff_to_agent, for one) needs one.
func (r *Registry) ValidateArgs(name string, params json.RawMessage) error {
	tool, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("tools: unknown tool %q", name)
	}
	if len(tool.Schema) == 0 {
		return nil
	}

	schema, err := compileSchema(name, tool.Schema)
	if err != nil {
		return fmt.Errorf("tools: compiling schema for %q: %w", name, err)
	}

	var decoded any
	if err := json.Unmarshal(params, &decoded); err != nil {
		return fmt.Errorf("tools: decoding arguments for %q: %w", name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tools: arguments for %q failed validation: %w", name, err)
	}
	return nil
}
