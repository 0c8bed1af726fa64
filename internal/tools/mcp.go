package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// MCPServerConfig names a single external MCP server to connect to at
// startup.
type MCPServerConfig struct {
	Name string
	// Dial connects to the server and returns its discoverable tool set.
	// Kept as a function rather than a concrete transport so tests can
	// substitute a fake server without standing up a real MCP connection;
	// production wiring plugs in the stdio/HTTP transport dial.
	Dial func(ctx context.Context) ([]MCPToolDescriptor, error)
}

// MCPToolDescriptor is what an MCP server reports about one of its tools:
// a name, description, and a JSON schema using the server's own type
// vocabulary (string/number/integer/boolean/array/object).
type MCPToolDescriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	// Call invokes the tool on the server side.
	Call func(ctx context.Context, params json.RawMessage) (string, error)
}

// MCPLoader connects to every configured MCP server and wraps each
// discovered tool into the registry under CategoryMCP. Per §4.E, each
// wrapped tool is named `mcp_<tool>`, its description is prefixed
// `[MCP: <server>] <desc>`, and failed connections are logged without
// blocking startup.
func MCPLoader(logger *slog.Logger) func(ctx context.Context, reg *Registry, servers []MCPServerConfig) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, reg *Registry, servers []MCPServerConfig) {
		for _, srv := range servers {
			descs, err := srv.Dial(ctx)
			if err != nil {
				logger.Error("mcp server connection failed, continuing without it", "server", srv.Name, "err", err)
				continue
			}
			for _, d := range descs {
				reg.RegisterMCPTool(wrapMCPTool(srv.Name, d))
			}
			logger.Info("mcp server connected", "server", srv.Name, "tools", len(descs))
		}
	}
}

func wrapMCPTool(server string, d MCPToolDescriptor) Tool {
	name := fmt.Sprintf("mcp_%s", d.Name)
	return Tool{
		Name:        name,
		Description: fmt.Sprintf("[MCP: %s] %s", server, d.Description),
		Category:    CategoryMCP,
		Schema:      translateMCPSchema(d.InputSchema),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			return d.Call(ctx, params)
		},
	}
}

// translateMCPSchema maps the server's JSON Schema types to the runtime
// parameter schema this process uses internally. Today both vocabularies
// are JSON Schema, so this is close to an identity pass-through; it exists
// as the single seam where a future divergence (e.g. an MCP server using a
// schema dialect extension) gets normalized, per §4.E's explicit mention of
// a "parameter schema derived from the server's JSON schema".
func translateMCPSchema(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	normalizeSchemaTypes(schema)
	out, err := json.Marshal(schema)
	if err != nil {
		return raw
	}
	return out
}

// normalizeSchemaTypes recursively lower-cases JSON Schema type names
// (string/number/integer/boolean/array/object) so that case variants some
// MCP servers emit don't trip strict schema validation.
func normalizeSchemaTypes(node map[string]any) {
	if t, ok := node["type"].(string); ok {
		node["type"] = strings.ToLower(t)
	}
	if props, ok := node["properties"].(map[string]any); ok {
		for _, v := range props {
			if child, ok := v.(map[string]any); ok {
				normalizeSchemaTypes(child)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		normalizeSchemaTypes(items)
	}
}
