package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/comigor/cidion/internal/config"
	"github.com/comigor/cidion/internal/logger"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/swaggest/jsonschema-go"
)

// MCPClient defines the methods we expect from an MCP client.
type MCPClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPTool exposes one tool of a remote MCP server through the Tool interface.
type MCPTool struct {
	server string
	tool   mcp.Tool
	schema *jsonschema.Schema
	client MCPClient
}

// NewMCPTool wraps a tool listed by server.
func NewMCPTool(server string, tool mcp.Tool, c MCPClient) *MCPTool {
	return &MCPTool{server: server, tool: tool, schema: mcpSchema(tool), client: c}
}

func (t *MCPTool) Name() string                   { return t.tool.Name }
func (t *MCPTool) Description() string            { return t.tool.Description }
func (t *MCPTool) Parameters() *jsonschema.Schema { return t.schema }

// Run calls the remote tool and renders its first text content. Transport
// failures are reported as text like any other tool failure.
func (t *MCPTool) Run(ctx context.Context, args map[string]any) (string, error) {
	logger.L.Debug("calling MCP tool", "server", t.server, "tool", t.tool.Name, "arguments", args)
	res, err := t.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      t.tool.Name,
			Arguments: args,
		},
	})
	if err != nil {
		logger.L.Warn("MCP CallTool failed", "server", t.server, "tool", t.tool.Name, "error", err)
		return fmt.Sprintf("Error: MCP tool %s failed: %v", t.tool.Name, err), nil
	}
	if res == nil {
		return fmt.Sprintf("Error: MCP tool %s returned no result", t.tool.Name), nil
	}

	text := firstText(res.Content)
	if res.IsError {
		logger.L.Warn("MCP tool executed with IsError=true", "server", t.server, "tool", t.tool.Name)
		if text == "" {
			text = "Tool execution resulted in an error without specific text."
		}
		return "Error: " + text, nil
	}
	if text == "" {
		b, err := json.Marshal(res)
		if err != nil {
			return "Tool executed successfully, but result could not be formatted.", nil
		}
		return string(b), nil
	}
	return text, nil
}

func firstText(content []mcp.Content) string {
	for _, item := range content {
		if tc, ok := item.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// mcpSchema prefers the raw schema the server sent and falls back to the
// structured one; anything unusable becomes an empty object schema.
func mcpSchema(tool mcp.Tool) *jsonschema.Schema {
	raw := tool.RawInputSchema
	if len(raw) == 0 || string(raw) == "null" {
		b, err := json.Marshal(tool.InputSchema)
		if err != nil {
			logger.L.Error("failed to marshal MCP InputSchema; using empty schema", "tool", tool.Name, "error", err)
			return emptyObjectSchema
		}
		raw = b
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil || string(raw) == "{}" {
		if err != nil {
			logger.L.Warn("MCP tool has an unusable schema; using empty schema", "tool", tool.Name, "error", err)
		}
		return emptyObjectSchema
	}
	return &s
}

// RegisterMCPTools lists the tools of c and registers each one under its own
// name. Names already present in m are skipped. It returns how many were added.
func RegisterMCPTools(ctx context.Context, m *ToolManager, server string, c MCPClient) (int, error) {
	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return 0, fmt.Errorf("list tools of %s: %w", server, err)
	}
	added := 0
	for _, t := range listed.Tools {
		if _, err := m.GetTool(t.Name); err == nil {
			logger.L.Warn("tool from MCP server already registered. Skipping.", "tool", t.Name, "name", server)
			continue
		}
		m.RegisterTool(NewMCPTool(server, t, c))
		added++
	}
	return added, nil
}

// ConnectMCPServers starts, initializes and registers every configured server.
// Servers that fail are logged and skipped. The returned clients must be closed
// by the caller.
func ConnectMCPServers(ctx context.Context, m *ToolManager, servers []config.MCPServerConfig) []MCPClient {
	var clients []MCPClient
	for _, serverCfg := range servers {
		c, err := dialMCP(ctx, serverCfg)
		if err != nil {
			logger.L.Error("failed to start MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		if err := initializeMCP(ctx, c); err != nil {
			logger.L.Error("failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			if cerr := c.Close(); cerr != nil {
				logger.L.Warn("MCP client close error after init failure", "error", cerr)
			}
			continue
		}
		n, err := RegisterMCPTools(ctx, m, serverCfg.Name, c)
		if err != nil {
			logger.L.Warn("failed to list tools for MCP client", "name", serverCfg.Name, "error", err)
		}
		logger.L.Info("MCP server initialized", "name", serverCfg.Name, "tools", n)
		clients = append(clients, c)
	}
	return clients
}

func initializeMCP(ctx context.Context, c MCPClient) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "cidion", Version: "1.0.0"}
	_, err := c.Initialize(ctx, req)
	return err
}

func dialMCP(ctx context.Context, serverCfg config.MCPServerConfig) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)
	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(serverCfg.Headers))
		}
		c, err = client.NewSSEMCPClient(serverCfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		c, err = client.NewStreamableHttpClient(serverCfg.URL, opts...)
	case config.ClientTypeStdio:
		env := make([]string, 0, len(serverCfg.Env))
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		// stdio clients start their subprocess on creation
		return client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	default:
		return nil, fmt.Errorf("unsupported MCP server type %q", serverCfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		if cerr := c.Close(); cerr != nil {
			logger.L.Warn("MCP client close error after start failure", "error", cerr)
		}
		return nil, err
	}
	return c, nil
}
