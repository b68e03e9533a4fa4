package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/scriptbox/pkg/core"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPConfig holds MCP registry configuration.
type MCPConfig struct {
	// Endpoint is the MCP server URL.
	Endpoint string
	// Transport selects the client transport: "http" (streamable HTTP,
	// default) or "sse".
	Transport string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// MCP adapts an MCP server into the Tool Invocation Registry contract. The
// sandbox speaks positional arguments; the adapter maps them onto each
// tool's input schema (required properties first in declaration order, then
// the remaining properties alphabetically).
type MCP struct {
	client *client.Client
	logger *slog.Logger

	mu     sync.RWMutex
	tools  []core.ToolInfo
	byName map[string]mcp.Tool
}

// ConnectMCP dials the configured MCP server, performs the initialize
// handshake, and caches the tool list.
func ConnectMCP(ctx context.Context, cfg MCPConfig) (*MCP, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var c *client.Client
	var err error
	switch strings.ToLower(cfg.Transport) {
	case "", "http":
		c, err = client.NewStreamableHttpClient(cfg.Endpoint)
	case "sse":
		c, err = client.NewSSEMCPClient(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unknown MCP transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "scriptbox", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("MCP initialize failed: %w", err)
	}

	r := &MCP{client: c, logger: logger}
	if err := r.Refresh(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	logger.Info("connected to MCP server", "endpoint", cfg.Endpoint, "tools", len(r.tools))
	return r, nil
}

// Refresh re-fetches the tool list from the server.
func (r *MCP) Refresh(ctx context.Context) error {
	res, err := r.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list MCP tools: %w", err)
	}

	infos := make([]core.ToolInfo, 0, len(res.Tools))
	byName := make(map[string]mcp.Tool, len(res.Tools))
	for _, t := range res.Tools {
		infos = append(infos, core.ToolInfo{Name: t.Name, Description: t.Description})
		byName[t.Name] = t
	}

	r.mu.Lock()
	r.tools = infos
	r.byName = byName
	r.mu.Unlock()
	return nil
}

// Tools returns the cached tool list.
func (r *MCP) Tools(_ context.Context) ([]core.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools, nil
}

// Invoke calls the named tool and converts its result into a structured
// tool outcome.
func (r *MCP) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	r.mu.RLock()
	tool, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	named, err := mapPositionalArgs(tool.InputSchema, args)
	if err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = named

	res, err := r.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tool %s call failed: %w", name, err)
	}

	return outcomeFromResult(res), nil
}

// Close shuts down the underlying client.
func (r *MCP) Close() error {
	return r.client.Close()
}

// mapPositionalArgs assigns positional arguments to schema property names:
// required properties first in their declared order, then the remaining
// properties in alphabetical order.
func mapPositionalArgs(schema mcp.ToolInputSchema, args []any) (map[string]any, error) {
	order := make([]string, 0, len(schema.Properties))
	seen := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		if _, ok := schema.Properties[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}

	var optional []string
	for name := range schema.Properties {
		if !seen[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	order = append(order, optional...)

	if len(args) > len(order) {
		return nil, fmt.Errorf("tool expects at most %d args (%d given)", len(order), len(args))
	}

	named := make(map[string]any, len(args))
	for i, arg := range args {
		named[order[i]] = arg
	}
	return named, nil
}

// outcomeFromResult flattens an MCP call result into a ToolOutcome. Text
// content parts are joined; an IsError result carries the joined text as
// the error field.
func outcomeFromResult(res *mcp.CallToolResult) *core.ToolOutcome {
	var parts []string
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if res.IsError {
		return &core.ToolOutcome{Success: false, Error: text}
	}
	if len(parts) > 1 {
		return &core.ToolOutcome{Success: true, Content: &core.TextBundle{Parts: parts}}
	}
	return &core.ToolOutcome{Success: true, Content: text}
}
