package toolrack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPTransport selects how to reach an MCP server.
type MCPTransport string

const (
	MCPTransportStreamableHTTP MCPTransport = "streamable_http"
	MCPTransportSSE            MCPTransport = "sse"
	MCPTransportStdio          MCPTransport = "stdio"
)

// MCPServerConfig describes an MCP server connection. URL and Headers apply
// to the HTTP transports, Command/Args/Env to stdio.
type MCPServerConfig struct {
	Transport MCPTransport
	URL       string
	Command   string
	Args      []string
	Env       map[string]string
	Headers   map[string]string
}

// MCPSource is an open connection to an MCP server whose tools can be
// registered as proxy tools.
type MCPSource struct {
	client *client.Client
}

// ConnectMCP connects to an MCP server and performs the initialize
// handshake. The caller owns the returned source and must Close it when the
// registered tools are no longer needed.
func ConnectMCP(ctx context.Context, cfg MCPServerConfig) (*MCPSource, error) {
	c, err := newMCPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "toolrack", Version: "0.1"}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize MCP server: %w", err)
	}
	return &MCPSource{client: c}, nil
}

func newMCPClient(ctx context.Context, cfg MCPServerConfig) (*client.Client, error) {
	switch cfg.Transport {
	case MCPTransportStreamableHTTP, "":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		c, err := client.NewStreamableHttpClient(cfg.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create streamable HTTP client: %w", err)
		}
		return c, nil
	case MCPTransportSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		c, err := client.NewSSEMCPClient(cfg.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create SSE client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("start SSE transport: %w", err)
		}
		return c, nil
	case MCPTransportStdio:
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		c, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("create stdio client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported MCP transport %q", cfg.Transport)
	}
}

// RegisterTools lists the server's tools and registers each as a proxy tool
// in r under the given namespace. It returns the registered tool names.
func (s *MCPSource) RegisterTools(ctx context.Context, r *Registry, namespace string) ([]string, error) {
	resp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list MCP tools: %w", err)
	}

	names := make([]string, 0, len(resp.Tools))
	for _, mt := range resp.Tools {
		schema, err := toSchemaMap(mt.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", mt.Name, err)
		}
		tool, err := NewProxyTool(mt.Name, mt.Description, schema, &mcpProxy{
			client: s.client,
			tool:   mt.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", mt.Name, err)
		}
		r.Register(tool, WithNamespace(namespace))
		names = append(names, tool.Name())
	}
	return names, nil
}

// Close terminates the connection. Registered proxy tools stop working
// after this.
func (s *MCPSource) Close() error {
	return s.client.Close()
}

func toSchemaMap(in mcp.ToolInputSchema) (map[string]any, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	return m, nil
}

// mcpProxy forwards a tool call to an MCP server.
type mcpProxy struct {
	client *client.Client
	tool   string
}

func (p *mcpProxy) Call(ctx context.Context, args map[string]any) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = p.tool
	req.Params.Arguments = args

	resp, err := p.client.CallTool(ctx, req)
	if err != nil {
		return nil, &SystemError{Err: fmt.Errorf("call MCP tool %s: %w", p.tool, err)}
	}
	result := flattenMCPContent(resp.Content)
	if resp.IsError {
		return nil, fmt.Errorf("%v", result)
	}
	return result, nil
}

// flattenMCPContent converts MCP content blocks to a plain value: a single
// text block becomes a string (decoded as JSON when it parses), multiple
// blocks become a slice.
func flattenMCPContent(content []mcp.Content) any {
	decode := func(c mcp.Content) any {
		tc, ok := c.(mcp.TextContent)
		if !ok {
			return c
		}
		var v any
		if err := json.Unmarshal([]byte(tc.Text), &v); err == nil {
			return v
		}
		return tc.Text
	}

	switch len(content) {
	case 0:
		return nil
	case 1:
		return decode(content[0])
	default:
		out := make([]any, 0, len(content))
		for _, c := range content {
			out = append(out, decode(c))
		}
		return out
	}
}
