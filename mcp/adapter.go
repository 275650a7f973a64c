// Package mcp exposes the tools of a Model Context Protocol server as chat
// tools. Their input schemas are forwarded to the endpoint verbatim.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/i2y/oaicompat/llm"
	"github.com/i2y/oaicompat/provider"
)

const defaultTimeout = 30 * time.Second

// Client is a connected MCP client session.
type Client struct {
	session *mcp.ClientSession
	timeout time.Duration
}

// Option configures the MCP client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout time.Duration
}

// WithTimeout bounds each tool call.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// Connect opens a session over transport.
func Connect(ctx context.Context, transport mcp.Transport, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(cfg)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "oaicompat", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server: %w", err)
	}
	return &Client{session: session, timeout: cfg.timeout}, nil
}

// NewStdioClient starts command and talks to it over stdio.
//
//	client, err := mcp.NewStdioClient(ctx, "./my-mcp-server", nil)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func NewStdioClient(ctx context.Context, command string, args []string, opts ...Option) (*Client, error) {
	return Connect(ctx, &mcp.CommandTransport{Command: exec.Command(command, args...)}, opts...)
}

// Tools lists the server's tools as executable llm tools.
//
//	tools, err := client.Tools(ctx)
//	resp, err := llm.Call(ctx, "Use the tools to help", llm.WithTools(tools...))
func (c *Client) Tools(ctx context.Context) ([]llm.Tool, error) {
	result, err := c.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("listing MCP tools: %w", err)
	}

	tools := make([]llm.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		params, err := inputSchema(t)
		if err != nil {
			return nil, err
		}
		tools = append(tools, &remoteTool{client: c, tool: t, params: params})
	}
	return tools, nil
}

// Specs lists the server's tools as definitions only, for callers that
// execute tool calls themselves.
func (c *Client) Specs(ctx context.Context) ([]provider.ToolSpec, error) {
	tools, err := c.Tools(ctx)
	if err != nil {
		return nil, err
	}
	specs := make([]provider.ToolSpec, len(tools))
	for i, t := range tools {
		specs[i] = provider.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
	}
	return specs, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.session.Close()
}

// inputSchema returns the tool's input schema as sent by the server. A tool
// without one takes an empty object.
func inputSchema(t *mcp.Tool) (json.RawMessage, error) {
	if t.InputSchema == nil {
		return json.RawMessage(`{"type":"object","properties":{}}`), nil
	}
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %q: encoding input schema: %w", t.Name, err)
	}
	return raw, nil
}

type remoteTool struct {
	client *Client
	tool   *mcp.Tool
	params json.RawMessage
}

func (t *remoteTool) Name() string {
	return t.tool.Name
}

func (t *remoteTool) Description() string {
	return t.tool.Description
}

func (t *remoteTool) Parameters() json.RawMessage {
	return t.params
}

func (t *remoteTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.client.timeout)
	defer cancel()

	var arguments map[string]any
	if err := json.Unmarshal(args, &arguments); err != nil {
		return nil, &llm.ToolError{Tool: t.tool.Name, Cause: fmt.Errorf("parsing arguments: %w", err)}
	}

	result, err := t.client.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      t.tool.Name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("calling MCP tool: %w", err)
	}

	combined := processToolResult(result.Content)
	if result.IsError {
		return nil, &llm.ToolError{Tool: t.tool.Name, Cause: fmt.Errorf("%s", combined)}
	}
	return combined, nil
}

// processToolResult flattens tool output to text, one line per item.
func processToolResult(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch item := c.(type) {
		case *mcp.TextContent:
			parts = append(parts, item.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s, %d bytes]", item.MIMEType, len(item.Data)))
		case *mcp.EmbeddedResource:
			if item.Resource != nil {
				parts = append(parts, fmt.Sprintf("[Resource: %s]", item.Resource.URI))
			} else {
				parts = append(parts, "[Resource: embedded]")
			}
		}
	}
	return strings.Join(parts, "\n")
}

// ToolsFromMCP starts command and returns its tools with a cleanup func.
func ToolsFromMCP(ctx context.Context, command string, args []string, opts ...Option) ([]llm.Tool, func() error, error) {
	client, err := NewStdioClient(ctx, command, args, opts...)
	if err != nil {
		return nil, nil, err
	}

	tools, err := client.Tools(ctx)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return tools, client.Close, nil
}
