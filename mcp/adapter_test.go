package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/oaicompat/llm"
)

func TestProcessToolResult(t *testing.T) {
	tests := []struct {
		name     string
		content  []mcp.Content
		expected string
	}{
		{
			name:     "empty",
			content:  []mcp.Content{},
			expected: "",
		},
		{
			name:     "text joined with newline",
			content:  []mcp.Content{&mcp.TextContent{Text: "Line 1"}, &mcp.TextContent{Text: "Line 2"}},
			expected: "Line 1\nLine 2",
		},
		{
			name:     "image",
			content:  []mcp.Content{&mcp.ImageContent{MIMEType: "image/png", Data: []byte("0123456789")}},
			expected: "[Image: image/png, 10 bytes]",
		},
		{
			name:     "embedded resource",
			content:  []mcp.Content{&mcp.EmbeddedResource{Resource: &mcp.ResourceContents{URI: "file:///data.json"}}},
			expected: "[Resource: file:///data.json]",
		},
		{
			name:     "embedded resource without contents",
			content:  []mcp.Content{&mcp.EmbeddedResource{}},
			expected: "[Resource: embedded]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, processToolResult(tt.content))
		})
	}
}

func TestInputSchema(t *testing.T) {
	t.Run("verbatim", func(t *testing.T) {
		schema := map[string]any{
			"type":       "object",
			"properties": map[string]any{"q": map[string]any{"type": "string", "x-custom": true}},
		}
		raw, err := inputSchema(&mcp.Tool{Name: "search", InputSchema: schema})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"object","properties":{"q":{"type":"string","x-custom":true}}}`, string(raw))
	})

	t.Run("missing", func(t *testing.T) {
		raw, err := inputSchema(&mcp.Tool{Name: "ping"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"object","properties":{}}`, string(raw))
	})

	t.Run("unencodable", func(t *testing.T) {
		_, err := inputSchema(&mcp.Tool{Name: "bad", InputSchema: map[string]any{"f": func() {}}})
		assert.ErrorContains(t, err, `tool "bad"`)
	})
}

type echoArgs struct {
	Text string `json:"text"`
}

func connectEcho(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(&mcp.Implementation{Name: "echo", Version: "0.0.1"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "echo", Description: "Echo text"},
		func(ctx context.Context, req *mcp.CallToolRequest, in echoArgs) (*mcp.CallToolResult, any, error) {
			if in.Text == "" {
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{Text: "text is empty"}},
				}, nil, nil
			}
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: in.Text}}}, nil, nil
		})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client, err := Connect(ctx, clientTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_Tools(t *testing.T) {
	client := connectEcho(t)
	ctx := context.Background()

	tools, err := client.Tools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name())
	assert.Equal(t, "Echo text", tools[0].Description())

	var params map[string]any
	require.NoError(t, json.Unmarshal(tools[0].Parameters(), &params))
	assert.Contains(t, params["properties"], "text")

	got, err := tools[0].Execute(ctx, json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	_, err = tools[0].Execute(ctx, json.RawMessage(`{"text":""}`))
	var toolErr *llm.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.ErrorContains(t, err, "text is empty")

	specs, err := client.Specs(ctx)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, tools[0].Parameters(), specs[0].Parameters)
}

func TestClient_ExecuteToolCalls(t *testing.T) {
	client := connectEcho(t)
	ctx := context.Background()

	tools, err := client.Tools(ctx)
	require.NoError(t, err)

	msgs, err := llm.ExecuteToolCalls(ctx, []llm.ToolCall{
		{ID: "call_1", Name: "echo", Arguments: `{"text":"pong"}`},
	}, llm.NewToolRegistry(tools...))
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{llm.ToolMessage("call_1", "pong")}, msgs)
}
