package replay

import (
	"context"
	"io"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/oaicompat/aggregate"
	"github.com/i2y/oaicompat/config"
	"github.com/i2y/oaicompat/openai"
	"github.com/i2y/oaicompat/provider"
)

func TestGlob(t *testing.T) {
	captures, err := Load("testdata", "**/*.sse")
	require.NoError(t, err)

	names := make([]string, len(captures))
	for i, c := range captures {
		names[i] = c.Name
		assert.NotEmpty(t, c.Data)
	}
	assert.Equal(t, []string{"edge/crlf.sse", "edge/truncated.sse", "hello.sse", "tool_calls.sse"}, names)
}

func TestGlob_TopLevelOnly(t *testing.T) {
	captures, err := Load("testdata", "*.sse")
	require.NoError(t, err)
	assert.Len(t, captures, 2)
}

func TestGlob_MapFS(t *testing.T) {
	fsys := fstest.MapFS{
		"a/b/one.sse": {Data: []byte("data: [DONE]\n\n")},
		"a/two.txt":   {Data: []byte("x")},
	}
	captures, err := Glob(fsys, "**/*.sse")
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, "a/b/one.sse", captures[0].Name)
}

func TestGlob_BadPattern(t *testing.T) {
	_, err := Glob(fstest.MapFS{}, "[")
	assert.Error(t, err)
}

func loadOne(t *testing.T, name string) []byte {
	t.Helper()
	captures, err := Load("testdata", name)
	require.NoError(t, err)
	require.Len(t, captures, 1)
	return captures[0].Data
}

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		check   func(t *testing.T, resp *provider.Response)
		pending int
	}{
		{
			name: "text",
			file: "hello.sse",
			check: func(t *testing.T, resp *provider.Response) {
				assert.Equal(t, "Hello", resp.Content)
				assert.Equal(t, provider.FinishReasonStop, resp.FinishReason)
				assert.Equal(t, "chatcmpl-1", resp.ID)
				assert.NoError(t, resp.Err)
			},
		},
		{
			name: "interleaved tool calls with usage",
			file: "tool_calls.sse",
			check: func(t *testing.T, resp *provider.Response) {
				assert.Equal(t, []provider.ToolCall{
					{ID: "call_a", Name: "get_weather", Arguments: `{"city":"Tokyo"}`},
					{ID: "call_b", Name: "get_time", Arguments: `{"tz":"UTC"}`},
				}, resp.ToolCalls)
				assert.Equal(t, 21, resp.Usage.TotalTokens)
				assert.NoError(t, resp.Err)
			},
		},
		{
			name: "truncated",
			file: "edge/truncated.sse",
			check: func(t *testing.T, resp *provider.Response) {
				var incomplete *provider.IncompleteStreamError
				require.ErrorAs(t, resp.Err, &incomplete)
				assert.Equal(t, 1, incomplete.PendingToolCalls)
				assert.Empty(t, resp.ToolCalls)
				require.Len(t, resp.PendingToolCalls, 1)
				assert.Equal(t, `{"q":`, resp.PendingToolCalls[0].Arguments)
			},
		},
		{
			name: "crlf",
			file: "edge/crlf.sse",
			check: func(t *testing.T, resp *provider.Response) {
				assert.Equal(t, "ab", resp.Content)
				assert.NoError(t, resp.Err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := loadOne(t, tt.file)
			want, _, err := Run(data, 0)
			require.NoError(t, err)
			tt.check(t, want)

			for _, size := range []int{1, 2, 3, 7, 64} {
				got, _, err := Run(data, size)
				require.NoError(t, err)
				assert.Equal(t, want, got, "chunk size %d", size)
			}
		})
	}
}

func TestRun_Stats(t *testing.T) {
	_, stats, err := Run(loadOne(t, "hello.sse"), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Frames)
	assert.Zero(t, stats.DecodeErrors)
}

func TestRun_FatalFirstFrame(t *testing.T) {
	resp, _, err := Run([]byte("data: {not json}\n\ndata: [DONE]\n\n"), 0)
	var decErr *provider.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Nil(t, resp)
}

func TestRun_LenientEnd(t *testing.T) {
	data := []byte(`data: {"choices":[{"index":0,"delta":{"content":"x"},"finish_reason":"stop"}]}` + "\n\n")

	strict, _, err := Run(data, 0)
	require.NoError(t, err)
	assert.Error(t, strict.Err)

	lenient, _, err := Run(data, 0, aggregate.WithLenientEnd())
	require.NoError(t, err)
	assert.NoError(t, lenient.Err)
	assert.Equal(t, "x", lenient.Content)
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][]byte{[]byte("abcde")}, chunks([]byte("abcde"), 0))
	assert.Equal(t, [][]byte{[]byte("ab"), []byte("cd"), []byte("e")}, chunks([]byte("abcde"), 2))
	assert.Equal(t, [][]byte{[]byte("abc")}, chunks([]byte("abc"), 10))
}

func TestTransport(t *testing.T) {
	tr := &Transport{Data: []byte("abcdef"), ChunkSize: 4}

	body, err := tr.RoundTrip(context.Background(), &provider.WireRequest{URL: "u"})
	require.NoError(t, err)
	defer body.Close()

	buf := make([]byte, 10)
	n, err := body.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))

	rest, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(rest))
	assert.Len(t, tr.Requests(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.RoundTrip(ctx, &provider.WireRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransport_ThroughProvider(t *testing.T) {
	tr := &Transport{Data: loadOne(t, "tool_calls.sse"), ChunkSize: 3}
	p, err := openai.New(
		openai.WithEndpoint(config.Endpoint{APIKey: "sk-test", BaseURL: "http://localhost:8080/v1", DefaultModel: "m"}),
		openai.WithTransport(tr),
	)
	require.NoError(t, err)

	stream, err := p.Stream(context.Background(), &provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	defer stream.Close()

	var finalized []provider.ToolCall
	for snap := range stream.Snapshots() {
		finalized = append(finalized, snap.Finalized...)
	}
	require.NoError(t, stream.Err())
	assert.Len(t, finalized, 2)

	reqs := tr.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "http://localhost:8080/v1/chat/completions", reqs[0].URL)
	assert.True(t, reqs[0].Stream)
}
