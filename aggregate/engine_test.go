package aggregate

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/oaicompat/delta"
	"github.com/i2y/oaicompat/provider"
)

func foldAll(e *Engine, deltas ...delta.Delta) []Snapshot {
	snaps := make([]Snapshot, 0, len(deltas))
	for _, d := range deltas {
		snaps = append(snaps, e.Fold(d))
	}
	return snaps
}

func TestEngine_Text(t *testing.T) {
	e := NewEngine()
	snaps := foldAll(e,
		delta.Content{Text: "Hel"},
		delta.Content{Text: "lo"},
		delta.Finish{Reason: provider.FinishReasonStop},
		delta.End{},
	)

	assert.Equal(t, "Hel", snaps[0].TextDelta)
	assert.Equal(t, "lo", snaps[1].TextDelta)
	assert.Equal(t, provider.FinishReasonStop, snaps[2].FinishReason)
	assert.True(t, snaps[3].Done)

	resp := e.Response()
	assert.Equal(t, "Hello", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, provider.FinishReasonStop, resp.FinishReason)
	assert.NoError(t, resp.Err)
	assert.Empty(t, resp.Errors)
}

func TestEngine_ToolCallIDSetOnce(t *testing.T) {
	e := NewEngine()
	foldAll(e,
		delta.ToolCall{Index: 0, ID: "call_first", Name: "get_"},
		delta.ToolCall{Index: 0, ID: "call_second", Name: "weather", Arguments: `{"city":`},
		delta.ToolCall{Index: 0, Arguments: `"Paris"}`},
		delta.Finish{Reason: provider.FinishReasonToolCalls},
		delta.End{},
	)

	resp := e.Response()
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, provider.ToolCall{
		ID:        "call_first",
		Name:      "get_weather",
		Arguments: `{"city":"Paris"}`,
	}, resp.ToolCalls[0])
}

func TestEngine_IDArrivingLate(t *testing.T) {
	e := NewEngine()
	foldAll(e,
		delta.ToolCall{Index: 0, Name: "lookup"},
		delta.ToolCall{Index: 0, ID: "call_late", Arguments: "{}"},
		delta.Finish{Reason: provider.FinishReasonToolCalls},
	)

	require.Len(t, e.Response().ToolCalls, 1)
	assert.Equal(t, "call_late", e.Response().ToolCalls[0].ID)
}

func TestEngine_InterleavedIndices(t *testing.T) {
	e := NewEngine()
	foldAll(e,
		delta.ToolCall{Index: 1, ID: "call_b", Name: "second"},
		delta.ToolCall{Index: 0, ID: "call_a", Name: "first"},
		delta.ToolCall{Index: 1, Arguments: `{"b":`},
		delta.ToolCall{Index: 0, Arguments: `{"a":`},
		delta.ToolCall{Index: 1, Arguments: `2}`},
		delta.ToolCall{Index: 0, Arguments: `1}`},
		delta.Finish{Reason: provider.FinishReasonToolCalls},
		delta.End{},
	)

	resp := e.Response()
	require.Len(t, resp.ToolCalls, 2)
	// First-seen order, not index order.
	assert.Equal(t, provider.ToolCall{ID: "call_b", Name: "second", Arguments: `{"b":2}`}, resp.ToolCalls[0])
	assert.Equal(t, provider.ToolCall{ID: "call_a", Name: "first", Arguments: `{"a":1}`}, resp.ToolCalls[1])
	assert.Equal(t, provider.FinishReasonToolCalls, resp.FinishReason)
}

func TestEngine_ArgumentFragmentsAssociative(t *testing.T) {
	const args = `{"city":"Paris","days":[1,2,3],"unit":"c","note":"a \"quoted\" word"}`

	var want any
	require.NoError(t, json.Unmarshal([]byte(args), &want))

	check := func(t *testing.T, parts []string) {
		t.Helper()
		e := NewEngine()
		e.Fold(delta.ToolCall{Index: 0, ID: "call_1", Name: "forecast"})
		for _, p := range parts {
			e.Fold(delta.ToolCall{Index: 0, Arguments: p})
		}
		e.Fold(delta.Finish{Reason: provider.FinishReasonToolCalls})

		resp := e.Response()
		require.Len(t, resp.ToolCalls, 1, "parts %q", parts)
		var got any
		require.NoError(t, json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &got))
		assert.Equal(t, want, got)
	}

	check(t, []string{args})
	for i := 0; i <= len(args); i++ {
		check(t, []string{args[:i], args[i:]})
		for j := i; j <= len(args); j += 5 {
			check(t, []string{args[:i], args[i:j], args[j:]})
		}
	}

	oneByte := make([]string, len(args))
	for i := range args {
		oneByte[i] = args[i : i+1]
	}
	check(t, oneByte)
}

func TestEngine_ArgumentsNotParsedBeforeFinish(t *testing.T) {
	e := NewEngine()
	snaps := foldAll(e,
		delta.ToolCall{Index: 0, ID: "call_1", Name: "f", Arguments: `{"x":`},
		delta.ToolCall{Index: 0, Arguments: `[1,`},
	)
	for _, s := range snaps {
		assert.Empty(t, s.Errors)
		assert.Empty(t, s.Finalized)
	}
	assert.Empty(t, e.Response().Errors)
	assert.Equal(t, []provider.ToolCall{{ID: "call_1", Name: "f", Arguments: `{"x":[1,`}}, e.Pending())
}

func TestEngine_CorruptArgumentsRecordedPerCall(t *testing.T) {
	e := NewEngine()
	snaps := foldAll(e,
		delta.Content{Text: "calling tools"},
		delta.ToolCall{Index: 0, ID: "call_ok", Name: "good", Arguments: `{"ok":true}`},
		delta.ToolCall{Index: 1, ID: "call_bad", Name: "bad", Arguments: `{"broken":`},
		delta.ToolCall{Index: 2, ID: "call_ok2", Name: "good2", Arguments: `[]`},
		delta.Finish{Reason: provider.FinishReasonToolCalls},
		delta.End{},
	)

	fin := snaps[4]
	require.Len(t, fin.Finalized, 2)
	require.Len(t, fin.Errors, 1)

	resp := e.Response()
	assert.Equal(t, "calling tools", resp.Content)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "call_ok", resp.ToolCalls[0].ID)
	assert.Equal(t, "call_ok2", resp.ToolCalls[1].ID)
	assert.NoError(t, resp.Err)

	require.Len(t, resp.Errors, 1)
	var corrupt *provider.ToolArgumentsCorruptError
	require.ErrorAs(t, resp.Errors[0], &corrupt)
	assert.Equal(t, 1, corrupt.Index)
	assert.Equal(t, "call_bad", corrupt.ID)
	assert.Equal(t, "bad", corrupt.Name)
	assert.Equal(t, `{"broken":`, corrupt.Arguments)
}

func TestEngine_EmptyArgumentsFinalizeAsObject(t *testing.T) {
	e := NewEngine()
	foldAll(e,
		delta.ToolCall{Index: 0, ID: "call_1", Name: "now"},
		delta.Finish{Reason: provider.FinishReasonToolCalls},
	)

	require.Len(t, e.Response().ToolCalls, 1)
	assert.Equal(t, "{}", e.Response().ToolCalls[0].Arguments)
}

func TestEngine_EndWithoutFinish(t *testing.T) {
	tests := []struct {
		name           string
		deltas         []delta.Delta
		wantFinish     provider.FinishReason
		wantIncomplete bool
		wantPending    int
	}{
		{
			name:       "text only defaults to stop",
			deltas:     []delta.Delta{delta.Content{Text: "hi"}, delta.End{}},
			wantFinish: provider.FinishReasonStop,
		},
		{
			name:           "nothing accumulated",
			deltas:         []delta.Delta{delta.End{}},
			wantIncomplete: true,
		},
		{
			name: "pending tool call",
			deltas: []delta.Delta{
				delta.Content{Text: "hi"},
				delta.ToolCall{Index: 0, ID: "call_1", Name: "f", Arguments: `{}`},
				delta.End{},
			},
			wantIncomplete: true,
			wantPending:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			foldAll(e, tt.deltas...)

			resp := e.Response()
			assert.True(t, e.Ended())
			assert.Equal(t, tt.wantFinish, resp.FinishReason)
			assert.Len(t, resp.PendingToolCalls, tt.wantPending)

			var incomplete *provider.IncompleteStreamError
			if tt.wantIncomplete {
				require.ErrorAs(t, resp.Err, &incomplete)
				assert.Equal(t, tt.wantPending, incomplete.PendingToolCalls)
			} else {
				assert.NoError(t, resp.Err)
			}
		})
	}
}

func TestEngine_LengthFinishKeepsCallsPending(t *testing.T) {
	e := NewEngine()
	foldAll(e,
		delta.ToolCall{Index: 0, ID: "call_1", Name: "write", Arguments: `{"body":"trunc`},
		delta.Finish{Reason: provider.FinishReasonLength},
		delta.End{},
	)

	resp := e.Response()
	assert.Equal(t, provider.FinishReasonLength, resp.FinishReason)
	assert.Empty(t, resp.ToolCalls)
	assert.Empty(t, resp.Errors)
	assert.NoError(t, resp.Err)
	require.Len(t, resp.PendingToolCalls, 1)
	assert.Equal(t, `{"body":"trunc`, resp.PendingToolCalls[0].Arguments)
}

func TestEngine_ServerError(t *testing.T) {
	e := NewEngine()
	apiErr := &provider.APIError{Message: "overloaded"}
	foldAll(e,
		delta.Content{Text: "partial"},
		delta.Finish{Reason: provider.FinishReasonError, Err: apiErr},
		delta.End{},
	)

	resp := e.Response()
	assert.Equal(t, "partial", resp.Content)
	assert.Equal(t, provider.FinishReasonError, resp.FinishReason)
	assert.ErrorIs(t, resp.Err, apiErr)
}

func TestEngine_IgnoresDeltasAfterEnd(t *testing.T) {
	e := NewEngine()
	foldAll(e,
		delta.Content{Text: "done"},
		delta.End{},
		delta.Content{Text: " and more"},
		delta.ToolCall{Index: 0, ID: "late", Arguments: "{}"},
	)

	resp := e.Response()
	assert.Equal(t, "done", resp.Content)
	assert.Empty(t, resp.PendingToolCalls)
}

func TestEngine_Usage(t *testing.T) {
	e := NewEngine()
	foldAll(e,
		delta.Content{Text: "x"},
		delta.Finish{Reason: provider.FinishReasonStop},
		delta.Usage{Usage: provider.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}},
		delta.End{},
	)

	assert.Equal(t, provider.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}, e.Response().Usage)
}

func TestEngine_Close(t *testing.T) {
	t.Run("after tool fragment", func(t *testing.T) {
		var logs bytes.Buffer
		e := NewEngine(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
		foldAll(e, delta.ToolCall{Index: 0, ID: "call_1", Name: "search", Arguments: `{"q":"go`})
		e.Close(nil)

		resp := e.Response()
		var incomplete *provider.IncompleteStreamError
		require.ErrorAs(t, resp.Err, &incomplete)
		assert.Equal(t, 1, incomplete.PendingToolCalls)
		assert.Equal(t, []provider.ToolCall{{ID: "call_1", Name: "search", Arguments: `{"q":"go`}}, resp.PendingToolCalls)
		assert.Contains(t, logs.String(), "stream closed before completion")
	})

	t.Run("after end is a no-op", func(t *testing.T) {
		e := NewEngine()
		foldAll(e, delta.Content{Text: "x"}, delta.Finish{Reason: provider.FinishReasonStop}, delta.End{})
		e.Close(nil)
		assert.NoError(t, e.Response().Err)
	})

	t.Run("finish without end is incomplete by default", func(t *testing.T) {
		e := NewEngine()
		foldAll(e, delta.Content{Text: "x"}, delta.Finish{Reason: provider.FinishReasonStop})
		e.Close(nil)

		var incomplete *provider.IncompleteStreamError
		assert.ErrorAs(t, e.Response().Err, &incomplete)
		assert.Equal(t, provider.FinishReasonStop, e.Response().FinishReason)
	})

	t.Run("finish without end is complete when lenient", func(t *testing.T) {
		e := NewEngine(WithLenientEnd())
		foldAll(e,
			delta.ToolCall{Index: 0, ID: "call_1", Name: "f", Arguments: "{}"},
			delta.Finish{Reason: provider.FinishReasonToolCalls},
		)
		e.Close(nil)

		resp := e.Response()
		assert.NoError(t, resp.Err)
		assert.Len(t, resp.ToolCalls, 1)
		assert.True(t, e.Ended())
	})

	t.Run("lenient still reports transport errors", func(t *testing.T) {
		e := NewEngine(WithLenientEnd())
		foldAll(e, delta.Content{Text: "x"}, delta.Finish{Reason: provider.FinishReasonStop})
		cause := assert.AnError
		e.Close(cause)

		assert.ErrorIs(t, e.Response().Err, cause)
	})
}

func TestEngine_ResponseIsACopy(t *testing.T) {
	e := NewEngine()
	foldAll(e,
		delta.ToolCall{Index: 0, ID: "call_1", Name: "f", Arguments: "{}"},
		delta.Finish{Reason: provider.FinishReasonToolCalls},
		delta.End{},
	)

	first := e.Response()
	first.ToolCalls[0].Name = "mutated"
	assert.Equal(t, "f", e.Response().ToolCalls[0].Name)
}
