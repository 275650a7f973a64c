package delta

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/i2y/oaicompat/provider"
	"github.com/i2y/oaicompat/sse"
)

var errMissingChoices = errors.New(`missing required field "choices"`)

// Chunk is a decoded frame: the deltas in fold order plus chunk metadata.
type Chunk struct {
	ID     string
	Model  string
	Deltas []Delta
}

// Decode parses one frame payload into deltas, in the order they must be
// folded: content, tool call fragments, finish, usage.
func Decode(payload []byte) ([]Delta, error) {
	c, err := DecodeChunk(payload)
	if err != nil {
		return nil, err
	}
	return c.Deltas, nil
}

// DecodeFrame decodes an SSE frame. The [DONE] frame yields End without
// touching JSON.
func DecodeFrame(f sse.Frame) (Chunk, error) {
	if f.Done {
		return Chunk{Deltas: []Delta{End{}}}, nil
	}
	return DecodeChunk(f.Data)
}

// DecodeChunk parses one frame payload. It fails with *provider.DecodeError
// on malformed JSON or when "choices" is missing. A top-level error object
// decodes to a Finish delta with reason error.
func DecodeChunk(payload []byte) (Chunk, error) {
	var wc wireChunk
	if err := json.Unmarshal(payload, &wc); err != nil {
		return Chunk{}, &provider.DecodeError{Raw: bytes.Clone(payload), Cause: err}
	}

	out := Chunk{ID: wc.ID, Model: wc.Model}

	if wc.Error != nil {
		out.Deltas = append(out.Deltas, Finish{
			Reason: provider.FinishReasonError,
			Err:    wc.Error.apiError(),
		})
		return out, nil
	}

	if wc.Choices == nil {
		return Chunk{}, &provider.DecodeError{Raw: bytes.Clone(payload), Cause: errMissingChoices}
	}

	if choices := *wc.Choices; len(choices) > 0 {
		out.Deltas = appendChoice(out.Deltas, choices[0])
	}

	if wc.Usage != nil {
		out.Deltas = append(out.Deltas, Usage{Usage: provider.Usage{
			PromptTokens:     wc.Usage.PromptTokens,
			CompletionTokens: wc.Usage.CompletionTokens,
			TotalTokens:      wc.Usage.TotalTokens,
		}})
	}

	return out, nil
}

func appendChoice(deltas []Delta, ch wireChoice) []Delta {
	if ch.Delta.Content != nil && *ch.Delta.Content != "" {
		deltas = append(deltas, Content{Text: *ch.Delta.Content})
	}

	for i, tc := range ch.Delta.ToolCalls {
		// A fragment with nothing to contribute must not create an entry.
		if tc.ID == "" && tc.Function.Name == "" && tc.Function.Arguments == "" {
			continue
		}
		index := i
		if tc.Index != nil {
			index = *tc.Index
		}
		deltas = append(deltas, ToolCall{
			Index:     index,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if ch.FinishReason != nil && *ch.FinishReason != "" {
		deltas = append(deltas, Finish{Reason: provider.ParseFinishReason(*ch.FinishReason)})
	}

	return deltas
}

// wireChunk is the OpenAI chat.completion.chunk object, reduced to the fields
// the decoder reads.
type wireChunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices *[]wireChoice `json:"choices"`
	Usage   *wireUsage    `json:"usage"`
	Error   *wireError    `json:"error"`
}

type wireChoice struct {
	Index        int       `json:"index"`
	Delta        wireDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type wireDelta struct {
	Role      string         `json:"role"`
	Content   *string        `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls"`
}

type wireToolCall struct {
	Index    *int   `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireError struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    json.RawMessage `json:"code"`
}

// DecodeAPIError extracts the error object from an error response body such
// as {"error":{"message":...}}. It returns nil when body carries no error
// object.
func DecodeAPIError(body []byte) *provider.APIError {
	var env struct {
		Error *wireError `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil
	}
	return env.Error.apiError()
}

func (e *wireError) apiError() *provider.APIError {
	return &provider.APIError{
		Message: e.Message,
		Type:    e.Type,
		Code:    rawCode(e.Code),
	}
}

// rawCode flattens an error code that servers send as a string, a number or
// null.
func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
