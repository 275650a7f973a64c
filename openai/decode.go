package openai

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/i2y/oaicompat/delta"
	"github.com/i2y/oaicompat/provider"
)

var errMissingChoices = errors.New(`missing required field "choices"`)

// DecodeResponse decodes a non-streaming chat completion body in one pass.
// No frames, deltas or accumulator are involved.
//
// Tool calls whose arguments are not valid JSON are left out of ToolCalls
// and reported in Errors, as on the streaming path.
func DecodeResponse(body []byte) (*provider.Response, error) {
	if apiErr := delta.DecodeAPIError(body); apiErr != nil {
		return nil, apiErr
	}

	var raw chatCompletionResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &provider.DecodeError{Raw: bytes.Clone(body), Cause: err}
	}
	if raw.Choices == nil {
		return nil, &provider.DecodeError{Raw: bytes.Clone(body), Cause: errMissingChoices}
	}

	resp := &provider.Response{
		ID:    raw.ID,
		Model: raw.Model,
	}
	if raw.Usage != nil {
		resp.Usage = provider.Usage{
			PromptTokens:     raw.Usage.PromptTokens,
			CompletionTokens: raw.Usage.CompletionTokens,
			TotalTokens:      raw.Usage.TotalTokens,
		}
	}

	choices := *raw.Choices
	if len(choices) == 0 {
		return resp, nil
	}

	c := choices[0]
	if c.Message.Content != nil {
		resp.Content = *c.Message.Content
	}
	if c.FinishReason != nil {
		resp.FinishReason = provider.ParseFinishReason(*c.FinishReason)
	}

	for i, tc := range c.Message.ToolCalls {
		call := provider.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
		if strings.TrimSpace(call.Arguments) == "" {
			call.Arguments = "{}"
		}
		var args json.RawMessage
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			resp.Errors = append(resp.Errors, &provider.ToolArgumentsCorruptError{
				Index:     i,
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
				Cause:     err,
			})
			continue
		}
		resp.ToolCalls = append(resp.ToolCalls, call)
	}

	return resp, nil
}
