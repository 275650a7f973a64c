package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/i2y/oaicompat/config"
	"github.com/i2y/oaicompat/provider"
)

const chatCompletionsPath = "/chat/completions"

// ChatCompletionsURL joins a base URL and the chat completions path. A base
// that already ends in /chat/completions is returned as is.
func ChatCompletionsURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(base, chatCompletionsPath) {
		return base
	}
	return base + chatCompletionsPath
}

// BuildRequest assembles the HTTP request for req against ep. It is pure:
// the same inputs always produce byte-identical output, and nothing is sent.
//
// The headers are exactly Authorization, Content-Type and, for streaming
// requests only, Accept. The body holds model and messages plus the optional
// fields that are set; absent fields are omitted, never null.
func BuildRequest(req *provider.Request, ep config.Endpoint) (*provider.WireRequest, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &provider.ValidationError{Field: "request", Message: "is nil"}
	}

	body, err := buildBody(req, ep.DefaultModel)
	if err != nil {
		return nil, err
	}

	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}

	header := make(http.Header, 3)
	header.Set("Authorization", "Bearer "+ep.APIKey)
	header.Set("Content-Type", "application/json")
	if req.Stream {
		header.Set("Accept", "text/event-stream")
	}

	return &provider.WireRequest{
		URL:    ChatCompletionsURL(ep.BaseURL),
		Header: header,
		Body:   data,
		Stream: req.Stream,
	}, nil
}

// marshalBody encodes without HTML escaping so schemas and content keep
// characters such as <, > and & as written.
func marshalBody(body *chatCompletionRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func buildBody(req *provider.Request, defaultModel string) (*chatCompletionRequest, error) {
	if len(req.Messages) == 0 {
		return nil, &provider.ValidationError{Field: "messages", Message: "at least one message is required"}
	}

	model := req.Model
	if model == "" {
		model = defaultModel
	}
	if model == "" {
		return nil, &provider.ValidationError{Field: "model", Message: "not set and the endpoint has no default model"}
	}

	body := &chatCompletionRequest{
		Model:            model,
		Messages:         make([]message, 0, len(req.Messages)),
		Stream:           req.Stream,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		Seed:             req.Seed,
		Stop:             req.StopSequences,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
	}

	for i, msg := range req.Messages {
		m, err := convertMessage(msg)
		if err != nil {
			return nil, &provider.ValidationError{
				Field:   fmt.Sprintf("messages[%d].%s", i, err.Field),
				Message: err.Message,
			}
		}
		body.Messages = append(body.Messages, m)
	}

	for i, tool := range req.Tools {
		if tool.Name == "" {
			return nil, &provider.ValidationError{Field: fmt.Sprintf("tools[%d].name", i), Message: "is empty"}
		}
		if len(tool.Parameters) > 0 && !json.Valid(tool.Parameters) {
			return nil, &provider.ValidationError{Field: fmt.Sprintf("tools[%d].parameters", i), Message: "is not valid JSON"}
		}
		body.Tools = append(body.Tools, toolDef{
			Type: "function",
			Function: functionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	if req.ToolChoice != nil {
		tc, err := convertToolChoice(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		body.ToolChoice = tc
	}

	if req.Stream && req.IncludeUsage {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	if js := req.JSONSchema; js != nil {
		if js.Name == "" {
			return nil, &provider.ValidationError{Field: "json_schema.name", Message: "is empty"}
		}
		if !json.Valid(js.Schema) {
			return nil, &provider.ValidationError{Field: "json_schema.schema", Message: "is not valid JSON"}
		}
		body.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   js.Name,
				Strict: js.Strict,
				Schema: js.Schema,
			},
		}
	}

	return body, nil
}

func convertMessage(msg provider.Message) (message, *provider.ValidationError) {
	if !msg.Role.Valid() {
		return message{}, &provider.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", msg.Role)}
	}

	m := message{Role: string(msg.Role)}

	switch msg.Role {
	case provider.RoleTool:
		if msg.ToolCallID == "" {
			return message{}, &provider.ValidationError{Field: "tool_call_id", Message: "required for tool messages"}
		}
		m.ToolCallID = msg.ToolCallID

	case provider.RoleAssistant:
		for j, tc := range msg.ToolCalls {
			if tc.ID == "" || tc.Name == "" {
				return message{}, &provider.ValidationError{
					Field:   fmt.Sprintf("tool_calls[%d]", j),
					Message: "id and name are required",
				}
			}
			args := tc.Arguments
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			m.ToolCalls = append(m.ToolCalls, toolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: functionCall{Name: tc.Name, Arguments: args},
			})
		}
		// An assistant turn made only of tool calls has no content field.
		if len(m.ToolCalls) > 0 && msg.Content == "" {
			return m, nil
		}
	}

	content := msg.Content
	m.Content = &content
	return m, nil
}

func convertToolChoice(tc *provider.ToolChoice) (any, error) {
	if tc.Function != "" {
		var c toolChoiceFunction
		c.Type = "function"
		c.Function.Name = tc.Function
		return c, nil
	}
	switch tc.Mode {
	case provider.ToolChoiceAuto, provider.ToolChoiceNone, provider.ToolChoiceRequired:
		return string(tc.Mode), nil
	}
	return nil, &provider.ValidationError{Field: "tool_choice", Message: fmt.Sprintf("unknown mode %q", tc.Mode)}
}
