// Package llm is the host-facing API: one-shot calls, structured output,
// streaming, and tool execution on top of any registered provider.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/i2y/oaicompat/provider"
	"github.com/i2y/oaicompat/schema"
)

// Call sends prompt as a user message and returns the text response.
//
//	resp, err := llm.Call(ctx, "Recommend a fantasy book",
//	    llm.WithModel("gpt-4o-mini"),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Text())
func Call(ctx context.Context, prompt string, opts ...Option) (Response[string], error) {
	return CallMessages(ctx, []Message{UserMessage(prompt)}, opts...)
}

// CallMessages sends a conversation and returns the text response.
func CallMessages(ctx context.Context, messages []Message, opts ...Option) (Response[string], error) {
	cfg := newCallConfig(opts)
	resp, req, err := call(ctx, cfg, messages)
	if err != nil {
		return Response[string]{}, err
	}
	return newResponse(resp, resp.Content, nil, history(req, resp), cfg), nil
}

// CallParse asks for output matching the JSON schema of T and decodes it.
// A response that does not decode is not an error here; it surfaces from
// Response.Parsed.
//
//	type Book struct {
//	    Title  string `json:"title"`
//	    Author string `json:"author"`
//	}
//	resp, err := llm.CallParse[Book](ctx, "Recommend a sci-fi book")
//	book, err := resp.Parsed()
func CallParse[T any](ctx context.Context, prompt string, opts ...Option) (Response[T], error) {
	return CallMessagesParse[T](ctx, []Message{UserMessage(prompt)}, opts...)
}

// CallMessagesParse is CallParse with a full conversation.
func CallMessagesParse[T any](ctx context.Context, messages []Message, opts ...Option) (Response[T], error) {
	cfg := newCallConfig(opts)

	raw, err := schema.Generate[T]()
	if err != nil {
		return Response[T]{}, fmt.Errorf("generating schema: %w", err)
	}
	strict, err := schema.RequireAll(raw)
	if err != nil {
		return Response[T]{}, fmt.Errorf("generating schema: %w", err)
	}
	name := schemaName[T]()
	cfg.jsonSchema = &provider.JSONSchema{Name: name, Strict: true, Schema: strict}

	resp, req, err := call(ctx, cfg, messages)
	if err != nil {
		return Response[T]{}, err
	}

	var parsed T
	var parseErr error
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		parseErr = &ParseError{Schema: name, Content: resp.Content, Cause: err}
	}
	return newResponse(resp, parsed, parseErr, history(req, resp), cfg), nil
}

func call(ctx context.Context, cfg *callConfig, messages []Message) (*provider.Response, *provider.Request, error) {
	p, err := cfg.resolve()
	if err != nil {
		return nil, nil, err
	}

	req := cfg.buildRequest(messages)
	resp, err := p.Call(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("calling provider: %w", err)
	}
	assignCallIDs(resp.ToolCalls)
	return resp, req, nil
}

func (c *callConfig) resolve() (provider.Provider, error) {
	if c.instance != nil {
		return c.instance, nil
	}
	p, err := provider.Get(c.providerName)
	if err != nil {
		return nil, fmt.Errorf("getting provider: %w", err)
	}
	return p, nil
}

// assignCallIDs gives an id to finalized tool calls the server sent without
// one, so that their results can still be paired.
func assignCallIDs(calls []ToolCall) {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
	}
}

// history returns the request messages followed by the assistant's reply.
func history(req *provider.Request, resp *provider.Response) []Message {
	msgs := make([]Message, 0, len(req.Messages)+1)
	msgs = append(msgs, req.Messages...)
	if resp.HasToolCalls() {
		return append(msgs, AssistantMessageWithToolCalls(resp.Content, resp.ToolCalls))
	}
	return append(msgs, AssistantMessage(resp.Content))
}

// maxSchemaName is the longest json_schema name endpoints accept.
const maxSchemaName = 64

// schemaName derives a response_format name from T. Endpoints accept only
// [a-zA-Z0-9_-]; other characters, such as the brackets of an instantiated
// generic type, become underscores.
func schemaName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, t.Name())
	name = strings.Trim(name, "_")
	if name == "" {
		return "response"
	}
	if len(name) > maxSchemaName {
		name = name[:maxSchemaName]
	}
	return name
}
