package llm

import (
	"context"
)

// Model is a reusable set of call options bound to a model name.
//
//	model := llm.NewModel("gpt-4o-mini", llm.WithTemperature(0.2))
//	resp, err := model.Call(ctx, "Tell me a joke")
type Model struct {
	name     string
	baseOpts []Option
}

// NewModel creates a Model. An empty name uses the endpoint's default model.
func NewModel(name string, opts ...Option) *Model {
	return &Model{name: name, baseOpts: opts}
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// Call is like the package-level Call. Per-call options override the
// model's base options.
func (m *Model) Call(ctx context.Context, prompt string, opts ...Option) (Response[string], error) {
	return Call(ctx, prompt, m.mergeOptions(opts)...)
}

// CallMessages is like the package-level CallMessages.
func (m *Model) CallMessages(ctx context.Context, messages []Message, opts ...Option) (Response[string], error) {
	return CallMessages(ctx, messages, m.mergeOptions(opts)...)
}

// CallStream is like the package-level CallStream.
func (m *Model) CallStream(ctx context.Context, prompt string, opts ...Option) (*Stream, error) {
	return CallStream(ctx, prompt, m.mergeOptions(opts)...)
}

func (m *Model) mergeOptions(opts []Option) []Option {
	all := make([]Option, 0, len(m.baseOpts)+len(opts)+1)
	if m.name != "" {
		all = append(all, WithModel(m.name))
	}
	all = append(all, m.baseOpts...)
	return append(all, opts...)
}
