package llm

import (
	"github.com/i2y/oaicompat/provider"
)

// DefaultProvider is the registry name used when no provider is given. The
// provider registers itself when its package is imported:
//
//	import _ "github.com/i2y/oaicompat/openai"
const DefaultProvider = "openai-compat"

// Option configures a call.
type Option func(*callConfig)

type callConfig struct {
	providerName string
	instance     provider.Provider

	model            string
	temperature      *float64
	maxTokens        *int
	topP             *float64
	seed             *int
	stopSequences    []string
	presencePenalty  *float64
	frequencyPenalty *float64
	includeUsage     bool

	systemMessage string
	messages      []Message
	tools         []Tool
	toolSpecs     []provider.ToolSpec
	toolChoice    *provider.ToolChoice
	jsonSchema    *provider.JSONSchema
}

func newCallConfig(opts []Option) *callConfig {
	c := &callConfig{providerName: DefaultProvider}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithProvider selects a registered provider by name.
func WithProvider(name string) Option {
	return func(c *callConfig) {
		c.providerName = name
	}
}

// WithProviderInstance uses p directly instead of the registry.
func WithProviderInstance(p provider.Provider) Option {
	return func(c *callConfig) {
		c.instance = p
	}
}

// WithModel sets the model. Without it the endpoint's default model is used.
func WithModel(name string) Option {
	return func(c *callConfig) {
		c.model = name
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *callConfig) {
		c.temperature = &t
	}
}

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(n int) Option {
	return func(c *callConfig) {
		c.maxTokens = &n
	}
}

// WithTopP sets nucleus sampling.
func WithTopP(p float64) Option {
	return func(c *callConfig) {
		c.topP = &p
	}
}

// WithSeed asks for reproducible sampling.
func WithSeed(seed int) Option {
	return func(c *callConfig) {
		c.seed = &seed
	}
}

// WithStopSequences sets sequences that end generation.
func WithStopSequences(seqs ...string) Option {
	return func(c *callConfig) {
		c.stopSequences = seqs
	}
}

// WithPresencePenalty sets the presence penalty.
func WithPresencePenalty(p float64) Option {
	return func(c *callConfig) {
		c.presencePenalty = &p
	}
}

// WithFrequencyPenalty sets the frequency penalty.
func WithFrequencyPenalty(p float64) Option {
	return func(c *callConfig) {
		c.frequencyPenalty = &p
	}
}

// WithUsage asks a streaming endpoint to report token usage.
func WithUsage() Option {
	return func(c *callConfig) {
		c.includeUsage = true
	}
}

// WithSystemMessage puts a system message before everything else.
func WithSystemMessage(msg string) Option {
	return func(c *callConfig) {
		c.systemMessage = msg
	}
}

// WithMessages prepends conversation history.
func WithMessages(msgs ...Message) Option {
	return func(c *callConfig) {
		c.messages = append(c.messages, msgs...)
	}
}

// WithTools offers executable tools to the model.
func WithTools(tools ...Tool) Option {
	return func(c *callConfig) {
		c.tools = append(c.tools, tools...)
	}
}

// WithToolSpecs offers tools that are described but executed elsewhere,
// such as tools imported from an MCP server.
func WithToolSpecs(specs ...provider.ToolSpec) Option {
	return func(c *callConfig) {
		c.toolSpecs = append(c.toolSpecs, specs...)
	}
}

// WithToolChoice sets whether the model may, must or must not call tools.
func WithToolChoice(mode provider.ToolChoiceMode) Option {
	return func(c *callConfig) {
		c.toolChoice = &provider.ToolChoice{Mode: mode}
	}
}

// WithForcedTool makes the model call the named tool.
func WithForcedTool(name string) Option {
	return func(c *callConfig) {
		c.toolChoice = &provider.ToolChoice{Function: name}
	}
}

func (c *callConfig) buildRequest(messages []Message) *provider.Request {
	req := &provider.Request{
		Model:            c.model,
		Temperature:      c.temperature,
		MaxTokens:        c.maxTokens,
		TopP:             c.topP,
		Seed:             c.seed,
		StopSequences:    c.stopSequences,
		PresencePenalty:  c.presencePenalty,
		FrequencyPenalty: c.frequencyPenalty,
		IncludeUsage:     c.includeUsage,
		ToolChoice:       c.toolChoice,
		JSONSchema:       c.jsonSchema,
	}

	req.Messages = make([]Message, 0, len(c.messages)+len(messages)+1)
	if c.systemMessage != "" {
		req.Messages = append(req.Messages, SystemMessage(c.systemMessage))
	}
	req.Messages = append(req.Messages, c.messages...)
	req.Messages = append(req.Messages, messages...)

	for _, t := range c.tools {
		req.Tools = append(req.Tools, specOf(t))
	}
	req.Tools = append(req.Tools, c.toolSpecs...)

	return req
}

// resumeOptions carries the settings of an earlier call into a follow-up.
// History is not included; the follow-up passes it explicitly.
func (c *callConfig) resumeOptions() []Option {
	return []Option{func(next *callConfig) {
		next.providerName = c.providerName
		next.instance = c.instance
		next.model = c.model
		next.temperature = c.temperature
		next.maxTokens = c.maxTokens
		next.topP = c.topP
		next.seed = c.seed
		next.stopSequences = c.stopSequences
		next.presencePenalty = c.presencePenalty
		next.frequencyPenalty = c.frequencyPenalty
		next.includeUsage = c.includeUsage
		next.tools = c.tools
		next.toolSpecs = c.toolSpecs
		next.toolChoice = c.toolChoice
	}}
}
