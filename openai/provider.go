// Package openai implements a provider for any endpoint that speaks the
// OpenAI Chat Completions wire protocol: OpenAI itself, Azure OpenAI, and
// self-hosted compatible servers.
package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/i2y/oaicompat/aggregate"
	"github.com/i2y/oaicompat/config"
	"github.com/i2y/oaicompat/metrics"
	"github.com/i2y/oaicompat/provider"
)

// Name is the registry name of this provider.
const Name = "openai-compat"

func init() {
	provider.Register(Name, func() (provider.Provider, error) {
		return New()
	})
}

// Provider sends chat requests to one endpoint.
type Provider struct {
	endpoint  config.Endpoint
	transport provider.Transport
	logger    *slog.Logger
	metrics   *metrics.Collector
	lenient   bool
}

// Option configures the provider.
type Option func(*providerConfig)

type providerConfig struct {
	endpoint     *config.Endpoint
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
	transport    provider.Transport
	logger       *slog.Logger
	metrics      *metrics.Collector
	lenient      bool
}

// WithEndpoint uses e instead of reading the environment.
func WithEndpoint(e config.Endpoint) Option {
	return func(c *providerConfig) {
		c.endpoint = &e
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *providerConfig) {
		c.apiKey = key
	}
}

// WithBaseURL sets the base URL, e.g. http://localhost:11434/v1.
func WithBaseURL(url string) Option {
	return func(c *providerConfig) {
		c.baseURL = url
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(c *providerConfig) {
		c.defaultModel = model
	}
}

// WithHTTPClient sets the HTTP client used by the built-in transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *providerConfig) {
		c.httpClient = client
	}
}

// WithTransport replaces the built-in HTTP transport.
func WithTransport(t provider.Transport) Option {
	return func(c *providerConfig) {
		c.transport = t
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *providerConfig) {
		c.logger = l
	}
}

// WithMetrics records requests and streams in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *providerConfig) {
		c.metrics = m
	}
}

// WithLenientEnd treats a stream that closes after its finish_reason without
// sending [DONE] as complete.
func WithLenientEnd() Option {
	return func(c *providerConfig) {
		c.lenient = true
	}
}

// New creates a provider. Without WithEndpoint the endpoint comes from the
// OPENAI_* environment variables; explicit options override either source.
// It fails with *provider.ConfigError when the result is unusable.
func New(opts ...Option) (*Provider, error) {
	cfg := &providerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var ep config.Endpoint
	if cfg.endpoint != nil {
		ep = *cfg.endpoint
	} else {
		ep = config.FromEnv()
	}
	if cfg.apiKey != "" {
		ep.APIKey = cfg.apiKey
	}
	if cfg.baseURL != "" {
		ep.BaseURL = cfg.baseURL
	}
	if cfg.defaultModel != "" {
		ep.DefaultModel = cfg.defaultModel
	}
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	transport := cfg.transport
	if transport == nil {
		client := cfg.httpClient
		if client == nil && ep.Timeout > 0 {
			client = newDefaultClient()
			client.Transport.(*http.Transport).ResponseHeaderTimeout = ep.Timeout
		}
		transport = NewHTTPTransport(client, logger)
	}

	return &Provider{
		endpoint:  ep,
		transport: transport,
		logger:    logger,
		metrics:   cfg.metrics,
		lenient:   cfg.lenient,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return Name
}

// Endpoint returns the endpoint the provider talks to.
func (p *Provider) Endpoint() config.Endpoint {
	return p.endpoint
}

// Call sends req as a non-streaming request and decodes the whole body at
// once. req.Stream is ignored.
func (p *Provider) Call(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	start := time.Now()
	resp, err := p.call(ctx, req)
	p.metrics.ObserveRequest(metrics.ModeBatch, err, time.Since(start))
	p.metrics.ObserveResponse(resp)
	return resp, err
}

func (p *Provider) call(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	wire, err := BuildRequest(withStream(req, false), p.endpoint)
	if err != nil {
		return nil, err
	}

	if p.endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.endpoint.Timeout)
		defer cancel()
	}

	body, err := p.transport.RoundTrip(ctx, wire)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	resp, err := DecodeResponse(data)
	if err != nil {
		return nil, err
	}
	for _, e := range resp.Errors {
		p.logger.Warn("dropping tool call", "error", e)
	}
	return resp, nil
}

// CallStream implements provider.StreamingProvider.
func (p *Provider) CallStream(ctx context.Context, req *provider.Request) (provider.ResponseStream, error) {
	return p.Stream(ctx, req)
}

// Stream sends req as a streaming request. req.Stream is ignored. The
// returned Stream must be closed.
func (p *Provider) Stream(ctx context.Context, req *provider.Request) (*Stream, error) {
	start := time.Now()

	wire, err := BuildRequest(withStream(req, true), p.endpoint)
	if err != nil {
		p.metrics.ObserveRequest(metrics.ModeStream, err, time.Since(start))
		return nil, err
	}

	body, err := p.transport.RoundTrip(ctx, wire)
	if err != nil {
		p.metrics.ObserveRequest(metrics.ModeStream, err, time.Since(start))
		return nil, err
	}

	opts := []aggregate.Option{aggregate.WithLogger(p.logger)}
	if p.lenient {
		opts = append(opts, aggregate.WithLenientEnd())
	}
	pipeline := aggregate.NewPipeline(opts...)

	return newStream(body, pipeline, func(resp *provider.Response, err error) {
		if err == nil && resp != nil {
			err = resp.Err
		}
		stats := pipeline.Stats()
		p.metrics.ObserveRequest(metrics.ModeStream, err, time.Since(start))
		p.metrics.AddFrames(stats.Frames)
		p.metrics.ObserveResponse(resp)
		p.metrics.ObserveStream(resp, err)
		p.logger.Debug("stream finished",
			"frames", stats.Frames,
			"deltas", stats.Deltas,
			"decode_errors", stats.DecodeErrors,
			"elapsed", time.Since(start),
			"error", err)
	}), nil
}

// withStream returns req with Stream set to stream, copying only when needed.
func withStream(req *provider.Request, stream bool) *provider.Request {
	if req == nil || req.Stream == stream {
		return req
	}
	r := *req
	r.Stream = stream
	return &r
}
