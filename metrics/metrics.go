// Package metrics records provider activity as Prometheus metrics.
//
// A nil *Collector is valid and records nothing, so callers never need to
// guard their calls.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/i2y/oaicompat/provider"
)

const namespace = "oaicompat"

// Request modes.
const (
	ModeBatch  = "batch"
	ModeStream = "stream"
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeConfig     = "config_error"
	OutcomeValidation = "validation_error"
	OutcomeAPI        = "api_error"
	OutcomeDecode     = "decode_error"
	OutcomeIncomplete = "incomplete"
	OutcomeError      = "error"
)

// Collector owns the adapter's metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	framesTotal     prometheus.Counter
	decodeErrors    prometheus.Counter
	corruptArgs     prometheus.Counter
	streamsTotal    *prometheus.CounterVec
}

// NewCollector registers the metrics in registry. A nil registry gets a
// fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Chat completion requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from sending a request to its final response.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"mode"}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "SSE frames received.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frames or bodies that failed to decode.",
		}),
		corruptArgs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_arguments_corrupt_total",
			Help:      "Tool calls whose arguments were not valid JSON.",
		}),
		streamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Finished streams by finish reason and outcome.",
		}, []string{"finish_reason", "outcome"}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.framesTotal,
		c.decodeErrors,
		c.corruptArgs,
		c.streamsTotal,
	)
	return c
}

// Registry returns the registry the metrics are registered in.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveRequest records one request that has reached its final response or
// failed before producing one.
func (c *Collector) ObserveRequest(mode string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(mode, Outcome(err)).Inc()
	c.requestDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// AddFrames counts received SSE frames.
func (c *Collector) AddFrames(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.framesTotal.Add(float64(n))
}

// ObserveResponse records the recoverable errors attached to a response.
func (c *Collector) ObserveResponse(resp *provider.Response) {
	if c == nil || resp == nil {
		return
	}
	for _, err := range resp.Errors {
		var (
			decErr  *provider.DecodeError
			corrupt *provider.ToolArgumentsCorruptError
		)
		switch {
		case errors.As(err, &decErr):
			c.decodeErrors.Inc()
		case errors.As(err, &corrupt):
			c.corruptArgs.Inc()
		}
	}
}

// ObserveStream records a finished stream. resp may be nil when the stream
// failed fatally.
func (c *Collector) ObserveStream(resp *provider.Response, err error) {
	if c == nil {
		return
	}
	reason := "none"
	if resp != nil {
		if resp.FinishReason != "" {
			reason = string(resp.FinishReason)
		}
		if err == nil {
			err = resp.Err
		}
	}
	var decErr *provider.DecodeError
	if resp == nil && errors.As(err, &decErr) {
		c.decodeErrors.Inc()
	}
	c.streamsTotal.WithLabelValues(reason, Outcome(err)).Inc()
}

// WriteText writes every registered metric in the Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	if c == nil {
		return nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Outcome maps an error onto an outcome label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var (
		cfgErr     *provider.ConfigError
		valErr     *provider.ValidationError
		apiErr     *provider.APIError
		decErr     *provider.DecodeError
		incomplete *provider.IncompleteStreamError
	)
	switch {
	case errors.As(err, &cfgErr):
		return OutcomeConfig
	case errors.As(err, &valErr):
		return OutcomeValidation
	case errors.As(err, &incomplete):
		return OutcomeIncomplete
	case errors.As(err, &apiErr):
		return OutcomeAPI
	case errors.As(err, &decErr):
		return OutcomeDecode
	default:
		return OutcomeError
	}
}
