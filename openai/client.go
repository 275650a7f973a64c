package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/i2y/oaicompat/delta"
	"github.com/i2y/oaicompat/provider"
)

// maxErrorBody caps how much of a non-2xx body is read into an APIError.
const maxErrorBody = 1 << 20

// HTTPTransport sends a WireRequest with net/http and hands back the response
// body. It adds no headers of its own: Go's default User-Agent is suppressed,
// and the default client does not ask for gzip.
type HTTPTransport struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPTransport returns a transport using client. A nil client gets one
// with transparent compression disabled. A caller-supplied client is used as
// is; if its transport compresses, it will add Accept-Encoding.
func NewHTTPTransport(client *http.Client, logger *slog.Logger) *HTTPTransport {
	if client == nil {
		client = newDefaultClient()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPTransport{client: client, logger: logger}
}

func newDefaultClient() *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	return &http.Client{Transport: t}
}

// RoundTrip POSTs req and returns the body of a 2xx response. Any other
// status is read, closed and returned as *provider.APIError.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *provider.WireRequest) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}
	if _, ok := httpReq.Header["User-Agent"]; !ok {
		// An empty value stops net/http from sending its default.
		httpReq.Header["User-Agent"] = []string{""}
	}

	t.logger.Debug("sending request", "url", req.URL, "stream", req.Stream, "bytes", len(req.Body))

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := parseError(resp.StatusCode, body)
		t.logger.Debug("request failed", "status", resp.StatusCode, "error", apiErr)
		return nil, apiErr
	}

	return resp.Body, nil
}

// parseError builds an APIError from a non-2xx body.
func parseError(statusCode int, body []byte) *provider.APIError {
	if apiErr := delta.DecodeAPIError(body); apiErr != nil {
		apiErr.StatusCode = statusCode
		return apiErr
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &provider.APIError{
		StatusCode: statusCode,
		Message:    msg,
	}
}
