// Package replay feeds recorded SSE responses back through the adapter, for
// tests and for inspecting captures from real endpoints.
package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/i2y/oaicompat/aggregate"
	"github.com/i2y/oaicompat/provider"
)

// Capture is one recorded response body.
type Capture struct {
	Name string
	Data []byte
}

// Glob loads every file in fsys matching pattern. Patterns use doublestar
// syntax, so "**/*.sse" reaches into subdirectories. Captures come back in
// lexical order of their names.
func Glob(fsys fs.FS, pattern string) ([]Capture, error) {
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("matching %q: %w", pattern, err)
	}

	captures := make([]Capture, 0, len(matches))
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading capture %s: %w", name, err)
		}
		captures = append(captures, Capture{Name: name, Data: data})
	}
	return captures, nil
}

// Load is Glob over the directory dir.
func Load(dir, pattern string) ([]Capture, error) {
	return Glob(os.DirFS(dir), pattern)
}

// Run aggregates data delivered in chunks of chunkSize bytes (the whole body
// at once when chunkSize <= 0). The error is fatal; a partial response
// carries its terminal error in Response.Err instead.
func Run(data []byte, chunkSize int, opts ...aggregate.Option) (*provider.Response, aggregate.Stats, error) {
	p := aggregate.NewPipeline(opts...)
	for _, chunk := range chunks(data, chunkSize) {
		if _, err := p.Push(chunk); err != nil {
			return nil, p.Stats(), err
		}
		if p.Done() {
			break
		}
	}
	if _, err := p.Close(nil); err != nil {
		return nil, p.Stats(), err
	}
	return p.Response(), p.Stats(), nil
}

func chunks(data []byte, size int) [][]byte {
	if size <= 0 || size >= len(data) {
		return [][]byte{data}
	}
	out := make([][]byte, 0, len(data)/size+1)
	for len(data) > 0 {
		n := min(size, len(data))
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

// Transport serves Data as the response body of every request, ChunkSize
// bytes per Read. It records the requests it receives.
type Transport struct {
	Data      []byte
	ChunkSize int

	mu       sync.Mutex
	requests []*provider.WireRequest
}

// RoundTrip implements provider.Transport.
func (t *Transport) RoundTrip(ctx context.Context, req *provider.WireRequest) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()
	return &chunkReader{r: bytes.NewReader(t.Data), size: t.ChunkSize}, nil
}

// Requests returns the requests received so far.
func (t *Transport) Requests() []*provider.WireRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*provider.WireRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

type chunkReader struct {
	r    *bytes.Reader
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.size > 0 && len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}

func (c *chunkReader) Close() error {
	return nil
}
