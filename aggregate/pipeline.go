package aggregate

import (
	"fmt"

	"github.com/i2y/oaicompat/delta"
	"github.com/i2y/oaicompat/provider"
	"github.com/i2y/oaicompat/sse"
)

// Stats counts what a Pipeline has processed.
type Stats struct {
	Frames       int
	Deltas       int
	DecodeErrors int
}

// Pipeline drives one streaming response: raw body chunks go in, snapshots
// come out. The host pushes chunks as the transport delivers them and reads
// the returned snapshots between pushes.
//
// A frame that fails to decode is recorded on the response and skipped.
// A failure on the first frame is fatal instead.
type Pipeline struct {
	opts     *options
	splitter sse.Splitter
	engine   *Engine
	stats    Stats
	fatal    error
}

// NewPipeline returns a Pipeline with a fresh Engine.
func NewPipeline(opts ...Option) *Pipeline {
	o := newOptions(opts)
	return &Pipeline{
		opts:   o,
		engine: &Engine{opts: o, slots: make(map[int]int)},
	}
}

// Push feeds one chunk of the response body and returns the snapshots of
// every fold step it completed. A non-nil error is fatal and sticky.
func (p *Pipeline) Push(chunk []byte) ([]Snapshot, error) {
	if p.fatal != nil {
		return nil, p.fatal
	}
	p.splitter.Push(chunk)
	return p.drain()
}

// Close tells the Pipeline the transport ended, with cause set when it ended
// on an error. Frames left in the buffer are folded first; if the end of the
// stream was never seen the response is marked incomplete.
func (p *Pipeline) Close(cause error) ([]Snapshot, error) {
	if p.fatal != nil {
		return nil, p.fatal
	}
	p.splitter.Close()
	snaps, err := p.drain()
	if err != nil {
		return snaps, err
	}
	p.engine.Close(cause)
	return snaps, nil
}

// Done reports whether the end of the stream has been folded.
func (p *Pipeline) Done() bool {
	return p.engine.Ended()
}

// Engine exposes the running aggregation state.
func (p *Pipeline) Engine() *Engine {
	return p.engine
}

// Response returns the aggregated response, or nil after a fatal error.
func (p *Pipeline) Response() *provider.Response {
	if p.fatal != nil {
		return nil
	}
	return p.engine.Response()
}

// Stats returns the processing counters.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

func (p *Pipeline) drain() ([]Snapshot, error) {
	var snaps []Snapshot
	for {
		f, ok := p.splitter.Next()
		if !ok {
			return snaps, nil
		}
		p.stats.Frames++

		chunk, err := delta.DecodeFrame(f)
		if err != nil {
			if p.stats.Frames == 1 {
				p.fatal = fmt.Errorf("first frame: %w", err)
				return nil, p.fatal
			}
			p.stats.DecodeErrors++
			p.engine.recordError(err)
			p.opts.logger.Warn("skipping malformed frame",
				"frame", p.stats.Frames,
				"event", f.Event,
				"error", err)
			snaps = append(snaps, Snapshot{Errors: []error{err}})
			continue
		}

		p.engine.setMeta(chunk.ID, chunk.Model)
		for _, d := range chunk.Deltas {
			p.stats.Deltas++
			snaps = append(snaps, p.engine.Fold(d))
		}
	}
}
