package openai

import (
	"errors"
	"io"
	"iter"

	"github.com/i2y/oaicompat/aggregate"
	"github.com/i2y/oaicompat/provider"
)

// ErrStreamClosed is the cause recorded when the caller closes a Stream
// before it ended.
var ErrStreamClosed = errors.New("stream closed by caller")

const readBufferSize = 4096

// Stream emits one snapshot per fold step of a streaming response. It
// implements provider.ResponseStream.
//
// A Stream is not safe for concurrent use; the caller pulls snapshots and the
// Stream reads from the body only when it has none buffered.
type Stream struct {
	body     io.ReadCloser
	pipeline *aggregate.Pipeline
	buf      []byte

	pending []aggregate.Snapshot
	snap    aggregate.Snapshot
	current *provider.StreamChunk

	err    error
	done   bool
	onDone func(resp *provider.Response, err error)
}

func newStream(body io.ReadCloser, pipeline *aggregate.Pipeline, onDone func(*provider.Response, error)) *Stream {
	return &Stream{
		body:     body,
		pipeline: pipeline,
		buf:      make([]byte, readBufferSize),
		onDone:   onDone,
	}
}

// Next advances to the next snapshot. It returns false once the stream has
// ended, failed, or been closed.
func (s *Stream) Next() bool {
	for len(s.pending) == 0 {
		if s.done {
			return false
		}
		s.fill()
	}
	s.snap = s.pending[0]
	s.pending = s.pending[1:]
	s.current = toChunk(s.snap)
	return true
}

// Snapshot returns the snapshot Next advanced to.
func (s *Stream) Snapshot() aggregate.Snapshot {
	return s.snap
}

// Current returns the current snapshot in the provider chunk shape.
func (s *Stream) Current() *provider.StreamChunk {
	return s.current
}

// Snapshots returns an iterator over the remaining snapshots.
func (s *Stream) Snapshots() iter.Seq[aggregate.Snapshot] {
	return func(yield func(aggregate.Snapshot) bool) {
		for s.Next() {
			if !yield(s.snap) {
				return
			}
		}
	}
}

// Err returns the error that stopped the stream: a fatal decode error, or
// after the end the response's terminal error such as
// *provider.IncompleteStreamError.
func (s *Stream) Err() error {
	if s.err != nil {
		return s.err
	}
	if s.done {
		if resp := s.pipeline.Response(); resp != nil {
			return resp.Err
		}
	}
	return nil
}

// Accumulated returns the response aggregated so far. It is nil after a
// fatal error.
func (s *Stream) Accumulated() *provider.Response {
	return s.pipeline.Response()
}

// Done reports whether the stream has ended. Accumulated no longer changes
// after that.
func (s *Stream) Done() bool {
	return s.done
}

// Stats returns the frame and delta counters.
func (s *Stream) Stats() aggregate.Stats {
	return s.pipeline.Stats()
}

// Close releases the response body. Closing before the end marks the
// response incomplete with ErrStreamClosed as the cause.
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	if _, err := s.pipeline.Close(ErrStreamClosed); err != nil {
		s.err = err
	}
	s.pending = nil
	return s.finish()
}

// fill reads one chunk of the body into the pipeline.
func (s *Stream) fill() {
	n, readErr := s.body.Read(s.buf)
	if n > 0 {
		snaps, err := s.pipeline.Push(s.buf[:n])
		s.pending = append(s.pending, snaps...)
		if err != nil {
			s.err = err
			_ = s.finish()
			return
		}
		if s.pipeline.Done() {
			_ = s.finish()
			return
		}
	}
	if readErr == nil {
		return
	}

	var cause error
	if !errors.Is(readErr, io.EOF) {
		cause = readErr
	}
	snaps, err := s.pipeline.Close(cause)
	s.pending = append(s.pending, snaps...)
	if err != nil {
		s.err = err
	}
	_ = s.finish()
}

func (s *Stream) finish() error {
	s.done = true
	err := s.body.Close()
	if s.onDone != nil {
		s.onDone(s.pipeline.Response(), s.err)
		s.onDone = nil
	}
	return err
}

func toChunk(snap aggregate.Snapshot) *provider.StreamChunk {
	return &provider.StreamChunk{
		Delta:         snap.TextDelta,
		ToolCallDelta: snap.ToolCallDelta,
		ToolCalls:     snap.Finalized,
		FinishReason:  snap.FinishReason,
	}
}
