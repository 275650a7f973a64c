// Package sse splits a server-sent events byte stream into frames.
//
// The Splitter is push based: the host feeds it chunks of any size, split at
// any byte, and pulls complete frames between pushes. The Reader wraps the
// same logic for an io.Reader.
package sse

import (
	"bytes"
	"io"
)

// DoneMarker is the data payload that ends an OpenAI-style stream.
const DoneMarker = "[DONE]"

// Frame is one dispatched SSE event.
type Frame struct {
	Event string
	Data  []byte

	// Done marks the terminal [DONE] frame. Its Data is not JSON.
	Done bool
}

// Splitter is a stateful SSE frame decoder. The zero value is ready to use.
// It buffers at most one unterminated line and one undispatched event.
type Splitter struct {
	line    []byte
	skipLF  bool
	event   string
	data    []byte
	hasData bool

	frames []Frame
	done   bool
	closed bool
}

// Push feeds a chunk of the response body. After the [DONE] frame, or after
// Close, input is ignored.
func (s *Splitter) Push(chunk []byte) {
	for len(chunk) > 0 && !s.done && !s.closed {
		if s.skipLF {
			s.skipLF = false
			if chunk[0] == '\n' {
				chunk = chunk[1:]
				continue
			}
		}

		i := bytes.IndexAny(chunk, "\r\n")
		if i < 0 {
			s.line = append(s.line, chunk...)
			return
		}

		s.line = append(s.line, chunk[:i]...)
		s.skipLF = chunk[i] == '\r'
		chunk = chunk[i+1:]

		s.processLine(s.line)
		s.line = s.line[:0]
	}
}

// Next pops the next complete frame.
func (s *Splitter) Next() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	f := s.frames[0]
	s.frames[0] = Frame{}
	s.frames = s.frames[1:]
	return f, true
}

// Close signals that the transport ended. A trailing line or event that was
// never terminated by a blank line is dispatched.
func (s *Splitter) Close() {
	if s.closed {
		return
	}
	if !s.done {
		if len(s.line) > 0 {
			s.processLine(s.line)
		}
		s.dispatch()
	}
	s.line = nil
	s.closed = true
}

// Done reports whether the [DONE] frame has been seen.
func (s *Splitter) Done() bool {
	return s.done
}

func (s *Splitter) processLine(line []byte) {
	if len(line) == 0 {
		s.dispatch()
		return
	}
	if line[0] == ':' {
		return
	}

	field, value := line, []byte(nil)
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		field, value = line[:i], line[i+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
	}

	switch string(field) {
	case "data":
		if s.hasData {
			s.data = append(s.data, '\n')
		}
		s.data = append(s.data, value...)
		s.hasData = true
	case "event":
		s.event = string(value)
	}
}

func (s *Splitter) dispatch() {
	if !s.hasData {
		s.event = ""
		return
	}

	f := Frame{Event: s.event, Data: s.data}
	s.event, s.data, s.hasData = "", nil, false

	if string(f.Data) == DoneMarker {
		f.Done = true
		s.done = true
		s.line = nil
	}
	s.frames = append(s.frames, f)
}

// Reader pulls frames from an io.Reader.
type Reader struct {
	r   io.Reader
	s   Splitter
	buf []byte
	err error
}

// NewReader returns a Reader that reads r in chunks of up to 4 KiB.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, 4096)}
}

// Next returns the next frame. It returns io.EOF after the [DONE] frame or
// when the underlying reader is exhausted; any other read error is returned
// once the frames buffered before it are drained.
func (r *Reader) Next() (Frame, error) {
	for {
		if f, ok := r.s.Next(); ok {
			return f, nil
		}
		if r.s.Done() {
			return Frame{}, io.EOF
		}
		if r.err != nil {
			return Frame{}, r.err
		}

		n, err := r.r.Read(r.buf)
		if n > 0 {
			r.s.Push(r.buf[:n])
		}
		if err != nil {
			r.s.Close()
			r.err = err
		}
	}
}

// Done reports whether the [DONE] frame has been read.
func (r *Reader) Done() bool {
	return r.s.Done()
}
