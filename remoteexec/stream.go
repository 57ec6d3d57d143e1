// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remoteexec

import (
	"io"
	"sync"
)

// stream is an append-only output buffer. Any number of readers replay
// it from the start; each blocks for more data until the stream is
// closed.
type stream struct {
	mu      sync.Mutex
	changed *sync.Cond
	data    []byte
	closed  bool
	err     error
}

func newStream() *stream {
	s := &stream{}
	s.changed = sync.NewCond(&s.mu)
	return s
}

// append adds p. Appends after close are ignored.
func (s *stream) append(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.data = append(s.data, p...)
	s.changed.Broadcast()
}

// close ends the stream. Readers drain buffered bytes, then see err,
// or io.EOF when err is nil.
func (s *stream) close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	s.changed.Broadcast()
}

func (s *stream) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

func (s *stream) reader() io.ReadCloser {
	return &streamReader{stream: s}
}

type streamReader struct {
	stream *stream
	offset int
	closed bool
}

func (r *streamReader) Read(p []byte) (int, error) {
	s := r.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	for r.offset >= len(s.data) && !s.closed && !r.closed {
		s.changed.Wait()
	}
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	if r.offset < len(s.data) {
		n := copy(p, s.data[r.offset:])
		r.offset += n
		return n, nil
	}
	if s.err != nil {
		return 0, s.err
	}
	return 0, io.EOF
}

// Close releases the reader and wakes a Read blocked on it.
func (r *streamReader) Close() error {
	s := r.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	r.closed = true
	s.changed.Broadcast()
	return nil
}
