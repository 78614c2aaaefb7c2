package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
)

// Stream is a lazy, finite sequence of line chunks over a streamed backend
// response. It is scoped to the call that produced it: Close must be called
// when done, and cancellation of the call's context closes the underlying
// connection.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	closed  bool
}

// maxStreamLine bounds a single streamed chunk.
const maxStreamLine = 1 << 20

func newStream(ctx context.Context, resp *http.Response, cancel context.CancelFunc) *Stream {
	s := &Stream{
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
		cancel:  cancel,
	}
	s.scanner.Buffer(make([]byte, 64*1024), maxStreamLine)

	// Closing the body when the context ends releases the connection even
	// if the consumer stops reading.
	go func() {
		<-ctx.Done()
		_ = resp.Body.Close()
	}()

	return s
}

// Recv returns the next chunk. It returns io.EOF when the stream is finished
// and a *TransportError if the connection fails or the call times out.
func (s *Stream) Recv() ([]byte, error) {
	if s.closed {
		return nil, io.EOF
	}
	if s.scanner.Scan() {
		chunk := make([]byte, len(s.scanner.Bytes()))
		copy(chunk, s.scanner.Bytes())
		return chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, &TransportError{Message: "stream read failed", Err: err}
	}
	return nil, io.EOF
}

// Collect reads the remaining chunks and concatenates them.
func (s *Stream) Collect() ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
		buf.Write(chunk)
	}
}

// Close releases the stream's connection. It is safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.body.Close()
	if s.cancel != nil {
		s.cancel()
	}
	return err
}
