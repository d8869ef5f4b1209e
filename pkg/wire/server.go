package wire

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Recorder receives a copy of every request and response on the stream.
type Recorder interface {
	RecordRequest(request json.RawMessage) error
	RecordResponse(response Response) error
}

// Server runs the request/response loop over a single stream.
type Server struct {
	dispatcher *Dispatcher
	logger     *slog.Logger

	// Recorder, when set, observes the session. Recording failures are
	// logged and never interrupt the stream.
	Recorder Recorder
}

// NewServer creates a server around a dispatcher.
func NewServer(d *Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = d.logger
	}
	return &Server{dispatcher: d, logger: logger}
}

// Serve reads one JSON value at a time from r and writes one response line
// per value to w, flushing after each. It returns nil when r is exhausted, the
// context's error once ctx is done, and an error when the stream can no longer
// be read or written. Requests are handled strictly one at a time; a request
// read after ctx is done is not answered.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	done := make(chan struct{})
	defer close(done)
	requests := make(chan decodedRequest)
	go readRequests(json.NewDecoder(r), requests, done)

	for {
		var in decodedRequest
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in = <-requests:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if in.err != nil {
			if errors.Is(in.err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", in.err)
		}
		request := in.request

		s.logger.Debug("request", "raw", string(request))
		if s.Recorder != nil {
			if err := s.Recorder.RecordRequest(request); err != nil {
				s.logger.Warn("record request", "error", err)
			}
		}

		response := s.dispatcher.Dispatch(ctx, request)

		if s.Recorder != nil {
			if err := s.Recorder.RecordResponse(response); err != nil {
				s.logger.Warn("record response", "error", err)
			}
		}
		if err := writeResponse(bw, response); err != nil {
			return err
		}
	}
}

type decodedRequest struct {
	request json.RawMessage
	err     error
}

// readRequests decodes values from dec until a decode error, handing each to
// out. It returns early once done is closed; a read blocked in dec stays
// blocked until the underlying reader returns.
func readRequests(dec *json.Decoder, out chan<- decodedRequest, done <-chan struct{}) {
	for {
		var in decodedRequest
		in.err = dec.Decode(&in.request)
		select {
		case out <- in:
		case <-done:
			return
		}
		if in.err != nil {
			return
		}
	}
}

// encodeResponse renders a response as one line of JSON.
func encodeResponse(response Response) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(response); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeResponse(bw *bufio.Writer, response Response) error {
	line, err := encodeResponse(response)
	if err != nil {
		line, _ = encodeResponse(failResponse())
	}
	if _, err := bw.Write(line); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}
