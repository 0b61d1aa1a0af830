// Package rpc serves the ledger over a line-delimited JSON protocol: one
// request object per input line, one response object per output line.
//
//	{"method": "get_phase_status", "params": {"phase": 1}}
//
// A bad line gets an error response and the loop moves on to the next one.
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/imkarma/taskledger/internal/metrics"
	"github.com/imkarma/taskledger/internal/store"
)

const maxLineSize = 1024 * 1024

// Server dispatches requests to the ledger.
type Server struct {
	store      *store.Store
	metrics    *metrics.Metrics
	log        *slog.Logger
	inboxLimit int
	handlers   map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, params []byte) (any, error)

// Option customizes a Server.
type Option func(*Server)

// WithMetrics records request counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithInboxLimit bounds get_messages results.
func WithInboxLimit(n int) Option {
	return func(s *Server) { s.inboxLimit = n }
}

// NewServer creates a server backed by st.
func NewServer(st *store.Store, opts ...Option) *Server {
	s := &Server{
		store:      st,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		inboxLimit: store.DefaultInboxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handlers = s.routes()
	return s
}

// Methods returns the names of the supported methods.
func (s *Server) Methods() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}

// Serve reads requests from r until EOF or ctx is done, writing each
// response to w as soon as it is ready. Blank lines are skipped. A line
// longer than maxLineSize is discarded with a "request too large" response.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	in := bufio.NewReaderSize(r, 64*1024)
	out := bufio.NewWriter(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, tooLong, readErr := readLine(in)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read request: %w", readErr)
		}

		var resp any
		if tooLong {
			s.metrics.Reject("too_large")
			s.log.Warn("request too large", "limit", maxLineSize)
			resp = errorf("request too large")
		} else if line := bytes.TrimSpace(raw); len(line) > 0 {
			resp = s.Handle(ctx, line)
		}
		if resp != nil {
			if err := writeLine(out, resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
		if readErr != nil {
			return nil
		}
	}
}

// readLine returns the next line without its newline. When the line exceeds
// maxLineSize the rest of it is consumed and tooLong is set.
func readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		var chunk []byte
		chunk, err = r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize+1 {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if !tooLong {
			line = bytes.TrimSuffix(line, []byte("\n"))
			tooLong = len(line) > maxLineSize
		}
		if tooLong {
			line = nil
		}
		return line, tooLong, err
	}
}

func writeLine(w *bufio.Writer, resp any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(errorResponse{Status: "error", Message: "encode response: " + err.Error()})
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.Flush()
}

type errorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func errorf(format string, args ...any) errorResponse {
	return errorResponse{Status: "error", Message: fmt.Sprintf(format, args...)}
}

// Handle processes a single request line and returns the response value.
func (s *Server) Handle(ctx context.Context, line []byte) any {
	if !gjson.ValidBytes(line) {
		s.metrics.Reject("invalid_json")
		return errorf("invalid JSON")
	}
	req := gjson.ParseBytes(line)
	if !req.IsObject() {
		s.metrics.Reject("not_object")
		return errorf("invalid request: expected a JSON object")
	}

	method := req.Get("method").String()
	h, ok := s.handlers[method]
	if !ok {
		s.metrics.Reject("unknown_method")
		return errorf("unknown method: %s", method)
	}

	params := []byte("{}")
	if p := req.Get("params"); p.Exists() && p.Type != gjson.Null {
		params = []byte(p.Raw)
	}

	start := time.Now()
	result, err := s.call(ctx, h, params)
	s.metrics.Observe(method, err == nil, time.Since(start))
	if err != nil {
		s.log.Warn("request failed", "method", method, "err", err)
		return errorResponse{
			Status:    "error",
			Message:   err.Error(),
			Retryable: store.IsRetryable(err),
		}
	}
	return result
}

// call runs h, turning a panic into an error so one request cannot take
// the loop down.
func (s *Server) call(ctx context.Context, h handlerFunc, params []byte) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return h(ctx, params)
}

// decode unmarshals params into v, rejecting unknown fields.
func decode(params []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// isDuplicate reports whether err is the strict-create conflict.
func isDuplicate(err error) bool {
	return errors.Is(err, store.ErrDuplicateTask)
}
