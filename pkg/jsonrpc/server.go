// Package jsonrpc implements a line-delimited JSON-RPC 2.0 server over a
// byte stream pair, typically the stdin/stdout of a child process owned by
// a parent client. Requests are processed strictly sequentially: one frame
// is read, its handler runs to completion, its response is written, and
// only then is the next frame considered.
package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
)

// frameBacklog bounds the queue between the reader goroutine and the
// dispatch loop.
const frameBacklog = 32

// HandlerFunc processes method params and returns a result value or a
// protocol error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, *Error)

// Logger is satisfied by logging.Logger; kept minimal to avoid dependency
// cycles. Diagnostics go through it and never onto the output stream.
type Logger interface {
	Printf(format string, v ...any)
}

// Server drives the read-dispatch-write cycle over one stream pair. The
// dispatch table is fixed at construction and never mutated.
type Server struct {
	reader   *frameReader
	writer   *frameWriter
	handlers map[string]HandlerFunc
	logger   Logger
	quit     chan struct{}
	quitOnce sync.Once
}

// NewServer constructs a server reading frames from r and writing frames
// to w. The handlers map is copied; later mutation by the caller has no
// effect.
func NewServer(r io.Reader, w io.Writer, handlers map[string]HandlerFunc, logger Logger) *Server {
	table := make(map[string]HandlerFunc, len(handlers))
	for method, handler := range handlers {
		table[method] = handler
	}
	return &Server{
		reader:   newFrameReader(r),
		writer:   newFrameWriter(w),
		handlers: table,
		logger:   logger,
		quit:     make(chan struct{}),
	}
}

// Run processes frames until end of input, a completed shutdown request,
// or ctx cancellation. A failure scoped to one request never stops the
// loop; only the input stream breaking is terminal.
func (s *Server) Run(ctx context.Context) error {
	frames := make(chan string, frameBacklog)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			frame, err := s.reader.next()
			if err != nil {
				if err != io.EOF {
					readErr <- err
				}
				return
			}
			select {
			case frames <- frame:
			case <-s.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if s.shuttingDown() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				select {
				case err := <-readErr:
					s.logf("input stream error: %v", err)
					return err
				default:
					return nil
				}
			}
			s.serveFrame(ctx, frame)
		}
	}
}

// Shutdown stops the loop after the in-flight request completes. Frames
// already buffered behind the shutdown request are not dispatched.
func (s *Server) Shutdown() {
	s.quitOnce.Do(func() { close(s.quit) })
}

func (s *Server) shuttingDown() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// Notify writes a server-initiated notification frame. Notifications share
// the output stream and framing with responses but carry no id.
func (s *Server) Notify(method string, params any) error {
	payload, err := json.Marshal(Notification{JSONRPC: Version, Method: method, Params: params})
	if err != nil {
		return err
	}
	return s.writer.writeFrame(payload)
}

func (s *Server) serveFrame(ctx context.Context, frame string) {
	var req Request
	if err := json.Unmarshal([]byte(frame), &req); err != nil {
		s.writeError(nil, CodeParseError, fmt.Sprintf("Parse error: %v", err))
		return
	}
	params := req.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	// A missing method decodes to "" and falls through to not-found.
	handler, ok := s.handlers[req.Method]
	if !ok {
		s.writeError(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
		return
	}
	result, rpcErr := s.invoke(ctx, handler, params)
	if rpcErr != nil {
		s.writeError(req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.writeError(req.ID, CodeInternal, fmt.Sprintf("Internal error: %v", err))
		return
	}
	payload := json.RawMessage(raw)
	s.writeResponse(Response{JSONRPC: Version, ID: req.ID, Result: &payload})
}

// invoke runs one handler, converting a panic into an internal-error
// response so a single bad request cannot take the loop down.
func (s *Server) invoke(ctx context.Context, handler HandlerFunc, params json.RawMessage) (result any, rpcErr *Error) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("handler panic: %v", r)
			result = nil
			rpcErr = Errorf(CodeInternal, "Internal error: %v", r)
		}
	}()
	return handler(ctx, params)
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	s.writeResponse(Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}})
}

func (s *Server) writeResponse(resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logf("marshal response: %v", err)
		return
	}
	if err := s.writer.writeFrame(payload); err != nil {
		s.logf("write response: %v", err)
	}
}

func (s *Server) logf(format string, v ...any) {
	if s.logger != nil {
		s.logger.Printf(format, v...)
	} else {
		log.Printf(format, v...)
	}
}
