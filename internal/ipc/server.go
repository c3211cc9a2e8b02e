package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// HandlerFunc serves one method. A returned *JSONRPCError is sent as is;
// any other error becomes an internal error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Server dispatches requests read from every accepted connection and
// broadcasts notifications to all of them.
type Server struct {
	logger *zap.Logger

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	conns    map[*serverConn]struct{}
	listener net.Listener
	closed   bool

	wg sync.WaitGroup
}

type serverConn struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[*serverConn]struct{}),
	}
}

// Handle registers fn for method, replacing any earlier handler.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Listen opens a unix socket at path, removing a stale socket file left
// by a previous run.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	return ln, nil
}

// Serve accepts connections until ctx is done or Close is called. It
// returns nil on an orderly shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("server is closed")
	}
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.Debug("ipc server listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		sc := &serverConn{conn: conn, reader: bufio.NewReader(conn)}
		if !s.track(sc) {
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(sc)
			s.readLoop(ctx, sc)
		}()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(sc *serverConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[sc] = struct{}{}
	return true
}

func (s *Server) untrack(sc *serverConn) {
	s.mu.Lock()
	delete(s.conns, sc)
	s.mu.Unlock()
	sc.conn.Close()
}

// readLoop serves one connection. Requests on a connection are handled in
// order.
func (s *Server) readLoop(ctx context.Context, sc *serverConn) {
	s.logger.Debug("ipc client connected")
	defer s.logger.Debug("ipc client disconnected")

	for {
		line, err := sc.reader.ReadBytes('\n')
		if len(line) > 0 {
			s.dispatch(ctx, sc, line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				s.logger.Debug("ipc read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sc *serverConn, line []byte) {
	var req incomingRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Debug("ipc received malformed line", zap.Error(err))
		s.reply(sc, nil, nil, &JSONRPCError{Code: CodeParseError, Message: "parse error"})
		return
	}
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		if req.ID != nil {
			s.reply(sc, req.ID, nil, &JSONRPCError{Code: CodeInvalidRequest, Message: "invalid request"})
		}
		return
	}

	s.mu.Lock()
	handler, ok := s.handlers[req.Method]
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("ipc method not found", zap.String("method", req.Method))
		if req.ID != nil {
			s.reply(sc, req.ID, nil, &JSONRPCError{
				Code:    CodeMethodNotFound,
				Message: fmt.Sprintf("method not found: %s", req.Method),
			})
		}
		return
	}

	s.logger.Debug("ipc handling request", zap.String("method", req.Method), zap.Bool("notification", req.ID == nil))
	result, err := handler(ctx, req.Params)
	if req.ID == nil {
		if err != nil {
			s.logger.Debug("ipc notification handler failed", zap.String("method", req.Method), zap.Error(err))
		}
		return
	}
	if err != nil {
		var rpcErr *JSONRPCError
		if !errors.As(err, &rpcErr) {
			rpcErr = &JSONRPCError{Code: CodeInternalError, Message: err.Error()}
		}
		s.reply(sc, req.ID, nil, rpcErr)
		return
	}
	s.reply(sc, req.ID, result, nil)
}

func (s *Server) reply(sc *serverConn, id *int, result interface{}, rpcErr *JSONRPCError) {
	resp := JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Error: rpcErr}
	if rpcErr == nil {
		data, err := json.Marshal(result)
		if err != nil {
			resp.Error = &JSONRPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to marshal result: %v", err)}
		} else {
			resp.Result = data
		}
	}
	if err := sc.write(resp); err != nil {
		s.logger.Debug("ipc failed to write response", zap.Error(err))
	}
}

// Notify broadcasts a notification to every connected client.
func (s *Server) Notify(method string, params interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal notification params: %w", err)
	}
	notif := JSONRPCNotification{JSONRPC: JSONRPCVersion, Method: method, Params: data}

	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	s.logger.Debug("ipc broadcasting notification", zap.String("method", method), zap.Int("clients", len(conns)))
	for _, sc := range conns {
		if err := sc.write(notif); err != nil {
			s.logger.Debug("ipc failed to deliver notification", zap.Error(err))
		}
	}
	return nil
}

func (sc *serverConn) write(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, err = sc.conn.Write(data)
	return err
}

// Close stops accepting, disconnects every client and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	for sc := range s.conns {
		sc.conn.Close()
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}
