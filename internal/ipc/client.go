package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrClosed is returned by calls on a closed client or after the daemon
// hung up.
var ErrClosed = errors.New("ipc connection closed")

// Client is a connection to the daemon. Calls may be issued concurrently;
// responses are routed back by request id.
type Client struct {
	conn   net.Conn
	logger *zap.Logger

	requestID int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int]chan *JSONRPCResponse
	closed  bool

	notificationCh chan *JSONRPCNotification
	done           chan struct{}
}

// Dial connects to the daemon socket at path.
func Dial(ctx context.Context, path string, logger *zap.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cmdk daemon at %s: %w", path, err)
	}
	return NewClient(conn, logger), nil
}

// NewClient wraps an established connection and starts reading from it.
func NewClient(conn net.Conn, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		conn:           conn,
		logger:         logger,
		pending:        make(map[int]chan *JSONRPCResponse),
		notificationCh: make(chan *JSONRPCNotification, 100),
		done:           make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.notificationCh)
		close(c.done)
	}()

	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			c.route(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("ipc client read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) route(line []byte) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		c.logger.Debug("ipc client received malformed line, skipping")
		return
	}

	_, hasID := msg["id"]
	_, hasMethod := msg["method"]

	switch {
	case hasID && !hasMethod:
		var resp JSONRPCResponse
		if err := json.Unmarshal(line, &resp); err != nil || resp.ID == nil {
			c.logger.Debug("ipc client failed to parse response", zap.Error(err))
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[*resp.ID]
		delete(c.pending, *resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	case hasMethod && !hasID:
		var notif JSONRPCNotification
		if err := json.Unmarshal(line, &notif); err != nil {
			c.logger.Debug("ipc client failed to parse notification", zap.Error(err))
			return
		}
		select {
		case c.notificationCh <- &notif:
		default:
			c.logger.Debug("ipc client dropped notification", zap.String("method", notif.Method))
		}
	}
}

func (c *Client) nextRequestID() int {
	return int(atomic.AddInt64(&c.requestID, 1))
}

// Call sends method with params and decodes the result into result, which
// may be nil when the caller does not need it.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	id := c.nextRequestID()
	ch := make(chan *JSONRPCResponse, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(JSONRPCRequest{JSONRPC: JSONRPCVersion, ID: id, Method: method, Params: params}); err != nil {
		c.forget(id)
		return fmt.Errorf("failed to send %s request: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", method, err)
		}
		return nil
	}
}

// Notify sends a notification; no response is expected.
func (c *Client) Notify(method string, params interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal notification params: %w", err)
	}
	return c.send(JSONRPCNotification{JSONRPC: JSONRPCVersion, Method: method, Params: data})
}

func (c *Client) send(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.conn.Write(data)
	return err
}

func (c *Client) forget(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Notifications delivers daemon broadcasts. The channel is closed when the
// connection ends.
func (c *Client) Notifications() <-chan *JSONRPCNotification {
	return c.notificationCh
}

// Close hangs up and waits for the reader to exit.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
