// Package ws provides the server-side websocket transport: the connection
// wrapper, the session registry and the upgrade handler.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Default connection configuration constants.
const (
	defaultWriteTimeout = 5 * time.Second
	writeBufferFrames   = 64
)

// Conn wraps a websocket connection with a single writer goroutine, so
// broadcast workers and the read loop can send concurrently without racing
// on the underlying socket.
type Conn struct {
	sock         *websocket.Conn
	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConn wraps an upgraded websocket connection and starts its writer.
func NewConn(sock *websocket.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		sock:         sock,
		writeCh:      make(chan []byte, writeBufferFrames),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues v for transmission as one JSON text frame.
func (c *Conn) WriteJSON(v any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodeMessage, err)
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// ReadMessage blocks for the next inbound frame.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.sock.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return data, nil
}

// CloseWithReason sends a close control frame carrying reason and then tears
// the connection down. Best effort: the peer may already be gone.
func (c *Conn) CloseWithReason(code int, reason string) error {
	deadline := time.Now().Add(c.writeTimeout)
	_ = c.sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	return c.Close()
}

// Close tears down the connection and stops the writer goroutine.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.sock.Close()
	})
	return err
}

// Done is closed when the connection has been torn down.
func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}
