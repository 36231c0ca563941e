package stream

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
	pongTimeout             = 60 * time.Second
	pingInterval            = 30 * time.Second
)

// Conn is a raw bidirectional connection to the event stream. It carries no
// protocol knowledge beyond framing: read bytes, write JSON, close.
type Conn interface {
	// ReadMessage blocks until the next inbound frame or a read error.
	ReadMessage() ([]byte, error)

	// WriteJSON serializes v and writes it as a single frame.
	WriteJSON(v any) error

	// Close closes the underlying socket. Safe to call multiple times.
	Close() error
}

// Dialer opens connections. The controller depends on this interface so the
// state machine is testable without a real socket.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials over WebSocket with keepalive pings.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the opening handshake. Zero means the default.
	HandshakeTimeout time.Duration
}

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	conn := &wsConn{
		ws:   ws,
		done: make(chan struct{}),
	}

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))

	go conn.pingLoop()

	return conn, nil
}

// wsConn wraps a gorilla websocket connection. The write mutex serializes all
// writes (pings, handshake, application sends) since gorilla connections
// support only one concurrent writer.
type wsConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// pingLoop keeps the connection alive until it is closed. A failed ping write
// means the socket is dead; the read loop will observe the error and drive
// the reconnect path.
func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
