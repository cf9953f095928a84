package serial

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketPort reads the debug UART through a serial-to-WebSocket bridge.
// Text and binary messages are both treated as raw UART bytes.
type WebSocketPort struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

// OpenWebSocket dials a ws:// or wss:// bridge
func OpenWebSocket(rawURL string) (Port, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketPort{conn: conn}, nil
}

// Read returns buffered message bytes, fetching the next message when empty.
// A normal close from the bridge reads as io.EOF.
func (p *WebSocketPort) Read(b []byte) (int, error) {
	if p.closed {
		return 0, ErrConnectionClosed
	}

	if p.bufOffset < len(p.buf) {
		n := copy(b, p.buf[p.bufOffset:])
		p.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			p.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}
		if len(data) == 0 {
			continue
		}

		p.buf = data
		n := copy(b, p.buf)
		p.bufOffset = n
		return n, nil
	}
}

// Write sends b as one binary message
func (p *WebSocketPort) Write(b []byte) (int, error) {
	if err := p.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close closes the connection
func (p *WebSocketPort) Close() error {
	return p.conn.Close()
}

// Flush has nothing to do; every Write is one message
func (p *WebSocketPort) Flush() error {
	return nil
}
