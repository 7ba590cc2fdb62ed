// Package wsconn adapts a server-accepted WebSocket connection to the
// message-chunk abstraction the gateway's ingress state machine and duplex
// pipe are built around: whole messages rather than a byte stream, since
// VLESS framing needs one response header glued to exactly one outbound
// chunk.
package wsconn

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle state of a Conn, modeled after the WebSocket
// readyState values (CONNECTING/OPEN/CLOSING/CLOSED) so "safe close" can be
// expressed as a simple state check.
type State int

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn wraps a *websocket.Conn accepted on the server side, exposing
// whole-message reads/writes and a safe-close routine that never raises
// regardless of the connection's current state.
type Conn struct {
	ws *websocket.Conn

	mu    sync.Mutex
	state State
}

// Upgrade accepts the HTTP upgrade request, optionally echoing
// subprotocol as the negotiated Sec-WebSocket-Protocol, and returns the
// resulting Conn.
func Upgrade(w http.ResponseWriter, r *http.Request, subprotocol string) (*Conn, error) {
	var header http.Header
	if subprotocol != "" {
		header = http.Header{"Sec-WebSocket-Protocol": []string{subprotocol}}
	}
	ws, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		return nil, fmt.Errorf("wsconn: upgrade failed: %w", err)
	}
	c := &Conn{ws: ws, state: StateOpen}
	ws.SetCloseHandler(func(code int, text string) error {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		return nil
	})
	return c, nil
}

// ReadChunk blocks for the next binary message and returns its payload.
// Text messages are treated as protocol errors; control frames are handled
// by the underlying gorilla connection and never returned here.
func (c *Conn) ReadChunk() ([]byte, error) {
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if msgType != websocket.BinaryMessage {
		return nil, errors.New("wsconn: received non-binary message")
	}
	return data, nil
}

// WriteChunk sends data as a single binary message. It fails fast if the
// connection is not OPEN, per the duplex pipe's "abort if not OPEN"
// contract.
func (c *Conn) WriteChunk(data []byte) error {
	if c.State() != StateOpen {
		return fmt.Errorf("wsconn: write on non-open connection")
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CloseSafely closes the connection if it is OPEN or CLOSING, swallowing
// any error from the close handshake itself. Calling it on an already
// CLOSED connection is a no-op. This matches property P8: the close
// routine never raises regardless of state.
func (c *Conn) CloseSafely() {
	c.mu.Lock()
	state := c.state
	if state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		slog.Debug("wsconn: close control frame failed", "err", err)
	}
	if err := c.ws.Close(); err != nil {
		slog.Debug("wsconn: close failed", "err", err)
	}

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}
