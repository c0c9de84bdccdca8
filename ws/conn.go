// Package ws exposes the server's HTTP and websocket surface.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sparkchat/domain"
)

const closeWriteTimeout = time.Second

// Conn adapts a gorilla websocket to the contract.Conn handle owned by
// a session. Gorilla connections support one concurrent writer only,
// so every write goes through the mutex; the registry may deliver to
// the same handle from several goroutines.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) WriteFrame(frame domain.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(frame)
}

// Close sends a close frame carrying the terminal reason, then tears
// the connection down. Safe to call on an already-closed connection.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	message := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeWriteTimeout))
	return c.ws.Close()
}
