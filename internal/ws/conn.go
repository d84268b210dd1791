package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// safeConn serializes writes to a gorilla connection. The library does not
// support concurrent writers, so every outbound frame goes through the
// mutex.
type safeConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newSafeConn(conn *websocket.Conn) *safeConn {
	return &safeConn{conn: conn}
}

func (c *safeConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *safeConn) readMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *safeConn) close() error {
	return c.conn.Close()
}
