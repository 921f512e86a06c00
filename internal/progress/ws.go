package progress

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldhand/fieldhand/pkg/models"
)

const wsWriteWait = 10 * time.Second

// WSChannel adapts a websocket connection to the hub's Channel interface.
// Events are written as JSON text frames. Writes are serialized: the hub's
// emit path and the heartbeat goroutine may both call Send.
type WSChannel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSChannel wraps an upgraded websocket connection.
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

// Send implements Channel.
func (c *WSChannel) Send(event models.ProgressEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

// Close closes the underlying connection.
func (c *WSChannel) Close() error {
	return c.conn.Close()
}
