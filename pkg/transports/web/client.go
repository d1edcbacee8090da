package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/mcpchat/pkg/errorsx"
)

var (
	errClientClosed   = errors.New("web: connection closed")
	errNoToolProvider = errors.New("no tool provider configured")
)

// client owns one chat socket. All writes go through writeLoop.
type client struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{
		conn:   conn,
		sendCh: make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// enqueue blocks until the frame is queued or the connection ends.
func (c *client) enqueue(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.sendCh <- b:
		return nil
	case <-c.done:
		return errClientClosed
	}
}

func (c *client) writeLoop(logger *slog.Logger) {
	for {
		select {
		case msg := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warn("ws_write_failed", "error", err,
					"reason_code", string(errorsx.ReasonTransportSend))
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
