package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mavelar/chainchess/internal/obslog"
	"github.com/mavelar/chainchess/pkg/wire"
)

const (
	outboxSize   = 16
	writeTimeout = 3 * time.Second
)

// client is one attached socket. Outbound pushes go through a buffered
// channel drained by a single writer goroutine; a client that cannot keep up
// has its pushes dropped rather than blocking the room.
type client struct {
	conn *websocket.Conn

	out       chan *wire.ServerMessage
	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:   conn,
		out:    make(chan *wire.ServerMessage, outboxSize),
		closed: make(chan struct{}),
	}
}

// Send implements room.Conn. Never blocks.
func (c *client) Send(msg *wire.ServerMessage) {
	select {
	case c.out <- msg:
	case <-c.closed:
	default:
		obslog.L().Debug("ws_push_dropped", zap.String("type", msg.Type))
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// writeLoop is the only goroutine that writes to the socket.
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case msg := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, msg)
			cancel()
			if err != nil {
				c.close()
				return
			}
		}
	}
}
