package chat

import (
	"sync"
	"time"

	"CMProject/logger"

	"github.com/gorilla/websocket"
)

// Client represents one live bidirectional channel owned by a user.
// One reader goroutine and one writer goroutine per connection; all
// pushes go through the buffered Send queue so a slow or dead peer
// can never stall the party that triggered the push.
type Client struct {
	ConnID string          // Unique connection ID (unique within the local gateway)
	UserID string          // User ID (determined after handshake auth)
	WS     *websocket.Conn // WebSocket connection object
	Send   chan []byte     // Outbound queue (consumed by a single writer goroutine)

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new client connection object.
func NewClient(connID, userID string, ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Client{
		ConnID: connID,
		UserID: userID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue 非阻塞入队；队列满直接丢弃（慢客户端策略：跳过）
func (c *Client) Enqueue(payload []byte) bool {
	if c == nil || len(payload) == 0 {
		return false
	}
	select {
	case <-c.done:
		return false
	case c.Send <- payload:
		return true
	default:
		logger.Warnf("[Client] send queue full, drop frame conn=%s user=%s", c.ConnID, c.UserID)
		return false
	}
}

// WriteLoop drains the send queue onto the socket. Runs until Close
// or a write error; owns the socket teardown on exit.
func (c *Client) WriteLoop() {
	defer closeQuiet(c.WS)
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.Send:
			if err := writeText(c.WS, payload, 5*time.Second); err != nil {
				logger.Infof("[Client] write failed conn=%s user=%s err=%v", c.ConnID, c.UserID, err)
				return
			}
		}
	}
}

// Close 幂等；唤醒写协程并关闭底层连接
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		closeQuiet(c.WS)
	})
}

func writeText(conn *websocket.Conn, data []byte, deadline time.Duration) error {
	if conn == nil {
		return websocket.ErrCloseSent
	}
	if err := conn.SetWriteDeadline(time.Now().Add(deadline)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
