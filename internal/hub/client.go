package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client 代表一个 WebSocket 连接。
// 它只负责读写字节和记录当前所在的房间，业务逻辑全部交给 Hub。
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn // 测试中可以为 nil

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	leaveOnce sync.Once

	maxMessageSize int64

	mu          sync.RWMutex
	roomID      string
	displayName string
	userID      string
}

// NewClient 为一个已升级的连接创建 Client，缓冲区大小取自 Hub 的配置。
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	if hub == nil {
		panic("Hub cannot be nil for Client")
	}
	return &Client{
		id:             uuid.NewString(),
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, hub.opts.SendBuffer),
		done:           make(chan struct{}),
		maxMessageSize: hub.opts.MaxMessageSize,
	}
}

func (c *Client) ID() string { return c.id }

// RoomID 返回当前所在房间，未加入任何房间时为空字符串。
func (c *Client) RoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Client) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayName
}

func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) setRoom(roomID, displayName, userID string) {
	c.mu.Lock()
	c.roomID, c.displayName, c.userID = roomID, displayName, userID
	c.mu.Unlock()
}

// clearRoomIf 仅当连接仍关联在 roomID 时才清除关联，避免覆盖已经切换到的新房间。
func (c *Client) clearRoomIf(roomID string) {
	c.mu.Lock()
	if c.roomID == roomID {
		c.roomID, c.displayName, c.userID = "", "", ""
	}
	c.mu.Unlock()
}

// Ready 报告连接是否仍可发送。
func (c *Client) Ready() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Send 非阻塞地把消息放入发送队列。
// send 通道从不关闭，连接关闭通过 done 通知 WritePump。
func (c *Client) Send(message []byte) error {
	if !c.Ready() {
		return ErrConnClosed
	}
	select {
	case c.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 通知连接关闭，可重复调用，可以在持有房间锁时调用。
// 这里只关闭 done，底层 socket 由 WritePump 退出时关闭，随后 ReadPump 读取失败并离开房间。
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"conn_id": c.id, "room_id": c.RoomID()})
}

// ReadPump 读取 WebSocket 消息并同步交给 Hub 处理，保证同一连接上的消息按序生效。
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
		c.logCtx().Debug("readPump exited")
	}()

	if c.maxMessageSize > 0 {
		c.conn.SetReadLimit(c.maxMessageSize)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logCtx().Debug("WebSocket connection closed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logCtx().Debugf("Ignoring non-text message type: %d", messageType)
			continue
		}
		c.hub.HandleMessage(c, message)
	}
}

// WritePump 把发送队列中的消息写入 WebSocket，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
		c.logCtx().Debug("writePump exited")
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Debug("Failed to send ping message")
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
