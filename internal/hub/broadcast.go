package hub

import (
	"encoding/json"
	"errors"

	"whiteboard-relay/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Broadcaster 把消息序列化一次后投递给房间成员。
// 投递是非阻塞的：单个连接失败不影响其他连接，也不会把错误返回给触发操作。
type Broadcaster struct {
	metrics *metrics.Metrics
}

func NewBroadcaster(m *metrics.Metrics) *Broadcaster {
	if m == nil {
		panic("Metrics cannot be nil for Broadcaster")
	}
	return &Broadcaster{metrics: m}
}

// BroadcastAll 发送给房间全部成员。调用方必须持有 room.mu。
func (b *Broadcaster) BroadcastAll(room *Room, msg any) {
	b.BroadcastExcept(room, msg, nil)
}

// BroadcastExcept 发送给除 exclude 以外的全部成员。调用方必须持有 room.mu。
func (b *Broadcaster) BroadcastExcept(room *Room, msg any, exclude *Client) {
	data, ok := b.encode(msg, room.id)
	if !ok {
		return
	}
	for _, m := range room.members {
		if exclude != nil && m.client == exclude {
			continue
		}
		b.deliver(m.client, data, room.id)
	}
}

// SendTo 只发送给单个连接。
func (b *Broadcaster) SendTo(c *Client, msg any) {
	data, ok := b.encode(msg, c.RoomID())
	if !ok {
		return
	}
	b.deliver(c, data, c.RoomID())
}

func (b *Broadcaster) encode(msg any, roomID string) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "component": "broadcaster"}).
			WithError(err).Error("Failed to marshal outbound message")
		return nil, false
	}
	return data, true
}

// deliver 跳过未就绪的连接；发送队列已满的慢连接会被关闭，随后由它自己的关闭流程离开房间。
func (b *Broadcaster) deliver(c *Client, data []byte, roomID string) {
	if !c.Ready() {
		return
	}
	err := c.Send(data)
	if err == nil {
		return
	}
	b.metrics.DroppedSends.Inc()
	if errors.Is(err, ErrSendBufferFull) {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": c.ID(), "component": "broadcaster"}).
			Warn("Client send buffer full, closing slow connection")
		c.Close()
	}
}
