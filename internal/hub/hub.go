package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"whiteboard-relay/internal/domain"
	"whiteboard-relay/internal/dto"
	"whiteboard-relay/internal/idgen"
	"whiteboard-relay/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Options 控制 Hub 的协议策略和连接缓冲。
type Options struct {
	AutoCreateRooms bool  // join-room 遇到不存在的房间时自动创建，第一个加入者成为房主
	SendBuffer      int   // 每个连接的发送队列长度
	MaxMessageSize  int64 // 单条入站消息的最大字节数
}

// Stats 是 /api/stats 返回的进程内统计。
type Stats struct {
	Rooms       int   `json:"rooms"`
	Connections int64 `json:"connections"`
}

// Hub 解码每条入站消息并路由到对应房间。
// 没有中心事件循环：消息在发送方连接的 ReadPump 中同步处理，房间状态由房间自己的锁保护。
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	metrics     *metrics.Metrics
	opts        Options

	connections atomic.Int64
	clients     sync.Map // conn id -> *Client
	live        sync.WaitGroup
}

// NewHub 创建 Hub 并把 Registry 的房间变更通知接到镜像上。
func NewHub(registry *Registry, broadcaster *Broadcaster, mirror Mirror, m *metrics.Metrics, opts Options) *Hub {
	if registry == nil {
		panic("Registry cannot be nil for Hub")
	}
	if broadcaster == nil {
		panic("Broadcaster cannot be nil for Hub")
	}
	if m == nil {
		panic("Metrics cannot be nil for Hub")
	}
	if mirror == nil {
		mirror = NoopMirror{}
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	registry.SetMirror(mirror)
	return &Hub{
		registry:    registry,
		broadcaster: broadcaster,
		metrics:     m,
		opts:        opts,
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// Connect 登记一个新连接。
func (h *Hub) Connect(c *Client) {
	h.live.Add(1)
	h.clients.Store(c.ID(), c)
	n := h.connections.Add(1)
	h.metrics.Connections.Set(float64(n))
	logrus.WithField("conn_id", c.ID()).Info("Client connected")
}

// Disconnect 在连接终止时强制离开其所在房间，可重复调用。
func (h *Hub) Disconnect(c *Client) {
	c.leaveOnce.Do(func() {
		if roomID := c.RoomID(); roomID != "" {
			h.leave(c, roomID)
		}
		if _, loaded := h.clients.LoadAndDelete(c.ID()); loaded {
			n := h.connections.Add(-1)
			h.metrics.Connections.Set(float64(n))
			h.live.Done()
		}
		logrus.WithField("conn_id", c.ID()).Info("Client disconnected")
	})
}

// CloseAll 关闭全部连接，用于进程退出。连接随后在各自的 ReadPump 中离开房间。
func (h *Hub) CloseAll() {
	h.clients.Range(func(_, v any) bool {
		v.(*Client).Close()
		return true
	})
}

// WaitDisconnected 等待所有已登记的连接完成 Disconnect，ctx 结束时返回 ctx.Err()。
func (h *Hub) WaitDisconnected(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Stats() Stats {
	return Stats{Rooms: h.registry.Len(), Connections: h.connections.Load()}
}

// HandleMessage 处理一条原始入站消息。无法解码的消息只丢弃这一条，连接继续可用。
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	var msg dto.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		h.metrics.ProtocolErrors.Inc()
		logrus.WithFields(logrus.Fields{"conn_id": c.ID(), "size": len(raw)}).
			WithError(err).Debug("Dropping undecodable message")
		return
	}
	h.metrics.ObserveMessage(msg.Type)

	switch msg.Type {
	case dto.TypeCreateRoom:
		h.handleCreateRoom(c, &msg)
	case dto.TypeCheckRoom:
		h.handleCheckRoom(c, &msg)
	case dto.TypeJoinRoom:
		h.handleJoinRoom(c, &msg)
	case dto.TypeLeaveRoom:
		h.handleLeaveRoom(c, &msg)
	case dto.TypeStrokeStart, dto.TypeStrokeUpdate:
		h.relay(c, &msg, dto.StrokeProgressEvent{
			Type: msg.Type, UserID: msg.UserID, UserName: c.DisplayName(),
			X: msg.X, Y: msg.Y, Color: msg.Color, Size: msg.Size,
		})
	case dto.TypeStrokeEnd:
		h.handleStrokeEnd(c, &msg)
	case dto.TypeCursorMove:
		h.relay(c, &msg, dto.CursorMoveEvent{
			Type: msg.Type, UserID: msg.UserID, UserName: c.DisplayName(),
			X: msg.X, Y: msg.Y, Color: msg.Color,
		})
	case dto.TypeCursorLeave:
		h.relay(c, &msg, dto.CursorLeaveEvent{Type: msg.Type, UserID: msg.UserID, UserName: c.DisplayName()})
	case dto.TypeStrokesSaved:
		h.relay(c, &msg, dto.StrokesSavedEvent{Type: msg.Type, UserID: msg.UserID, Count: msg.Count})
	case dto.TypeClearCanvas:
		h.handleClearCanvas(c, &msg)
	case dto.TypeGetRoomData:
		h.handleGetRoomData(c, &msg)
	case dto.TypeGetRoomInfo:
		h.handleGetRoomInfo(c, &msg)
	case dto.TypePing:
		h.broadcaster.SendTo(c, dto.Pong{Type: dto.TypePong, Timestamp: time.Now().UnixMilli()})
	default:
		logrus.WithFields(logrus.Fields{"conn_id": c.ID(), "type": msg.Type}).Debug("Ignoring unknown message type")
	}
}

// CreateRoom 创建一个空房间并立即安排回收，没人加入的房间在宽限期后消失。
func (h *Hub) CreateRoom(id, ownerName string) (domain.RoomInfo, error) {
	room, err := h.registry.Create(id, ownerName)
	if err != nil {
		return domain.RoomInfo{}, err
	}
	h.registry.ScheduleEviction(id)
	info := room.Info()
	logrus.WithFields(logrus.Fields{"room_id": id, "user_name": ownerName}).Info("Room created")
	return info, nil
}

// RoomSummary 返回房间概要，供 check-room 和 HTTP 查询使用。
func (h *Hub) RoomSummary(id string) (domain.RoomSummary, error) {
	room, ok := h.registry.Get(id)
	if !ok {
		return domain.RoomSummary{}, ErrRoomNotFound
	}
	return room.Summary(), nil
}

func (h *Hub) ListRooms() []domain.RoomSummary {
	rooms := h.registry.List()
	out := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Summary())
	}
	return out
}

// PresenceSnapshots 返回全部房间当前的成员投影。
func (h *Hub) PresenceSnapshots() []domain.Presence {
	rooms := h.registry.List()
	out := make([]domain.Presence, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Presence())
	}
	return out
}

func (h *Hub) handleCreateRoom(c *Client, msg *dto.InboundMessage) {
	id, owner := strings.TrimSpace(msg.RoomID), strings.TrimSpace(msg.OwnerName)
	if id == "" || owner == "" {
		h.broadcaster.SendTo(c, dto.CreateRoomResponse{
			Type: dto.TypeCreateRoomResponse, Error: "roomId and ownerName are required",
		})
		return
	}
	info, err := h.CreateRoom(id, owner)
	if err != nil {
		h.broadcaster.SendTo(c, dto.CreateRoomResponse{Type: dto.TypeCreateRoomResponse, Error: err.Error()})
		return
	}
	h.broadcaster.SendTo(c, dto.CreateRoomResponse{
		Type:    dto.TypeCreateRoomResponse,
		Success: true,
		Room:    &dto.CreatedRoom{ID: info.ID, OwnerName: info.OwnerName},
	})
}

func (h *Hub) handleCheckRoom(c *Client, msg *dto.InboundMessage) {
	resp := dto.CheckRoomResponse{Type: dto.TypeCheckRoomResponse}
	if summary, err := h.RoomSummary(strings.TrimSpace(msg.RoomID)); err == nil {
		resp.Exists = true
		resp.Room = &dto.CheckedRoom{ID: summary.ID, OwnerName: summary.OwnerName, ActiveUsers: summary.ActiveUsers}
	}
	h.broadcaster.SendTo(c, resp)
}

func (h *Hub) handleJoinRoom(c *Client, msg *dto.InboundMessage) {
	id, name := strings.TrimSpace(msg.RoomID), strings.TrimSpace(msg.UserName)
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": c.ID(), "room_id": id, "user_name": name, "operation": "join"})
	if id == "" || name == "" {
		h.joinFailed(c, fmt.Errorf("%w: roomId and userName are required", ErrInvalidMessage))
		return
	}

	presence, err := h.join(c, id, name, msg.UserID)
	if errors.Is(err, ErrRoomNotFound) && h.opts.AutoCreateRooms {
		// 房间恰好在此期间被回收
		presence, err = h.join(c, id, name, msg.UserID)
	}
	if err != nil {
		logCtx.WithError(err).Info("Join rejected")
		h.joinFailed(c, err)
		return
	}
	logCtx.WithField("user_count", presence.MemberCount).Info("Client joined room")
}

// join 先在新房间的锁内完成冲突检查和加入，成功后才离开旧房间。
// 冲突或房间已被回收时连接仍留在原来的房间。
func (h *Hub) join(c *Client, id, name, userID string) (domain.Presence, error) {
	room, err := h.resolveRoom(id, name)
	if err != nil {
		return domain.Presence{}, err
	}
	prev := c.RoomID()
	_, presence, err := room.Join(c, name, userID)
	if err != nil {
		return domain.Presence{}, err
	}
	if prev != "" && prev != id {
		h.leave(c, prev)
	}
	return presence, nil
}

func (h *Hub) resolveRoom(id, joiner string) (*Room, error) {
	if room, ok := h.registry.Get(id); ok {
		return room, nil
	}
	if !h.opts.AutoCreateRooms {
		return nil, ErrRoomNotFound
	}
	room, created := h.registry.GetOrCreate(id, joiner)
	if created {
		logrus.WithFields(logrus.Fields{"room_id": id, "user_name": joiner}).Info("Room auto-created on join")
	}
	return room, nil
}

func (h *Hub) joinFailed(c *Client, err error) {
	h.broadcaster.SendTo(c, dto.RoomSnapshotResponse{Type: dto.TypeJoinRoomResponse, Error: err.Error()})
}

func (h *Hub) handleLeaveRoom(c *Client, msg *dto.InboundMessage) {
	current := c.RoomID()
	if target := strings.TrimSpace(msg.RoomID); target != "" && target != current {
		return
	}
	if current != "" {
		h.leave(c, current)
	}
}

// leave 让连接离开房间；房间变空时安排延迟回收，否则剩余成员已在房间锁内收到 user-disconnected。
func (h *Hub) leave(c *Client, roomID string) {
	room, ok := h.registry.Get(roomID)
	if !ok {
		c.clearRoomIf(roomID)
		return
	}
	presence, left, empty := room.Leave(c)
	if !left {
		return
	}
	if empty {
		h.registry.ScheduleEviction(roomID)
	}
	logrus.WithFields(logrus.Fields{"conn_id": c.ID(), "room_id": roomID, "user_count": presence.MemberCount}).
		Info("Client left room")
}

// memberRoom 解析消息所指的房间，roomId 缺省时使用连接当前所在的房间。
func (h *Hub) memberRoom(c *Client, msg *dto.InboundMessage) (*Room, error) {
	id := strings.TrimSpace(msg.RoomID)
	if id == "" {
		id = c.RoomID()
	}
	if id == "" {
		return nil, ErrNotMember
	}
	room, ok := h.registry.Get(id)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// relay 把不持久化的事件转发给除发送者以外的成员。
func (h *Hub) relay(c *Client, msg *dto.InboundMessage, event any) {
	room, err := h.memberRoom(c, msg)
	if err == nil {
		err = room.withMember(c, func(*member) {
			h.broadcaster.BroadcastExcept(room, event, c)
		})
	}
	if err != nil {
		h.replyError(c, msg.Type, err)
	}
}

// handleStrokeEnd 转发结束的笔画；携带完整 stroke 时先追加到 stroke log。
func (h *Hub) handleStrokeEnd(c *Client, msg *dto.InboundMessage) {
	if msg.Stroke == nil {
		h.relay(c, msg, dto.StrokeEndEvent{Type: dto.TypeStrokeEnd, UserID: msg.UserID, UserName: c.DisplayName()})
		return
	}
	stroke, err := msg.Stroke.Normalize()
	if err != nil {
		h.replyError(c, msg.Type, fmt.Errorf("%w: %v", ErrInvalidMessage, err))
		return
	}
	if stroke.ID == "" {
		stroke.ID = idgen.NewULID()
	}
	if stroke.UserID == "" {
		stroke.UserID = msg.UserID
	}
	stroke.Timestamp = time.Now().UnixMilli()

	room, err := h.memberRoom(c, msg)
	var stored domain.Stroke
	if err == nil {
		err = room.withMember(c, func(m *member) {
			stroke.AuthorName = m.displayName
			stored = room.appendStrokeLocked(stroke)
			h.broadcaster.BroadcastExcept(room, dto.StrokeEndEvent{
				Type: dto.TypeStrokeEnd, UserID: stored.UserID, UserName: m.displayName, Stroke: &stored,
			}, c)
		})
	}
	if err != nil {
		h.replyError(c, msg.Type, err)
	}
}

// handleClearCanvas 只允许以房主名称加入的成员清空画布。
func (h *Hub) handleClearCanvas(c *Client, msg *dto.InboundMessage) {
	room, err := h.memberRoom(c, msg)
	if err == nil {
		var notOwner bool
		err = room.withMember(c, func(m *member) {
			if m.displayName != room.ownerName {
				notOwner = true
				return
			}
			room.clearLocked(m.displayName)
		})
		if err == nil && notOwner {
			err = ErrNotOwner
		}
	}
	if err != nil {
		h.replyError(c, msg.Type, err)
		return
	}
	logrus.WithFields(logrus.Fields{"room_id": room.ID(), "conn_id": c.ID()}).Info("Canvas cleared")
}

// handleGetRoomData 在房间锁内生成快照并入队，保证它与房间广播的顺序一致。
func (h *Hub) handleGetRoomData(c *Client, msg *dto.InboundMessage) {
	room, err := h.memberRoom(c, msg)
	if err == nil {
		err = room.withLock(func() {
			snap := room.snapshotLocked()
			h.broadcaster.SendTo(c, dto.RoomSnapshotResponse{Type: dto.TypeRoomData, Success: true, Room: &snap})
		})
	}
	if err != nil {
		h.broadcaster.SendTo(c, dto.RoomSnapshotResponse{Type: dto.TypeRoomData, Error: err.Error()})
	}
}

func (h *Hub) handleGetRoomInfo(c *Client, msg *dto.InboundMessage) {
	room, err := h.memberRoom(c, msg)
	if err == nil {
		err = room.withLock(func() {
			h.broadcaster.SendTo(c, dto.RoomInfoResponse{
				Type:        dto.TypeRoomInfo,
				UserCount:   len(room.members),
				ActiveUsers: append([]string{}, room.activeUsers...),
			})
		})
	}
	if err != nil {
		h.replyError(c, msg.Type, err)
	}
}

func (h *Hub) replyError(c *Client, operation string, err error) {
	logrus.WithFields(logrus.Fields{"conn_id": c.ID(), "room_id": c.RoomID(), "operation": operation}).
		WithError(err).Debug("Operation rejected")
	h.broadcaster.SendTo(c, dto.NewError(operation, err.Error()))
}
