package hub

import "whiteboard-relay/internal/domain"

// Mirror 接收房间状态变更的带外通知。
// Room 和 Registry 在持锁期间调用它，同一房间的通知顺序与内存中的操作顺序一致。
// 实现必须是非阻塞的，不能回调 Hub，失败只能记录日志，不能回滚内存状态。
type Mirror interface {
	RoomCreated(info domain.RoomInfo)
	PresenceChanged(p domain.Presence)
	StrokeCommitted(roomID string, s domain.Stroke)
	StrokesCleared(roomID string, version uint64)
	RoomEvicted(roomID string, version uint64)
}

// NoopMirror 在未启用镜像时使用。
type NoopMirror struct{}

func (NoopMirror) RoomCreated(domain.RoomInfo) {}
func (NoopMirror) PresenceChanged(domain.Presence) {}
func (NoopMirror) StrokeCommitted(string, domain.Stroke) {}
func (NoopMirror) StrokesCleared(string, uint64) {}
func (NoopMirror) RoomEvicted(string, uint64) {}
