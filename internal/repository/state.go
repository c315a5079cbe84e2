package repository

import (
	"context"
	"time"

	"whiteboard-relay/internal/domain"
)

// StateRepository 定义实时状态镜像 (如 Redis) 的操作，供外部看板读取和订阅。
type StateRepository interface {
	// ResetRoom 写入新房间的元数据并删除同 ID 旧房间遗留的 stroke 列表。
	ResetRoom(ctx context.Context, info domain.RoomInfo) error

	// SetPresence 写入房间的在线用户和成员数。
	SetPresence(ctx context.Context, p domain.Presence) error

	// AppendStroke 把一条 stroke 追加到房间的历史列表。
	AppendStroke(ctx context.Context, roomID string, s domain.Stroke) error

	// ClearStrokes 删除房间的 stroke 列表。
	ClearStrokes(ctx context.Context, roomID string) error

	// ExpireRoom 清空在线用户并让房间的全部 key 在 ttl 后过期。
	ExpireRoom(ctx context.Context, roomID string, ttl time.Duration) error

	// PublishEvent 把房间事件发布到该房间的 pub/sub 频道。
	PublishEvent(ctx context.Context, ev domain.RoomEvent) error

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
