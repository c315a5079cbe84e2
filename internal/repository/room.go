package repository

import (
	"context"
	"time"

	"whiteboard-relay/internal/domain"
)

// RoomRepository 把房间元数据和在线用户镜像到持久化存储。
// 所有写入都带有版本号，版本不高于已记录版本的写入被静默忽略。
type RoomRepository interface {
	// UpsertRoom 记录一次房间创建。同一 ID 的房间被回收后重新创建时，会重置在线用户并清理旧的 stroke。
	UpsertRoom(ctx context.Context, info domain.RoomInfo) error

	// UpdatePresence 覆盖房间的在线用户列表和成员数。
	UpdatePresence(ctx context.Context, p domain.Presence) error

	// MarkEvicted 标记房间已被回收，并清空镜像中的在线用户。
	MarkEvicted(ctx context.Context, roomID string, version uint64, at time.Time) error
}
