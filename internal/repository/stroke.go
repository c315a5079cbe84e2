package repository

import (
	"context"

	"whiteboard-relay/internal/domain"
)

// StrokeRepository 持久化房间的 stroke 历史。
type StrokeRepository interface {
	// SaveBatch 批量保存 stroke，序号不大于房间最近一次清空版本的记录会被跳过。
	SaveBatch(ctx context.Context, roomID string, strokes []domain.Stroke) error

	// ClearRoom 删除序号不大于 version 的全部 stroke，并记录清空版本。
	ClearRoom(ctx context.Context, roomID string, version uint64) error
}
