package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"whiteboard-relay/internal/domain"
	"whiteboard-relay/internal/repository"
)

// PresenceSource 提供全部存活房间当前的成员投影，*hub.Hub 实现了它。
type PresenceSource interface {
	PresenceSnapshots() []domain.Presence
}

// sweepRoomTimeout 是单个房间重新镜像的超时时间
const sweepRoomTimeout = 5 * time.Second

// PresenceSweepHandler 处理周期性的 presence:sweep 任务。
// 它把内存中每个房间的在线用户重新写入 Redis 和 MySQL，修复因镜像队列溢出丢失的更新。
type PresenceSweepHandler struct {
	source   PresenceSource
	roomRepo repository.RoomRepository
	state    repository.StateRepository
}

// NewPresenceSweepHandler 创建 Handler 实例
func NewPresenceSweepHandler(source PresenceSource, roomRepo repository.RoomRepository, state repository.StateRepository) *PresenceSweepHandler {
	if source == nil {
		panic("PresenceSource cannot be nil for PresenceSweepHandler")
	}
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for PresenceSweepHandler")
	}
	if state == nil {
		panic("StateRepository cannot be nil for PresenceSweepHandler")
	}
	return &PresenceSweepHandler{source: source, roomRepo: roomRepo, state: state}
}

// ProcessTask 实现 asynq.Handler 接口。
// 单个房间失败只记录日志，周期任务本身总是成功，下一轮会再次覆盖。
func (h *PresenceSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	snapshots := h.source.PresenceSnapshots()
	if len(snapshots) == 0 {
		logCtx.Debug("No live rooms, skipping presence sweep")
		return nil
	}

	failed := 0
	for _, p := range snapshots {
		if err := ctx.Err(); err != nil {
			return err
		}
		roomCtx, cancel := context.WithTimeout(ctx, sweepRoomTimeout)
		roomLog := logCtx.WithField("room_id", p.RoomID)
		if err := h.state.SetPresence(roomCtx, p); err != nil {
			roomLog.WithError(err).Warn("Presence sweep failed to update live state")
			failed++
		}
		if err := h.roomRepo.UpdatePresence(roomCtx, p); err != nil {
			roomLog.WithError(err).Warn("Presence sweep failed to update room record")
			failed++
		}
		cancel()
	}

	logCtx.WithFields(logrus.Fields{"rooms": len(snapshots), "failures": failed}).Info("Presence sweep completed")
	return nil
}
