package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"whiteboard-relay/internal/repository"
	"whiteboard-relay/internal/tasks"
)

// MirrorTaskHandler 把镜像任务写入 MySQL。
// 仓库层的写入都带版本保护，任务乱序或重试执行不会让旧数据覆盖新数据。
type MirrorTaskHandler struct {
	roomRepo   repository.RoomRepository
	strokeRepo repository.StrokeRepository
}

// NewMirrorTaskHandler 创建 Handler 实例
func NewMirrorTaskHandler(roomRepo repository.RoomRepository, strokeRepo repository.StrokeRepository) *MirrorTaskHandler {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for MirrorTaskHandler")
	}
	if strokeRepo == nil {
		panic("StrokeRepository cannot be nil for MirrorTaskHandler")
	}
	return &MirrorTaskHandler{roomRepo: roomRepo, strokeRepo: strokeRepo}
}

// taskLogger 构造带任务信息的日志上下文
func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	queue, _ := asynq.GetQueueName(ctx)
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"queue":     queue,
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
}

// decodePayload 解析任务 payload，失败时返回 SkipRetry，坏数据重试也不会成功
func decodePayload(t *asynq.Task, logCtx *logrus.Entry, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// ProcessRoomCreated 处理 room:created 任务
func (h *MirrorTaskHandler) ProcessRoomCreated(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	var payload tasks.RoomCreatedPayload
	if err := decodePayload(t, logCtx, &payload); err != nil {
		return err
	}
	info := payload.Room
	info.Version = payload.Version
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": info.ID, "version": info.Version})

	if err := h.roomRepo.UpsertRoom(ctx, info); err != nil {
		logCtx.WithError(err).Error("Failed to mirror room creation")
		return fmt.Errorf("failed to upsert room %s: %w", info.ID, err)
	}
	logCtx.Debug("Room creation mirrored")
	return nil
}

// ProcessRoomPresence 处理 room:presence 任务
func (h *MirrorTaskHandler) ProcessRoomPresence(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	var payload tasks.RoomPresencePayload
	if err := decodePayload(t, logCtx, &payload); err != nil {
		return err
	}
	p := payload.Presence
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": p.RoomID, "version": p.Version})

	if err := h.roomRepo.UpdatePresence(ctx, p); err != nil {
		logCtx.WithError(err).Error("Failed to mirror presence")
		return fmt.Errorf("failed to update presence of room %s: %w", p.RoomID, err)
	}
	logCtx.Debug("Presence mirrored")
	return nil
}

// ProcessStrokePersist 处理 stroke:persist 任务
func (h *MirrorTaskHandler) ProcessStrokePersist(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	var payload tasks.StrokePersistPayload
	if err := decodePayload(t, logCtx, &payload); err != nil {
		return err
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": payload.RoomID, "strokes": len(payload.Strokes)})
	if len(payload.Strokes) == 0 {
		logCtx.Warn("Stroke persist task carries no strokes, skipping")
		return nil
	}

	if err := h.strokeRepo.SaveBatch(ctx, payload.RoomID, payload.Strokes); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 任务在提交后被重新投递，stroke 已经写入
			logCtx.WithError(err).Info("Strokes already persisted, skipping")
			return nil
		}
		logCtx.WithError(err).Error("Failed to persist strokes")
		return fmt.Errorf("failed to save %d strokes of room %s: %w", len(payload.Strokes), payload.RoomID, err)
	}
	logCtx.Debug("Strokes persisted")
	return nil
}

// ProcessStrokesClear 处理 strokes:clear 任务
func (h *MirrorTaskHandler) ProcessStrokesClear(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	var payload tasks.StrokesClearPayload
	if err := decodePayload(t, logCtx, &payload); err != nil {
		return err
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": payload.RoomID, "version": payload.Version})

	if err := h.strokeRepo.ClearRoom(ctx, payload.RoomID, payload.Version); err != nil {
		logCtx.WithError(err).Error("Failed to mirror canvas clear")
		return fmt.Errorf("failed to clear strokes of room %s: %w", payload.RoomID, err)
	}
	logCtx.Info("Canvas clear mirrored")
	return nil
}

// ProcessRoomEvicted 处理 room:evicted 任务
func (h *MirrorTaskHandler) ProcessRoomEvicted(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	var payload tasks.RoomEvictedPayload
	if err := decodePayload(t, logCtx, &payload); err != nil {
		return err
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": payload.RoomID, "version": payload.Version})

	if err := h.roomRepo.MarkEvicted(ctx, payload.RoomID, payload.Version, payload.At); err != nil {
		logCtx.WithError(err).Error("Failed to mirror room eviction")
		return fmt.Errorf("failed to mark room %s evicted: %w", payload.RoomID, err)
	}
	logCtx.Info("Room eviction mirrored")
	return nil
}
