package service

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"whiteboard-relay/internal/domain"
	"whiteboard-relay/internal/hub"
	"whiteboard-relay/internal/metrics"
	"whiteboard-relay/internal/repository"
	"whiteboard-relay/internal/tasks"
)

// TaskEnqueuer 是 asynq.Client 中 MirrorService 需要的部分。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

const (
	mirrorOpTimeout = 5 * time.Second
	// evictedStateTTL 是房间回收后 Redis 中镜像数据的保留时间
	evictedStateTTL = time.Hour
)

type mirrorEvent struct {
	kind     string
	roomID   string
	info     domain.RoomInfo
	presence domain.Presence
	stroke   domain.Stroke
	version  uint64
	at       time.Time
}

// MirrorService 是尽力而为的带外镜像。
// Hub 的通知只做非阻塞入队；单个 goroutine 按顺序把事件写入 Redis、发布到 presence feed，
// 并为 MySQL 持久化投递 asynq 任务。任何失败只记录日志，不影响内存中的房间状态。
type MirrorService struct {
	state    repository.StateRepository
	enqueuer TaskEnqueuer
	metrics  *metrics.Metrics
	queue    chan mirrorEvent
	log      *logrus.Entry
}

var _ hub.Mirror = (*MirrorService)(nil)

// NewMirrorService 创建 MirrorService 实例。
func NewMirrorService(state repository.StateRepository, enqueuer TaskEnqueuer, m *metrics.Metrics, queueSize int) *MirrorService {
	if state == nil {
		panic("StateRepository cannot be nil for MirrorService")
	}
	if enqueuer == nil {
		panic("TaskEnqueuer cannot be nil for MirrorService")
	}
	if m == nil {
		panic("Metrics cannot be nil for MirrorService")
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &MirrorService{
		state:    state,
		enqueuer: enqueuer,
		metrics:  m,
		queue:    make(chan mirrorEvent, queueSize),
		log:      logrus.WithField("component", "mirror"),
	}
}

func (s *MirrorService) RoomCreated(info domain.RoomInfo) {
	s.push(mirrorEvent{kind: domain.EventRoomCreated, roomID: info.ID, info: info, version: info.Version})
}

func (s *MirrorService) PresenceChanged(p domain.Presence) {
	s.push(mirrorEvent{kind: domain.EventPresence, roomID: p.RoomID, presence: p, version: p.Version})
}

func (s *MirrorService) StrokeCommitted(roomID string, st domain.Stroke) {
	s.push(mirrorEvent{kind: domain.EventStrokeCommitted, roomID: roomID, stroke: st, version: st.Seq})
}

func (s *MirrorService) StrokesCleared(roomID string, version uint64) {
	s.push(mirrorEvent{kind: domain.EventStrokesCleared, roomID: roomID, version: version})
}

func (s *MirrorService) RoomEvicted(roomID string, version uint64) {
	s.push(mirrorEvent{kind: domain.EventRoomEvicted, roomID: roomID, version: version})
}

// push 非阻塞入队，队列满时丢弃事件。调用方可能持有连接的处理上下文，不能在这里等待。
func (s *MirrorService) push(ev mirrorEvent) {
	if ev.at.IsZero() {
		ev.at = time.Now().UTC()
	}
	select {
	case s.queue <- ev:
	default:
		s.metrics.MirrorDropped.Inc()
		s.log.WithFields(logrus.Fields{"room_id": ev.roomID, "kind": ev.kind}).Warn("Mirror queue full, dropping event")
	}
}

// Run 顺序处理镜像事件，直到 ctx 取消；退出前尽量写完队列中剩余的事件。
func (s *MirrorService) Run(ctx context.Context) {
	s.log.Info("Mirror service running")
	for {
		select {
		case <-ctx.Done():
			s.flush()
			s.log.Info("Mirror service stopped")
			return
		case ev := <-s.queue:
			s.apply(ev)
		}
	}
}

// flush 处理当前已入队的全部事件。
func (s *MirrorService) flush() {
	for {
		select {
		case ev := <-s.queue:
			s.apply(ev)
		default:
			return
		}
	}
}

func (s *MirrorService) apply(ev mirrorEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorOpTimeout)
	defer cancel()
	logCtx := s.log.WithFields(logrus.Fields{"room_id": ev.roomID, "kind": ev.kind, "version": ev.version})

	out := domain.RoomEvent{Kind: ev.kind, RoomID: ev.roomID, Version: ev.version, At: ev.at}
	var (
		stateErr error
		task     *asynq.Task
		taskErr  error
	)
	switch ev.kind {
	case domain.EventRoomCreated:
		stateErr = s.state.ResetRoom(ctx, ev.info)
		task, taskErr = tasks.NewRoomCreatedTask(ev.info)
	case domain.EventPresence:
		stateErr = s.state.SetPresence(ctx, ev.presence)
		task, taskErr = tasks.NewRoomPresenceTask(ev.presence)
		out.Presence = &ev.presence
	case domain.EventStrokeCommitted:
		stateErr = s.state.AppendStroke(ctx, ev.roomID, ev.stroke)
		task, taskErr = tasks.NewStrokePersistTask(ev.roomID, []domain.Stroke{ev.stroke})
		out.Stroke = &ev.stroke
	case domain.EventStrokesCleared:
		stateErr = s.state.ClearStrokes(ctx, ev.roomID)
		task, taskErr = tasks.NewStrokesClearTask(ev.roomID, ev.version)
	case domain.EventRoomEvicted:
		stateErr = s.state.ExpireRoom(ctx, ev.roomID, evictedStateTTL)
		task, taskErr = tasks.NewRoomEvictedTask(ev.roomID, ev.version, ev.at)
	default:
		logCtx.Warn("Unknown mirror event kind")
		return
	}

	if stateErr != nil {
		s.metrics.MirrorFailures.WithLabelValues("state").Inc()
		logCtx.WithError(stateErr).Error("Failed to mirror event to live state")
	}
	if err := s.state.PublishEvent(ctx, out); err != nil {
		s.metrics.MirrorFailures.WithLabelValues("publish").Inc()
		logCtx.WithError(err).Warn("Failed to publish room event")
	}
	if taskErr == nil {
		_, taskErr = s.enqueuer.EnqueueContext(ctx, task)
	}
	if taskErr != nil {
		s.metrics.MirrorFailures.WithLabelValues("enqueue").Inc()
		logCtx.WithError(taskErr).Error("Failed to enqueue mirror task")
		return
	}
	logCtx.Debug("Mirror event applied")
}
