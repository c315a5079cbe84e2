package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"whiteboard-relay/internal/domain"
)

// 定义任务类型常量
const (
	TypeRoomCreated   = "room:created"   // 房间创建镜像
	TypeRoomPresence  = "room:presence"  // 在线用户镜像
	TypeRoomEvicted   = "room:evicted"   // 房间回收镜像
	TypeStrokePersist = "stroke:persist" // stroke 持久化
	TypeStrokesClear  = "strokes:clear"  // 清空画布镜像
	TypePresenceSweep = "presence:sweep" // 周期性重新镜像全部房间的在线用户
)

// 队列名称，清空和回收任务进入 critical 队列优先执行
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

type RoomCreatedPayload struct {
	Room domain.RoomInfo `json:"room"`
	// RoomInfo.Version 不参与 JSON 序列化，单独传递
	Version uint64 `json:"version"`
}

type RoomPresencePayload struct {
	Presence domain.Presence `json:"presence"`
}

type RoomEvictedPayload struct {
	RoomID  string    `json:"roomId"`
	Version uint64    `json:"version"`
	At      time.Time `json:"at"`
}

// StrokePersistPayload 携带同一房间按提交顺序排列的一批 stroke
type StrokePersistPayload struct {
	RoomID  string          `json:"roomId"`
	Strokes []domain.Stroke `json:"strokes"`
}

type StrokesClearPayload struct {
	RoomID  string `json:"roomId"`
	Version uint64 `json:"version"`
}

// NewRoomCreatedTask 创建房间创建镜像任务
func NewRoomCreatedTask(info domain.RoomInfo) (*asynq.Task, error) {
	return newTask(TypeRoomCreated, RoomCreatedPayload{Room: info, Version: info.Version}, asynq.Queue(QueueDefault))
}

// NewRoomPresenceTask 创建在线用户镜像任务
func NewRoomPresenceTask(p domain.Presence) (*asynq.Task, error) {
	return newTask(TypeRoomPresence, RoomPresencePayload{Presence: p}, asynq.Queue(QueueDefault))
}

// NewRoomEvictedTask 创建房间回收镜像任务
func NewRoomEvictedTask(roomID string, version uint64, at time.Time) (*asynq.Task, error) {
	return newTask(TypeRoomEvicted, RoomEvictedPayload{RoomID: roomID, Version: version, At: at}, asynq.Queue(QueueCritical))
}

// NewStrokePersistTask 创建 stroke 持久化任务
func NewStrokePersistTask(roomID string, strokes []domain.Stroke) (*asynq.Task, error) {
	if len(strokes) == 0 {
		return nil, fmt.Errorf("stroke persist task for room %s has no strokes", roomID)
	}
	return newTask(TypeStrokePersist, StrokePersistPayload{RoomID: roomID, Strokes: strokes}, asynq.Queue(QueueDefault))
}

// NewStrokesClearTask 创建清空画布镜像任务
func NewStrokesClearTask(roomID string, version uint64) (*asynq.Task, error) {
	return newTask(TypeStrokesClear, StrokesClearPayload{RoomID: roomID, Version: version}, asynq.Queue(QueueCritical))
}

// NewPresenceSweepTask 创建周期性在线用户重新镜像任务，不携带 payload
func NewPresenceSweepTask() *asynq.Task {
	return asynq.NewTask(TypePresenceSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}

func newTask(typename string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typename, err)
	}
	opts = append(opts, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	return asynq.NewTask(typename, b, opts...), nil
}
