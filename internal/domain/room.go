package domain

import "time"

// RoomInfo 描述房间的不可变属性。
type RoomInfo struct {
	ID        string    `json:"id"`
	OwnerName string    `json:"ownerName"`
	CreatedAt time.Time `json:"createdAt"`
	Version   uint64    `json:"-"`
}

// Presence 是某一时刻房间成员情况的投影，用于广播和镜像。
type Presence struct {
	RoomID      string    `json:"roomId"`
	OwnerName   string    `json:"ownerName"`
	ActiveUsers []string  `json:"activeUsers"`
	MemberCount int       `json:"userCount"`
	Version     uint64    `json:"version"`
	At          time.Time `json:"at"`
}

// Snapshot 是房间的完整当前状态，加入房间和 get-room-data 时返回。
type Snapshot struct {
	ID          string    `json:"id"`
	OwnerName   string    `json:"ownerName"`
	ActiveUsers []string  `json:"activeUsers"`
	MemberCount int       `json:"userCount"`
	Strokes     []Stroke  `json:"strokes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RoomSummary 是不含 stroke log 的房间概要，用于房间列表和 check-room。
type RoomSummary struct {
	ID          string    `json:"id"`
	OwnerName   string    `json:"ownerName"`
	ActiveUsers []string  `json:"activeUsers"`
	MemberCount int       `json:"userCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// 房间事件类型，发布到外部 presence feed
const (
	EventRoomCreated     = "room-created"
	EventPresence        = "presence"
	EventStrokeCommitted = "stroke-committed"
	EventStrokesCleared  = "strokes-cleared"
	EventRoomEvicted     = "room-evicted"
)

// RoomEvent 是镜像到外部订阅者的房间事件。
type RoomEvent struct {
	Kind     string    `json:"kind"`
	RoomID   string    `json:"roomId"`
	Version  uint64    `json:"version"`
	Presence *Presence `json:"presence,omitempty"`
	Stroke   *Stroke   `json:"stroke,omitempty"`
	At       time.Time `json:"at"`
}
