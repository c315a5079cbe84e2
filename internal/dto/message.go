package dto

import "whiteboard-relay/internal/domain"

// 入站消息类型
const (
	TypeCreateRoom   = "create-room"
	TypeCheckRoom    = "check-room"
	TypeJoinRoom     = "join-room"
	TypeLeaveRoom    = "leave-room"
	TypeStrokeStart  = "stroke-start"
	TypeStrokeUpdate = "stroke-update"
	TypeStrokeEnd    = "stroke-end"
	TypeCursorMove   = "cursor-move"
	TypeCursorLeave  = "cursor-leave"
	TypeClearCanvas  = "clear-canvas"
	TypeStrokesSaved = "strokes-saved"
	TypeGetRoomData  = "get-room-data"
	TypeGetRoomInfo  = "get-room-info"
	TypePing         = "ping"
)

// 出站消息类型 (与入站同名的中继消息直接复用上面的常量)
const (
	TypeCreateRoomResponse = "create-room-response"
	TypeCheckRoomResponse  = "check-room-response"
	TypeJoinRoomResponse   = "join-room-response"
	TypeRoomData           = "room-data"
	TypeRoomInfo           = "room-info"
	TypeUserConnected      = "user-connected"
	TypeUserDisconnected   = "user-disconnected"
	TypeCanvasCleared      = "canvas-cleared"
	TypePong               = "pong"
	TypeError              = "error"
)

// InboundMessage 是客户端发来的扁平消息，type 之外的字段按操作类型取用。
type InboundMessage struct {
	Type      string         `json:"type"`
	RoomID    string         `json:"roomId,omitempty"`
	OwnerName string         `json:"ownerName,omitempty"`
	UserName  string         `json:"userName,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	X         float64        `json:"x,omitempty"`
	Y         float64        `json:"y,omitempty"`
	Color     string         `json:"color,omitempty"`
	Size      float64        `json:"size,omitempty"`
	Stroke    *domain.Stroke `json:"stroke,omitempty"`
	Count     int            `json:"count,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

// CreatedRoom 是 create-room-response 中的房间信息。
type CreatedRoom struct {
	ID        string `json:"id"`
	OwnerName string `json:"ownerName"`
}

type CreateRoomResponse struct {
	Type    string       `json:"type"`
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Room    *CreatedRoom `json:"room,omitempty"`
}

// CheckedRoom 是 check-room-response 中的房间信息。
type CheckedRoom struct {
	ID          string   `json:"id"`
	OwnerName   string   `json:"ownerName"`
	ActiveUsers []string `json:"activeUsers"`
}

type CheckRoomResponse struct {
	Type   string       `json:"type"`
	Exists bool         `json:"exists"`
	Room   *CheckedRoom `json:"room"`
}

// RoomSnapshotResponse 用于 join-room-response 和 room-data。
type RoomSnapshotResponse struct {
	Type    string           `json:"type"`
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
	Room    *domain.Snapshot `json:"room,omitempty"`
}

type RoomInfoResponse struct {
	Type        string   `json:"type"`
	UserCount   int      `json:"userCount"`
	ActiveUsers []string `json:"activeUsers"`
}

// PresenceEvent 用于 user-connected 和 user-disconnected。
type PresenceEvent struct {
	Type        string   `json:"type"`
	UserName    string   `json:"userName"`
	UserCount   int      `json:"userCount"`
	ActiveUsers []string `json:"activeUsers"`
}

// StrokeProgressEvent 用于 stroke-start 和 stroke-update，不持久化。
type StrokeProgressEvent struct {
	Type     string  `json:"type"`
	UserID   string  `json:"userId,omitempty"`
	UserName string  `json:"userName"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Color    string  `json:"color,omitempty"`
	Size     float64 `json:"size,omitempty"`
}

type StrokeEndEvent struct {
	Type     string         `json:"type"`
	UserID   string         `json:"userId,omitempty"`
	UserName string         `json:"userName"`
	Stroke   *domain.Stroke `json:"stroke,omitempty"`
}

type CursorMoveEvent struct {
	Type     string  `json:"type"`
	UserID   string  `json:"userId,omitempty"`
	UserName string  `json:"userName"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Color    string  `json:"color,omitempty"`
}

type CursorLeaveEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName"`
}

type CanvasClearedEvent struct {
	Type      string `json:"type"`
	ClearedBy string `json:"clearedBy,omitempty"`
}

type StrokesSavedEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
	Count  int    `json:"count"`
}

type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ErrorResponse 表示某个操作在服务端被拒绝。
type ErrorResponse struct {
	Type      string `json:"type"`
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Error     string `json:"error"`
}

// NewError 构造 error 消息。
func NewError(operation, message string) ErrorResponse {
	return ErrorResponse{Type: TypeError, Operation: operation, Success: false, Error: message}
}
