package hub

import "errors"

// 中继层错误，由 Hub 转换为发给请求方的 error 消息
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomExists     = errors.New("room already exists")
	ErrOwnerConflict  = errors.New("room owner is already connected from another session")
	ErrNotMember      = errors.New("connection is not a member of this room")
	ErrNotOwner       = errors.New("only the room owner can clear the canvas")
	ErrInvalidMessage = errors.New("invalid message")

	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)
