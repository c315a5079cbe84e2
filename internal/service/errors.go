package service

import (
	"errors"

	"whiteboard-relay/internal/hub"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomExists     = errors.New("room already exists")
	ErrInvalidRoomID  = errors.New("invalid room id: use 1-64 letters, digits, '-' or '_'")
	ErrInvalidName    = errors.New("invalid owner name: must be 1-64 characters")
	ErrInternalServer = errors.New("internal server error")
)

// mapHubError 把中继层错误映射为服务层错误，未知错误统一视为内部错误。
func mapHubError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hub.ErrRoomNotFound):
		return ErrRoomNotFound
	case errors.Is(err, hub.ErrRoomExists):
		return ErrRoomExists
	default:
		return ErrInternalServer
	}
}
