package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"whiteboard-relay/internal/domain"
	"whiteboard-relay/internal/hub"
	"whiteboard-relay/internal/idgen"

	"github.com/sirupsen/logrus"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// maxRoomIDAttempts 是生成随机房间 ID 时遇到冲突的最大重试次数
const maxRoomIDAttempts = 5

// RoomService 负责面向 HTTP 的房间操作，房间状态本身由 Hub 持有。
type RoomService struct {
	hub *hub.Hub
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(h *hub.Hub) *RoomService {
	if h == nil {
		panic("Hub cannot be nil for RoomService")
	}
	return &RoomService{hub: h}
}

// CreateRoom 创建一个新房间。roomID 为空时生成随机 ID。
func (s *RoomService) CreateRoom(ctx context.Context, roomID, ownerName string) (domain.RoomInfo, error) {
	ownerName = strings.TrimSpace(ownerName)
	if ownerName == "" || utf8.RuneCountInString(ownerName) > 64 {
		return domain.RoomInfo{}, ErrInvalidName
	}
	logCtx := logrus.WithField("user_name", ownerName)

	roomID = strings.TrimSpace(roomID)
	if roomID != "" {
		if !roomIDPattern.MatchString(roomID) {
			return domain.RoomInfo{}, ErrInvalidRoomID
		}
		info, err := s.hub.CreateRoom(roomID, ownerName)
		return info, mapHubError(err)
	}

	for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.RoomInfo{}, err
		}
		id, err := idgen.NewRoomID()
		if err != nil {
			logCtx.WithError(err).Error("Failed to generate room id")
			return domain.RoomInfo{}, ErrInternalServer
		}
		info, err := s.hub.CreateRoom(id, ownerName)
		if errors.Is(err, hub.ErrRoomExists) {
			logCtx.WithField("room_id", id).Debug("Generated room id already taken, retrying")
			continue
		}
		return info, mapHubError(err)
	}
	logCtx.Error("Failed to generate a unique room id")
	return domain.RoomInfo{}, ErrInternalServer
}

// GetRoom 返回房间概要，用于 HTTP 形式的 check-room 和 get-room-info。
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (domain.RoomSummary, error) {
	summary, err := s.hub.RoomSummary(strings.TrimSpace(roomID))
	return summary, mapHubError(err)
}

// ListRooms 返回所有存活的房间。
func (s *RoomService) ListRooms(ctx context.Context) []domain.RoomSummary {
	return s.hub.ListRooms()
}

func (s *RoomService) Stats() hub.Stats {
	return s.hub.Stats()
}
