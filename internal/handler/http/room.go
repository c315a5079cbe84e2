package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"whiteboard-relay/internal/domain"
	"whiteboard-relay/internal/service"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// CreateRoomRequest 是 POST /api/rooms 的请求体，roomId 省略时由服务端生成
type CreateRoomRequest struct {
	RoomID    string `json:"roomId"`
	OwnerName string `json:"ownerName" binding:"required"`
}

// CreateRoomResponse 定义创建房间成功的响应结构体
type CreateRoomResponse struct {
	Success bool            `json:"success"`
	Room    domain.RoomInfo `json:"room"`
}

// CheckRoomResponse 是 check-room 的 HTTP 形式
type CheckRoomResponse struct {
	Exists bool                `json:"exists"`
	Room   *domain.RoomSummary `json:"room"`
}

// RoomInfoResponse 是 get-room-info 的 HTTP 形式
type RoomInfoResponse struct {
	UserCount   int      `json:"userCount"`
	ActiveUsers []string `json:"activeUsers"`
}

// CreateRoom 处理创建新房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Debug("Handler.CreateRoom: Invalid request body")
		ErrorResponse(c, http.StatusBadRequest, "ownerName is required")
		return
	}

	info, err := h.roomService.CreateRoom(c.Request.Context(), req.RoomID, req.OwnerName)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"room_id": info.ID, "user_name": info.OwnerName}).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusCreated, CreateRoomResponse{Success: true, Room: info})
}

// ListRooms 返回全部存活的房间
func (h *RoomHandler) ListRooms(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": h.roomService.ListRooms(c.Request.Context())})
}

// CheckRoom 查询房间是否存在。房间不存在不是错误，返回 exists=false。
func (h *RoomHandler) CheckRoom(c *gin.Context) {
	summary, err := h.roomService.GetRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			SuccessResponse(c, http.StatusOK, CheckRoomResponse{Exists: false})
			return
		}
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, CheckRoomResponse{Exists: true, Room: &summary})
}

// RoomInfo 返回房间的在线人数和活跃用户
func (h *RoomHandler) RoomInfo(c *gin.Context) {
	summary, err := h.roomService.GetRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, RoomInfoResponse{UserCount: summary.MemberCount, ActiveUsers: summary.ActiveUsers})
}

// Stats 返回进程内的房间数和连接数
func (h *RoomHandler) Stats(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, h.roomService.Stats())
}
