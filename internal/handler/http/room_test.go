package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard-relay/internal/hub"
	"whiteboard-relay/internal/metrics"
	"whiteboard-relay/internal/service"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := metrics.New(prometheus.NewRegistry())
	b := hub.NewBroadcaster(m)
	h := hub.NewHub(hub.NewRegistry(b, m, time.Minute), b, hub.NoopMirror{}, m, hub.Options{})
	rh := NewRoomHandler(service.NewRoomService(h))

	r := gin.New()
	api := r.Group("/api")
	api.GET("/rooms", rh.ListRooms)
	api.POST("/rooms", rh.CreateRoom)
	api.GET("/rooms/:roomId", rh.CheckRoom)
	api.GET("/rooms/:roomId/info", rh.RoomInfo)
	api.GET("/stats", rh.Stats)
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateRoom(t *testing.T) {
	// Arrange
	r := newTestRouter(t)

	// Act
	w := doRequest(r, http.MethodPost, "/api/rooms", map[string]string{"roomId": "r1", "ownerName": "alice"})

	// Assert
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	room := body["room"].(map[string]any)
	assert.Equal(t, "r1", room["id"])
	assert.Equal(t, "alice", room["ownerName"])

	w = doRequest(r, http.MethodPost, "/api/rooms", map[string]string{"roomId": "r1", "ownerName": "bob"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateRoom_GeneratesIDWhenOmitted(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/rooms", map[string]string{"ownerName": "alice"})

	require.Equal(t, http.StatusCreated, w.Code)
	room := decodeBody(t, w)["room"].(map[string]any)
	assert.NotEmpty(t, room["id"])
}

func TestCreateRoom_BadRequests(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing owner", map[string]string{"roomId": "r1"}},
		{"invalid room id", map[string]string{"roomId": "bad id!", "ownerName": "alice"}},
		{"blank owner", map[string]string{"roomId": "r1", "ownerName": "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/rooms", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}
}

func TestCheckRoom(t *testing.T) {
	r := newTestRouter(t)
	doRequest(r, http.MethodPost, "/api/rooms", map[string]string{"roomId": "r1", "ownerName": "alice"})

	w := doRequest(r, http.MethodGet, "/api/rooms/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["exists"])
	assert.Equal(t, "alice", body["room"].(map[string]any)["ownerName"])

	w = doRequest(r, http.MethodGet, "/api/rooms/missing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["exists"])
	assert.Nil(t, body["room"])
}

func TestRoomInfo(t *testing.T) {
	r := newTestRouter(t)
	doRequest(r, http.MethodPost, "/api/rooms", map[string]string{"roomId": "r1", "ownerName": "alice"})

	w := doRequest(r, http.MethodGet, "/api/rooms/r1/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userCount":0,"activeUsers":[]}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/rooms/missing/info", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRoomsAndStats(t *testing.T) {
	r := newTestRouter(t)
	doRequest(r, http.MethodPost, "/api/rooms", map[string]string{"roomId": "r1", "ownerName": "alice"})
	doRequest(r, http.MethodPost, "/api/rooms", map[string]string{"roomId": "r2", "ownerName": "bob"})

	w := doRequest(r, http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rooms := decodeBody(t, w)["rooms"].([]any)
	require.Len(t, rooms, 2)
	assert.Equal(t, "r1", rooms[0].(map[string]any)["id"])

	w = doRequest(r, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms":2,"connections":0}`, w.Body.String())
}

func TestHandleServiceError_UnknownIsInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleServiceError(c, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"An unexpected error occurred"}`, w.Body.String())
}
