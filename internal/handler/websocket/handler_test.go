package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard-relay/internal/hub"
	"whiteboard-relay/internal/metrics"
)

func newTestServer(t *testing.T, origins []string) (*httptest.Server, *hub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := metrics.New(prometheus.NewRegistry())
	b := hub.NewBroadcaster(m)
	h := hub.NewHub(hub.NewRegistry(b, m, time.Minute), b, hub.NoopMirror{}, m, hub.Options{MaxMessageSize: 64 * 1024})

	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(h, origins).HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		h.CloseAll()
		srv.Close()
	})
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil 跳过其他类型的消息，直到读到指定类型
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readJSON(t, conn)
		if msg["type"] == typ {
			return msg
		}
	}
	t.Fatalf("did not receive %s", typ)
	return nil
}

func TestWebSocket_CreateJoinAndRelay(t *testing.T) {
	// Arrange
	srv, h := newTestServer(t, nil)
	alice := dial(t, srv)
	bob := dial(t, srv)

	// Act
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "create-room", "roomId": "r1", "ownerName": "alice"}))
	created := readUntil(t, alice, "create-room-response")
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "join-room", "roomId": "r1", "userName": "alice"}))
	joined := readUntil(t, alice, "join-room-response")

	require.NoError(t, bob.WriteJSON(map[string]any{"type": "join-room", "roomId": "r1", "userName": "bob"}))
	readUntil(t, bob, "join-room-response")
	connected := readUntil(t, alice, "user-connected")

	require.NoError(t, bob.WriteJSON(map[string]any{
		"type": "stroke-end", "roomId": "r1", "userId": "u-bob",
		"stroke": map[string]any{"points": []map[string]float64{{"x": 0, "y": 0}, {"x": 3, "y": 4}}, "color": "#000"},
	}))
	stroke := readUntil(t, alice, "stroke-end")

	// Assert
	assert.Equal(t, true, created["success"])
	assert.Equal(t, true, joined["success"])
	assert.Equal(t, "bob", connected["userName"])
	assert.Equal(t, float64(2), connected["userCount"])
	s := stroke["stroke"].(map[string]any)
	assert.Equal(t, "bob", s["userName"])
	assert.NotEmpty(t, s["id"])
	assert.Equal(t, int64(2), h.Stats().Connections)
}

func TestWebSocket_CloseLeavesRoom(t *testing.T) {
	srv, h := newTestServer(t, nil)
	alice := dial(t, srv)
	bob := dial(t, srv)
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "create-room", "roomId": "r1", "ownerName": "alice"}))
	readUntil(t, alice, "create-room-response")
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "join-room", "roomId": "r1", "userName": "alice"}))
	readUntil(t, alice, "join-room-response")
	require.NoError(t, bob.WriteJSON(map[string]any{"type": "join-room", "roomId": "r1", "userName": "bob"}))
	readUntil(t, bob, "join-room-response")

	require.NoError(t, bob.Close())

	left := readUntil(t, alice, "user-disconnected")
	assert.Equal(t, "bob", left["userName"])
	assert.Equal(t, float64(1), left["userCount"])
	require.Eventually(t, func() bool { return h.Stats().Connections == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_PingPong(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))

	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
	assert.NotZero(t, msg["timestamp"])
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	srv, _ := newTestServer(t, []string{"http://localhost:3000"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:3000")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestWebSocket_CloseAllWaitsForRoomLeave(t *testing.T) {
	srv, h := newTestServer(t, nil)
	alice := dial(t, srv)
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "create-room", "roomId": "r1", "ownerName": "alice"}))
	readUntil(t, alice, "create-room-response")
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "join-room", "roomId": "r1", "userName": "alice"}))
	readUntil(t, alice, "join-room-response")

	h.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.WaitDisconnected(ctx))

	assert.Equal(t, int64(0), h.Stats().Connections)
	summary, err := h.RoomSummary("r1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.MemberCount)
	assert.Empty(t, summary.ActiveUsers)

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := alice.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
	}
}
