package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard-relay/internal/domain"
)

// unreachableClient 指向没有监听的端口，用于验证错误包装而不依赖真实 Redis
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStateRepository_KeyLayout(t *testing.T) {
	repo := NewRedisStateRepository(unreachableClient(t), "")

	assert.Equal(t, "wb:room:r1:meta", repo.roomMetaKey("r1"))
	assert.Equal(t, "wb:room:r1:presence", repo.roomPresenceKey("r1"))
	assert.Equal(t, "wb:room:r1:strokes", repo.roomStrokesKey("r1"))
	assert.Equal(t, "wb:room:r1:events", repo.RoomChannel("r1"))

	custom := NewRedisStateRepository(unreachableClient(t), "test:")
	assert.Equal(t, "test:room:r1:events", custom.RoomChannel("r1"))
}

func TestRedisStateRepository_WrapsConnectionErrors(t *testing.T) {
	repo := NewRedisStateRepository(unreachableClient(t), "wb:")
	ctx := context.Background()

	err := repo.SetPresence(ctx, domain.Presence{RoomID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room r1")

	_, err = repo.CheckRateLimit(ctx, "ratelimit:10.0.0.1", 10, time.Second)
	require.Error(t, err)

	err = repo.PublishEvent(ctx, domain.RoomEvent{Kind: domain.EventPresence, RoomID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wb:room:r1:events")
}

func TestNewRedisStateRepository_NilClientPanics(t *testing.T) {
	assert.Panics(t, func() { NewRedisStateRepository(nil, "wb:") })
}
