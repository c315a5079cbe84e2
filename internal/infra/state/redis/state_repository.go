package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"whiteboard-relay/internal/domain"
)

// maxStrokeHistory 是 Redis 中每个房间保留的 stroke 条数上限
const maxStrokeHistory = 5000

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client redis.UniversalClient, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "wb:"
	}
	return &RedisStateRepository{client: client, keyPrefix: keyPrefix}
}

// --- Key Generation Helpers ---
func (r *RedisStateRepository) roomMetaKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:meta", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomPresenceKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:presence", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomStrokesKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:strokes", r.keyPrefix, roomID)
}

// RoomChannel 返回房间事件的 pub/sub 频道名
func (r *RedisStateRepository) RoomChannel(roomID string) string {
	return fmt.Sprintf("%sroom:%s:events", r.keyPrefix, roomID)
}

// ResetRoom 写入房间元数据，删除旧的 stroke 列表，并取消之前可能设置的过期时间
func (r *RedisStateRepository) ResetRoom(ctx context.Context, info domain.RoomInfo) error {
	metaKey := r.roomMetaKey(info.ID)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.roomStrokesKey(info.ID))
	pipe.HSet(ctx, metaKey,
		"ownerName", info.OwnerName,
		"createdAt", info.CreatedAt.Format(time.RFC3339Nano),
		"version", info.Version,
	)
	pipe.Persist(ctx, metaKey)
	pipe.Persist(ctx, r.roomPresenceKey(info.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to reset room %s: %w", info.ID, err)
	}
	return nil
}

// SetPresence 写入在线用户 (JSON) 和成员数
func (r *RedisStateRepository) SetPresence(ctx context.Context, p domain.Presence) error {
	users := p.ActiveUsers
	if users == nil {
		users = []string{}
	}
	usersJSON, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal active users for room %s: %w", p.RoomID, err)
	}
	key := r.roomPresenceKey(p.RoomID)
	err = r.client.HSet(ctx, key,
		"ownerName", p.OwnerName,
		"activeUsers", string(usersJSON),
		"userCount", p.MemberCount,
		"version", p.Version,
		"at", p.At.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to set presence for room %s on key %s: %w", p.RoomID, key, err)
	}
	return nil
}

// AppendStroke 将 stroke 追加到历史列表，只保留最近 maxStrokeHistory 条
func (r *RedisStateRepository) AppendStroke(ctx context.Context, roomID string, s domain.Stroke) error {
	key := r.roomStrokesKey(roomID)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal stroke %s: %w", s.ID, err)
	}
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, -maxStrokeHistory, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to append stroke for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

// ClearStrokes 删除房间的 stroke 列表
func (r *RedisStateRepository) ClearStrokes(ctx context.Context, roomID string) error {
	key := r.roomStrokesKey(roomID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to clear strokes for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

// ExpireRoom 清空在线用户，并让房间的全部 key 在 ttl 后过期
func (r *RedisStateRepository) ExpireRoom(ctx context.Context, roomID string, ttl time.Duration) error {
	presenceKey := r.roomPresenceKey(roomID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, presenceKey, "activeUsers", "[]", "userCount", 0)
	for _, key := range []string{r.roomMetaKey(roomID), presenceKey, r.roomStrokesKey(roomID)} {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to expire room %s: %w", roomID, err)
	}
	return nil
}

// PublishEvent 将房间事件发布到房间频道
func (r *RedisStateRepository) PublishEvent(ctx context.Context, ev domain.RoomEvent) error {
	channel := r.RoomChannel(ev.RoomID)
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal %s event for room %s: %w", ev.Kind, ev.RoomID, err)
	}
	if err := r.client.Publish(ctx, channel, string(payload)).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"kind":         ev.Kind,
			"room_id":      ev.RoomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish event to channel %s: %w", channel, err)
	}
	return nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, r.keyPrefix+key)
	pipe.Expire(ctx, r.keyPrefix+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}
