package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whiteboard-relay/internal/domain"
	"whiteboard-relay/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// UpsertRoom 确保房间记录存在，并在版本更新时覆盖为新创建的房间。
func (r *GormRoomRepository) UpsertRoom(ctx context.Context, info domain.RoomInfo) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRoomRow(tx, info.ID, info.OwnerName, info.CreatedAt); err != nil {
			return err
		}
		result := tx.Model(&domain.RoomRecord{}).
			Where("id = ? AND mirror_version < ?", info.ID, info.Version).
			Updates(map[string]interface{}{
				"owner_name":      info.OwnerName,
				"room_created_at": info.CreatedAt,
				"active_users":    "[]",
				"member_count":    0,
				"mirror_version":  info.Version,
				"cleared_version": info.Version,
				"evicted_at":      nil,
				"last_active":     info.CreatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		// 同一 ID 的旧房间遗留的 stroke 不属于新房间
		return tx.Where("room_id = ? AND seq <= ?", info.ID, info.Version).Delete(&domain.StrokeRecord{}).Error
	})
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("gorm: upsert room %s", info.ID))
	}
	return nil
}

// UpdatePresence 只在版本更新时覆盖在线用户。
func (r *GormRoomRepository) UpdatePresence(ctx context.Context, p domain.Presence) error {
	var rec domain.RoomRecord
	if err := rec.SetActiveUsers(p.ActiveUsers); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRoomRow(tx, p.RoomID, p.OwnerName, p.At); err != nil {
			return err
		}
		return tx.Model(&domain.RoomRecord{}).
			Where("id = ? AND mirror_version < ?", p.RoomID, p.Version).
			Updates(map[string]interface{}{
				"active_users":   rec.ActiveUsers,
				"member_count":   p.MemberCount,
				"mirror_version": p.Version,
				"last_active":    p.At,
			}).Error
	})
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("gorm: update presence for room %s", p.RoomID))
	}
	return nil
}

// MarkEvicted 记录房间回收时间并清空在线用户。
func (r *GormRoomRepository) MarkEvicted(ctx context.Context, roomID string, version uint64, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.RoomRecord{}).
		Where("id = ? AND mirror_version < ?", roomID, version).
		Updates(map[string]interface{}{
			"active_users":   "[]",
			"member_count":   0,
			"mirror_version": version,
			"evicted_at":     at,
		}).Error
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("gorm: mark room %s evicted", roomID))
	}
	return nil
}

// ensureRoomRow 在房间记录不存在时插入一条占位记录，已存在时不做任何修改。
func ensureRoomRow(tx *gorm.DB, roomID, ownerName string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := domain.RoomRecord{
		ID:            roomID,
		OwnerName:     ownerName,
		ActiveUsers:   "[]",
		RoomCreatedAt: at,
		LastActive:    at,
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// mapRepoError 把驱动错误映射为仓库错误
func mapRepoError(err error, op string) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicateEntry)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicateEntry)
	}
	return fmt.Errorf("%s: %w", op, err)
}
