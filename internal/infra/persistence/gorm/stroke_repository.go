package gormpersistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whiteboard-relay/internal/domain"
)

// GormStrokeRepository 是 StrokeRepository 接口的 GORM 实现
type GormStrokeRepository struct {
	db *gorm.DB
}

// NewGormStrokeRepository 创建 GormStrokeRepository 实例
func NewGormStrokeRepository(db *gorm.DB) *GormStrokeRepository {
	if db == nil {
		panic("database connection cannot be nil for GormStrokeRepository")
	}
	return &GormStrokeRepository{db: db}
}

// SaveBatch 锁住房间记录读取清空版本，只写入之后提交的 stroke，
// 这样乱序执行的持久化任务不会让已清空的 stroke 复活。
// 同一房间的 stroke ID 唯一，重复写入返回 repository.ErrDuplicateEntry，整批不生效。
func (r *GormStrokeRepository) SaveBatch(ctx context.Context, roomID string, strokes []domain.Stroke) error {
	if len(strokes) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRoomRow(tx, roomID, "", time.Time{}); err != nil {
			return err
		}
		var room domain.RoomRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "cleared_version").
			First(&room, "id = ?", roomID).Error; err != nil {
			return err
		}

		records := make([]domain.StrokeRecord, 0, len(strokes))
		for _, s := range strokes {
			if s.Seq <= room.ClearedVersion {
				continue
			}
			rec, err := domain.NewStrokeRecord(roomID, s)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("gorm: save %d strokes for room %s", len(strokes), roomID))
	}
	return nil
}

// ClearRoom 记录清空版本并删除该版本之前的 stroke。
func (r *GormStrokeRepository) ClearRoom(ctx context.Context, roomID string, version uint64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRoomRow(tx, roomID, "", time.Time{}); err != nil {
			return err
		}
		if err := tx.Model(&domain.RoomRecord{}).
			Where("id = ? AND cleared_version < ?", roomID, version).
			Update("cleared_version", version).Error; err != nil {
			return err
		}
		return tx.Where("room_id = ? AND seq <= ?", roomID, version).Delete(&domain.StrokeRecord{}).Error
	})
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("gorm: clear strokes for room %s", roomID))
	}
	return nil
}
