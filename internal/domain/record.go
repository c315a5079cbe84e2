package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RoomRecord 是房间在数据库中的镜像记录 (只写，供外部看板和恢复使用)。
type RoomRecord struct {
	ID             string     `gorm:"primaryKey;size:191"`                  // 房间 ID
	OwnerName      string     `gorm:"size:191;not null"`                    // 房主显示名
	ActiveUsers    string     `gorm:"type:text;not null"`                   // 活跃用户列表，JSON 数组
	MemberCount    int        `gorm:"not null;default:0"`                   // 当前连接数
	MirrorVersion  uint64     `gorm:"not null;default:0"`                   // 最近一次写入的版本，防止乱序覆盖
	ClearedVersion uint64     `gorm:"not null;default:0"`                   // 最近一次清空画布时的版本
	RoomCreatedAt  time.Time  `gorm:"not null"`                             // 内存中房间的创建时间
	LastActive     time.Time  `gorm:"index"`                                // 最近一次成员变化时间
	EvictedAt      *time.Time `gorm:"index"`                                // 被回收的时间，nil 表示仍存活
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`
}

// TableName 固定表名。
func (RoomRecord) TableName() string { return "rooms" }

// SetActiveUsers 将活跃用户序列化后写入 ActiveUsers 字段。
func (r *RoomRecord) SetActiveUsers(users []string) error {
	if users == nil {
		users = []string{}
	}
	b, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("failed to marshal active users: %w", err)
	}
	r.ActiveUsers = string(b)
	return nil
}

// StrokeRecord 是已提交 stroke 在数据库中的镜像记录。
type StrokeRecord struct {
	ID          uint      `gorm:"primaryKey"`
	RoomID      string    `gorm:"size:191;index:idx_room_seq;uniqueIndex:uniq_room_stroke;not null"`
	StrokeID    string    `gorm:"size:64;uniqueIndex:uniq_room_stroke;not null"`
	AuthorName  string    `gorm:"size:191;not null"`
	UserID      string    `gorm:"size:191"`
	Kind        string    `gorm:"size:20;not null"`
	Points      string    `gorm:"type:mediumtext;not null"` // JSON 点序列
	Color       string    `gorm:"size:32"`
	Width       float64   `gorm:"not null;default:0"`
	Length      float64   `gorm:"not null;default:0"`
	Seq         uint64    `gorm:"index:idx_room_seq;not null"`
	CommittedAt time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName 固定表名。
func (StrokeRecord) TableName() string { return "strokes" }

// NewStrokeRecord 由内存中的 Stroke 构造数据库记录。
func NewStrokeRecord(roomID string, s Stroke) (StrokeRecord, error) {
	pts, err := json.Marshal(s.Points)
	if err != nil {
		return StrokeRecord{}, fmt.Errorf("failed to marshal stroke points: %w", err)
	}
	return StrokeRecord{
		RoomID:      roomID,
		StrokeID:    s.ID,
		AuthorName:  s.AuthorName,
		UserID:      s.UserID,
		Kind:        string(s.Kind),
		Points:      string(pts),
		Color:       s.Color,
		Width:       s.Width,
		Length:      s.Length,
		Seq:         s.Seq,
		CommittedAt: time.UnixMilli(s.Timestamp).UTC(),
	}, nil
}
