package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"whiteboard-relay/internal/domain"
)

// tableOptions 让镜像表使用 utf8mb4，显示名和 stroke 颜色可能包含任意 Unicode 字符
const tableOptions = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci"

// MigrateDB 创建或更新镜像表结构。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.Set("gorm:table_options", tableOptions).AutoMigrate(
		&domain.RoomRecord{},
		&domain.StrokeRecord{},
	)
	if err != nil {
		logrus.WithError(err).Error("Failed to auto-migrate mirror tables")
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
