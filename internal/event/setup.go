package event

import (
	"fmt"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
)

// PrimeDB 负责初始化事件日志的数据库部分
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Event{}); err != nil {
		return fmt.Errorf("无法迁移event表: %w", err)
	}
	fmt.Println("Event数据库表迁移成功。")
	return nil
}
