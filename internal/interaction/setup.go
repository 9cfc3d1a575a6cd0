package interaction

import (
	"fmt"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
)

// PrimeDB 迁移修正道具表
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Modifier{}); err != nil {
		return fmt.Errorf("迁移Modifier表失败: %w", err)
	}
	return nil
}
