package jail

import (
	"fmt"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/settings"
)

// PrimeDB 迁移监禁会话表，并登记jail模块的默认设置
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Sentence{}); err != nil {
		return fmt.Errorf("迁移Sentence表失败: %w", err)
	}

	settings.RegisterDefaults(settings.ModuleJail, map[string]string{
		settings.KeyJailBaseDuration: "30",
		settings.KeyJailSlapTime:     "5",
		settings.KeyJailPetTime:      "5",
		settings.KeyJailFartMin:      "-5",
		settings.KeyJailFartMax:      "10",
		settings.KeyJailBaseCritRate: "0.1",
		settings.KeyJailBaseCritMult: "2.0",
	})
	return nil
}
