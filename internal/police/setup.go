package police

import (
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/settings"
)

// PrimeDB 登记police模块的默认设置。
// 监测状态本身驻留内存，没有任何表。
func PrimeDB() error {
	settings.RegisterDefaults(settings.ModulePolice, map[string]string{
		settings.KeyPoliceMessageLimit:       "4",
		settings.KeyPoliceMessageInterval:    "10",
		settings.KeyPoliceTimeoutLimit:       "5",
		settings.KeyPoliceTimeoutInterval:    "8",
		settings.KeyPoliceTimeoutDuration:    "60",
		settings.KeyPoliceTimeoutsBeforeJail: "3",
		settings.KeyPoliceJailDuration:       "30",
		settings.KeyPoliceExcludedChannels:   "",
		settings.KeyPoliceMonitoredRoles:     "",
	})
	return nil
}
