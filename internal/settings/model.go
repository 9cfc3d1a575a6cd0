package settings

import "gorm.io/gorm"

// Setting 定义了单条公会配置在SQLite中的持久化模型。
// 配置按 (公会, 模块, 键) 三元组寻址，值统一以字符串存储，由typed getter解析。
type Setting struct {
	gorm.Model

	GuildID string `gorm:"uniqueIndex:idx_guild_module_key;not null;type:varchar(32)"`
	Module  string `gorm:"uniqueIndex:idx_guild_module_key;not null;type:varchar(32)"`
	Key     string `gorm:"uniqueIndex:idx_guild_module_key;not null;type:varchar(64)"`
	Value   string `gorm:"type:varchar(255)"`
}

// --- 各模块的设置键 ---

// jail 模块
const (
	ModuleJail = "jail"

	KeyJailBaseDuration = "base_duration_minutes"
	KeyJailSlapTime     = "slap_time"
	KeyJailPetTime      = "pet_time"
	KeyJailFartMin      = "fart_time_min"
	KeyJailFartMax      = "fart_time_max"
	KeyJailBaseCritRate = "base_crit_rate"
	KeyJailBaseCritMult = "base_crit_mult"
)

// police 模块
const (
	ModulePolice = "police"

	KeyPoliceMessageLimit       = "message_limit"
	KeyPoliceMessageInterval    = "message_interval_seconds"
	KeyPoliceTimeoutLimit       = "timeout_limit"
	KeyPoliceTimeoutInterval    = "timeout_interval_seconds"
	KeyPoliceTimeoutDuration    = "timeout_duration_seconds"
	KeyPoliceTimeoutsBeforeJail = "timeouts_before_jail"
	KeyPoliceJailDuration       = "jail_duration_minutes"
	KeyPoliceExcludedChannels   = "excluded_channels"
	KeyPoliceMonitoredRoles     = "monitored_roles"
)

// beans 模块
const (
	ModuleBeans = "beans"

	KeyBeansDailyAmount = "daily_amount"
)
