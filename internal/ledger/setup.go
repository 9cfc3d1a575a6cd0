package ledger

import (
	"fmt"
	"strconv"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/metadata"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/settings"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
)

// PrimeDB 登记beans模块的默认设置。
// 账本自己没有表，它完全从事实日志派生。
func PrimeDB() error {
	settings.RegisterDefaults(settings.ModuleBeans, map[string]string{
		settings.KeyBeansDailyAmount: "15",
	})
	return nil
}

// startCheckpoint 确定处理器的起始检查点。
// 优先取Redis里的实时检查点，Redis刚重建时退回SQLite里的快照检查点。
func startCheckpoint() (uint, error) {
	val, err := database.RDB.Get(database.Ctx, metadata.RedisLastProcessedEventIDKey).Result()
	if err == nil {
		id, perr := strconv.ParseUint(val, 10, 64)
		if perr != nil {
			return 0, fmt.Errorf("Redis检查点格式非法: %w", perr)
		}
		return uint(id), nil
	}
	if err != redis.Nil {
		return 0, fmt.Errorf("读取Redis检查点失败: %w", err)
	}
	return metadata.GetLastSnapshotEventID(database.DB)
}

// StartLedgerProcessor 初始化并启动全局的缓存处理器。
// 它接收两个handle来管理两阶段关闭逻辑。
func StartLedgerProcessor(gracefulHandle, forcefulHandle *lifecycle.Handle) error {
	startID, err := startCheckpoint()
	if err != nil {
		return fmt.Errorf("无法获取启动Ledger Processor所需的检查点: %w", err)
	}

	initializeProcessor(startID)
	event.RegisterObserver(submitEventToQueue)
	go startProcessor(gracefulHandle, forcefulHandle)

	return nil
}
