package backup

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/metadata"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// snapshotSpec 是定时快照的调度表达式
const snapshotSpec = "@daily"

var backupMutex sync.Mutex // 避免意外竞态

// StartBackupScheduler 启动定时快照任务。
// 事实日志本身始终在SQLite里，快照要持久化的只有缓存处理器的检查点：
// 有了它，重启后的缓存重建可以从检查点附近接上而不是全量重放。
func StartBackupScheduler(handle *lifecycle.Handle) error {
	c := cron.New()
	_, err := c.AddFunc(snapshotSpec, func() {
		if !database.IsRedisHealthy() {
			fmt.Println("快照调度器: 检测到Redis不可用，跳过本次快照。")
			return
		}
		if err := CreateConsistentSnapshotInDB(handle.Ctx()); err != nil {
			fmt.Printf("快照调度器错误: 执行检查点快照失败: %v\n", err)
		} else {
			fmt.Println("快照调度器: 检查点快照成功。")
		}
	})
	if err != nil {
		return fmt.Errorf("注册快照任务失败: %w", err)
	}

	go func() {
		defer handle.Close()
		c.Start()
		fmt.Println("检查点快照调度器已启动。")
		<-handle.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		fmt.Println("检查点快照调度器已退出。")
	}()
	return nil
}

// CreateConsistentSnapshotInDB 把Redis里的实时检查点持久化到SQLite。
func CreateConsistentSnapshotInDB(ctx context.Context) error {
	backupMutex.Lock()
	defer backupMutex.Unlock()

	val, err := database.RDB.Get(ctx, metadata.RedisLastProcessedEventIDKey).Result()
	if err != nil {
		if err == redis.Nil {
			// 检查点还没建立，没什么可快照的
			return nil
		}
		return fmt.Errorf("无法从Redis读取检查点: %w", err)
	}

	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("Redis检查点格式非法: %w", err)
	}

	if err := metadata.SetLastSnapshotEventID(database.DB, uint(id)); err != nil {
		return fmt.Errorf("无法持久化检查点: %w", err)
	}
	return nil
}
