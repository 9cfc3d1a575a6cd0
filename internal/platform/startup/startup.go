package startup

import (
	"context"
	"fmt"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/interaction"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/jail"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/ledger"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/backup"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/metadata"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/police"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/settings"
)

// InitializeApplication 是应用首次启动时执行的总入口
func InitializeApplication() error {
	fmt.Println("开始应用首次初始化...")

	if err := metadata.PrimeDB(); err != nil {
		return err
	}
	if err := settings.PrimeDB(); err != nil {
		return err
	}
	if err := event.PrimeDB(); err != nil {
		return err
	}
	if err := jail.PrimeDB(); err != nil {
		return err
	}
	if err := interaction.PrimeDB(); err != nil {
		return err
	}
	if err := ledger.PrimeDB(); err != nil {
		return err
	}
	if err := police.PrimeDB(); err != nil {
		return err
	}

	fmt.Println("应用初始化完成！")
	return nil
}

// RebuildCache 在Redis重启后热重建全部派生缓存。
// 重建期间持有缓存写锁，把处理器挡在外面，保证它看到的是完整的新视图。
func RebuildCache() error {
	fmt.Println("开始缓存热重建...")

	err := func() error {
		ledger.LockCache()
		defer ledger.UnlockCache()

		if err := settings.FlushCache(); err != nil {
			return err
		}
		return ledger.WarmupCache()
	}()
	if err != nil {
		return err
	}

	// 触发一次新的检查点快照
	fmt.Println("缓存热重建完成，正在持久化检查点...")
	if err := backup.CreateConsistentSnapshotInDB(context.Background()); err != nil {
		fmt.Printf("警告: 缓存热重建后的检查点快照失败: %v\n", err)
	}

	return nil
}
