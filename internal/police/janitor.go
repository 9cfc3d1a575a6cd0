package police

import (
	"fmt"
	"time"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/config"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/pkg/lifecycle"
	"github.com/robfig/cron/v3"
)

// StartJanitor 启动定时清理任务，回收长时间没有活动的成员状态。
// 监测窗口本来就只关心近几分钟，闲置的环形缓冲区纯粹是内存负担。
func StartJanitor(handle *lifecycle.Handle) error {
	spec := config.Cfg.Police.JanitorSpec
	retention := time.Duration(config.Cfg.Police.IdleRetentionMinutes) * time.Minute

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if pruned := pruneIdleTrackers(retention); pruned > 0 {
			fmt.Printf("频率监测清理: 回收了 %d 个闲置成员状态\n", pruned)
		}
	})
	if err != nil {
		return fmt.Errorf("注册清理任务失败: %w", err)
	}

	go func() {
		defer handle.Close()
		c.Start()
		fmt.Println("频率监测清理任务已启动。")
		<-handle.Done()
		ctx := c.Stop()
		<-ctx.Done()
		fmt.Println("频率监测清理任务已退出。")
	}()
	return nil
}
