package ledger

import (
	"fmt"
	"strconv"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Balance 返回 (公会, 成员) 在赛季窗口内所有货币事实的总和。
// 没有任何事实时余额为0。全时段查询优先走Redis余额哈希，
// 缓存不可用或赛季有界时回退到SQLite求和。
func Balance(guildID, memberID string, season Season) (int64, error) {
	if season == AllTime && database.IsRedisHealthy() {
		val, err := database.RDB.HGet(database.Ctx, balanceKey(guildID), memberID).Result()
		if err == nil {
			parsed, perr := strconv.ParseInt(val, 10, 64)
			if perr == nil {
				return parsed, nil
			}
		} else if err != redis.Nil {
			fmt.Printf("警告: 读取余额缓存失败，回退到SQLite: %v\n", err)
		}
		// redis.Nil意味着该成员没有余额条目，直接落到SQLite确认
	}

	return event.SumValue(event.Query{
		GuildID:  guildID,
		Type:     event.TypeBeans,
		MemberID: memberID,
		Start:    season.Start,
		End:      season.End,
	})
}

// prestigeExcluded 列出不计入威望的货币来源。
// 购买、转账和人工修正不是"挣来的"，不应影响历史峰值。
var prestigeExcluded = map[event.BeansReason]bool{
	event.BeansReasonShopPurchase:  true,
	event.BeansReasonTransfer:      true,
	event.BeansReasonBalanceChange: true,
}

// Prestige 返回 (公会, 成员) 在赛季窗口内到达过的最高前缀和。
// 必须逐条回放计算真正的前缀最大值：后来的支出永远不会抹掉已经到达的峰值。
func Prestige(guildID, memberID string, season Season) (int64, error) {
	facts, err := event.Find(event.Query{
		GuildID:  guildID,
		Type:     event.TypeBeans,
		MemberID: memberID,
		Start:    season.Start,
		End:      season.End,
	})
	if err != nil {
		return 0, err
	}

	var running, peak int64
	for _, f := range facts {
		if prestigeExcluded[f.Reason] {
			continue
		}
		running += f.Value
		if running > peak {
			peak = running
		}
	}
	return peak, nil
}

// GrantBeans 写入一条货币事实并返回新的余额。
// 余额本身从不被存储，缓存由处理器在事实落盘后异步追上。
func GrantBeans(guildID, memberID string, reason event.BeansReason, value int64) (int64, error) {
	if _, err := event.Append(event.NewBeansEvent(guildID, memberID, reason, value)); err != nil {
		return 0, err
	}
	return Balance(guildID, memberID, AllTime)
}

// TransferBeans 把一笔货币从一个成员转给另一个成员。
// 转账是两条对称的事实，保证每个成员的余额都是自己事实的简单求和；
// 两条事实要么同时落盘，要么都不落，不存在只扣款不到账的中间态。
func TransferBeans(guildID, fromID, toID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("转账金额必须为正数")
	}
	balance, err := Balance(guildID, fromID, AllTime)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("余额不足: 当前 %d, 需要 %d", balance, amount)
	}

	debit := event.NewBeansEvent(guildID, fromID, event.BeansReasonTransfer, -amount)
	credit := event.NewBeansEvent(guildID, toID, event.BeansReasonTransfer, amount)
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := event.AppendTx(tx, debit); err != nil {
			return err
		}
		_, err := event.AppendTx(tx, credit)
		return err
	})
	if err != nil {
		return err
	}

	event.NotifyAppended(*debit)
	event.NotifyAppended(*credit)
	return nil
}
