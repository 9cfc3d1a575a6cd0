package ledger

import (
	"fmt"
	"sync"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/metadata"
	"github.com/redis/go-redis/v9"
)

// Redis键布局：每个公会一个余额哈希和一个余额排行榜zset。
// SQLite始终是事实的唯一来源，这里只是可以随时重建的派生视图。
const (
	balanceKeyPrefix = "ledger:balance:"
	rankKeyPrefix    = "ledger:rank:balance:"
)

func balanceKey(guildID string) string {
	return balanceKeyPrefix + guildID
}

func rankKey(guildID string) string {
	return rankKeyPrefix + guildID
}

// cacheMutex 保护Redis缓存的联合更新：
// 处理器逐条应用事实时持读锁，全量重建时持写锁。
var cacheMutex sync.RWMutex

// LockCache 获取缓存写锁，重建期间阻止处理器写入。
func LockCache() {
	cacheMutex.Lock()
}

// UnlockCache 释放缓存写锁。
func UnlockCache() {
	cacheMutex.Unlock()
}

// applyBeansToCache 把一条货币事实原子地应用到Redis缓存和检查点。
func applyBeansToCache(e event.Event) error {
	cacheMutex.RLock()
	defer cacheMutex.RUnlock()

	newBalance, err := database.RDB.HIncrBy(database.Ctx, balanceKey(e.GuildID), e.MemberID, e.Value).Result()
	if err != nil {
		return fmt.Errorf("更新余额缓存失败: %w", err)
	}

	pipe := database.RDB.TxPipeline()
	pipe.ZAdd(database.Ctx, rankKey(e.GuildID), redis.Z{Score: float64(newBalance), Member: e.MemberID})
	pipe.Set(database.Ctx, metadata.RedisLastProcessedEventIDKey, e.ID, 0)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("更新排行缓存失败: %w", err)
	}
	return nil
}

// advanceCheckpoint 在事实不影响缓存时只推进检查点。
func advanceCheckpoint(id uint) error {
	cacheMutex.RLock()
	defer cacheMutex.RUnlock()
	return database.RDB.Set(database.Ctx, metadata.RedisLastProcessedEventIDKey, id, 0).Err()
}

// WarmupCache 从SQLite全量回放货币事实，重建所有公会的余额缓存。
// 调用方必须已经持有缓存写锁（进程启动时例外，彼时处理器尚未运行）。
func WarmupCache() error {
	// 1. 清掉旧的缓存键
	var cursor uint64
	for _, prefix := range []string{balanceKeyPrefix, rankKeyPrefix} {
		cursor = 0
		for {
			keys, next, err := database.RDB.Scan(database.Ctx, cursor, prefix+"*", 500).Result()
			if err != nil {
				return fmt.Errorf("扫描旧缓存键失败: %w", err)
			}
			if len(keys) > 0 {
				if err := database.RDB.Del(database.Ctx, keys...).Err(); err != nil {
					return fmt.Errorf("删除旧缓存键失败: %w", err)
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}

	// 2. 回放全部货币事实，在内存中聚合
	facts, err := event.Find(event.Query{Type: event.TypeBeans})
	if err != nil {
		return fmt.Errorf("回放货币事实失败: %w", err)
	}

	type guildBalances map[string]int64
	balances := make(map[string]guildBalances)
	for _, f := range facts {
		g, ok := balances[f.GuildID]
		if !ok {
			g = make(guildBalances)
			balances[f.GuildID] = g
		}
		g[f.MemberID] += f.Value
	}

	// 3. 确定检查点：日志中最新一条事实的ID
	var checkpoint uint
	last, err := event.Last(event.Query{})
	if err != nil {
		return fmt.Errorf("读取日志末尾失败: %w", err)
	}
	if last != nil {
		checkpoint = last.ID
	}

	// 4. 原子写回Redis
	pipe := database.RDB.TxPipeline()
	for guildID, members := range balances {
		hash := make(map[string]interface{}, len(members))
		ranking := make([]redis.Z, 0, len(members))
		for memberID, balance := range members {
			hash[memberID] = balance
			ranking = append(ranking, redis.Z{Score: float64(balance), Member: memberID})
		}
		pipe.HSet(database.Ctx, balanceKey(guildID), hash)
		pipe.ZAdd(database.Ctx, rankKey(guildID), ranking...)
	}
	pipe.Set(database.Ctx, metadata.RedisLastProcessedEventIDKey, checkpoint, 0)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("写回余额缓存失败: %w", err)
	}

	resetProcessorCheckpoint(checkpoint)
	fmt.Printf("余额缓存重建完成: %d 个公会, 检查点 %d\n", len(balances), checkpoint)
	return nil
}
