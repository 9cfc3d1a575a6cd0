package jail

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	// durationKeyPrefix 是Redis中缓存单条监禁总时长（分钟）的键名前缀。
	// 缓存的是增减事实之和，剩余时长由它减去已服刑时间现算。
	durationKeyPrefix = "jail:duration:"
	durationTTL       = 6 * time.Hour
)

// memberLocks 为每个 (公会, 成员) 提供一把劝告锁，
// 用于封闭"检查在押状态-创建监禁"这段先检查后执行的窗口。
var memberLocks sync.Map

func lockMember(guildID, memberID string) *sync.Mutex {
	key := guildID + ":" + memberID
	actual, _ := memberLocks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// ActiveSentence 返回成员当前在执行中的监禁；没有时返回nil。
func ActiveSentence(guildID, memberID string) (*Sentence, error) {
	var s Sentence
	err := database.DB.Where("guild_id = ? AND member_id = ? AND released_on IS NULL", guildID, memberID).
		Order("id desc").First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询在押监禁失败: %w", err)
	}
	return &s, nil
}

// SentenceByID 按ID返回一条监禁记录；不存在时返回nil。
func SentenceByID(id uint) (*Sentence, error) {
	var s Sentence
	err := database.DB.First(&s, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询监禁记录失败: %w", err)
	}
	return &s, nil
}

// SentenceHistory 返回成员在一个公会内的全部监禁记录，从旧到新。
func SentenceHistory(guildID, memberID string) ([]Sentence, error) {
	var out []Sentence
	err := database.DB.Where("guild_id = ? AND member_id = ?", guildID, memberID).
		Order("id asc").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询监禁历史失败: %w", err)
	}
	return out, nil
}

// patchReleasedOn 一次性地补上释放时间。
// 以 released_on IS NULL 为守卫，重复调用是无操作，保证幂等。
func patchReleasedOn(tx *gorm.DB, sentenceID uint, releasedOn time.Time) error {
	res := tx.Model(&Sentence{}).
		Where("id = ? AND released_on IS NULL", sentenceID).
		Update("released_on", releasedOn)
	if res.Error != nil {
		return fmt.Errorf("补丁释放时间失败: %w", res.Error)
	}
	return nil
}

// totalDurationMinutes 返回一条监禁的增减事实之和（分钟）。
// 优先读Redis缓存，未命中时从事件日志累加并回填。
func totalDurationMinutes(sentenceID uint) (int64, error) {
	key := durationKeyPrefix + strconv.FormatUint(uint64(sentenceID), 10)

	if database.IsRedisHealthy() {
		val, err := database.RDB.Get(database.Ctx, key).Result()
		if err == nil {
			if sum, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
				return sum, nil
			}
		} else if err != redis.Nil {
			fmt.Printf("警告: 读取监禁时长缓存失败，回退到SQLite: %v\n", err)
		}
	}

	sum, err := event.SumValue(event.Query{Type: event.TypeJail, SentenceID: sentenceID})
	if err != nil {
		return 0, err
	}

	if database.IsRedisHealthy() {
		if err := database.RDB.Set(database.Ctx, key, sum, durationTTL).Err(); err != nil {
			fmt.Printf("警告: 回填监禁时长缓存失败: %v\n", err)
		}
	}
	return sum, nil
}

// invalidateDurationCache 在新的增减事实落盘后废弃缓存条目。
func invalidateDurationCache(sentenceID uint) {
	if !database.IsRedisHealthy() {
		return
	}
	key := durationKeyPrefix + strconv.FormatUint(uint64(sentenceID), 10)
	if err := database.RDB.Del(database.Ctx, key).Err(); err != nil {
		fmt.Printf("警告: 废弃监禁时长缓存失败: %v\n", err)
	}
}
