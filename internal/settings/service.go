package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cacheKeyPrefix 是Redis中公会设置哈希的键名前缀，按 (公会, 模块) 分片
const cacheKeyPrefix = "settings:"

var (
	defaultsMutex sync.RWMutex
	// moduleDefaults 保存每个模块在代码里登记的默认值
	moduleDefaults = make(map[string]map[string]string)
)

// RegisterDefaults 在启动时为一个模块登记默认配置。
// 同一模块重复登记时，后登记的键覆盖先登记的。
func RegisterDefaults(module string, defaults map[string]string) {
	defaultsMutex.Lock()
	defer defaultsMutex.Unlock()
	m, ok := moduleDefaults[module]
	if !ok {
		m = make(map[string]string, len(defaults))
		moduleDefaults[module] = m
	}
	for k, v := range defaults {
		m[k] = v
	}
}

func defaultValue(module, key string) (string, bool) {
	defaultsMutex.RLock()
	defer defaultsMutex.RUnlock()
	m, ok := moduleDefaults[module]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

func cacheKey(guildID, module string) string {
	return cacheKeyPrefix + guildID + ":" + module
}

// GetString 返回一个设置值；公会未覆盖时回退到模块默认值。
func GetString(guildID, module, key string) (string, error) {
	// 1. 先查Redis缓存
	if database.IsRedisHealthy() {
		val, err := database.RDB.HGet(database.Ctx, cacheKey(guildID, module), key).Result()
		if err == nil {
			return val, nil
		}
		if err != redis.Nil {
			fmt.Printf("警告: 读取设置缓存失败，回退到SQLite: %v\n", err)
		}
	}

	// 2. 缓存未命中，查SQLite
	var s Setting
	err := database.DB.Where("guild_id = ? AND module = ? AND key = ?", guildID, module, key).First(&s).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("读取设置失败: %w", err)
		}
		// 3. 公会没有覆盖，使用模块默认值
		def, ok := defaultValue(module, key)
		if !ok {
			return "", fmt.Errorf("设置 %s/%s 不存在且没有默认值", module, key)
		}
		return def, nil
	}

	// 4. 回填缓存，失败只告警
	if database.IsRedisHealthy() {
		if err := database.RDB.HSet(database.Ctx, cacheKey(guildID, module), key, s.Value).Err(); err != nil {
			fmt.Printf("警告: 回填设置缓存失败: %v\n", err)
		}
	}
	return s.Value, nil
}

// GetInt 返回一个整数设置值。
func GetInt(guildID, module, key string) (int64, error) {
	str, err := GetString(guildID, module, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("设置 %s/%s 的值 %q 不是整数: %w", module, key, str, err)
	}
	return v, nil
}

// GetFloat 返回一个浮点设置值。
func GetFloat(guildID, module, key string) (float64, error) {
	str, err := GetString(guildID, module, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("设置 %s/%s 的值 %q 不是浮点数: %w", module, key, str, err)
	}
	return v, nil
}

// GetBool 返回一个布尔设置值。
func GetBool(guildID, module, key string) (bool, error) {
	str, err := GetString(guildID, module, key)
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("设置 %s/%s 的值 %q 不是布尔值: %w", module, key, str, err)
	}
	return v, nil
}

// GetStringList 返回一个逗号分隔的列表设置值；空串视为空列表。
func GetStringList(guildID, module, key string) ([]string, error) {
	str, err := GetString(guildID, module, key)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(str) == "" {
		return nil, nil
	}
	parts := strings.Split(str, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// Set 写入一条公会设置，并同步更新缓存。
func Set(guildID, module, key, value string) error {
	s := Setting{
		GuildID: guildID,
		Module:  module,
		Key:     key,
		Value:   value,
	}
	err := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "module"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&s).Error
	if err != nil {
		return fmt.Errorf("写入设置失败: %w", err)
	}

	if database.IsRedisHealthy() {
		if err := database.RDB.HSet(database.Ctx, cacheKey(guildID, module), key, value).Err(); err != nil {
			fmt.Printf("警告: 更新设置缓存失败: %v\n", err)
		}
	}
	return nil
}

// ModuleValues 返回一个公会在某模块下的全部生效值（默认值被覆盖项遮盖）。
func ModuleValues(guildID, module string) (map[string]string, error) {
	out := make(map[string]string)

	defaultsMutex.RLock()
	for k, v := range moduleDefaults[module] {
		out[k] = v
	}
	defaultsMutex.RUnlock()

	var rows []Setting
	err := database.DB.Where("guild_id = ? AND module = ?", guildID, module).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("读取模块设置失败: %w", err)
	}
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// FlushCache 清空所有设置缓存，在Redis重建时由startup调用。
// 缓存会在后续读取时按需回填。
func FlushCache() error {
	var cursor uint64
	for {
		keys, next, err := database.RDB.Scan(database.Ctx, cursor, cacheKeyPrefix+"*", 500).Result()
		if err != nil {
			return fmt.Errorf("扫描设置缓存键失败: %w", err)
		}
		if len(keys) > 0 {
			if err := database.RDB.Del(database.Ctx, keys...).Err(); err != nil {
				return fmt.Errorf("删除设置缓存键失败: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
