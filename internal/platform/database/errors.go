package database

import "strings"

// IsRetryableError 判断一个错误是否为暂时性的SQLite锁冲突，可以安全重试。
// 事件存储的Append在命中时隔一拍重试一次。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
