package ledger

import (
	"fmt"
	"time"
)

// Season 是一个命名的半开时间窗口 [Start, End)。
// End为零值表示赛季仍未结束，查询时没有上界。
// 所有聚合查询都以赛季为参数，历史视图和当前视图共用同一张事实表。
type Season struct {
	Name  string
	Start time.Time
	End   time.Time
}

// AllTime 是覆盖整个事实日志的默认赛季。
var AllTime = Season{Name: "all-time"}

// Open 报告赛季是否没有上界。
func (s Season) Open() bool {
	return s.End.IsZero()
}

// Contains 报告一个时间点是否落在赛季窗口内。
func (s Season) Contains(t time.Time) bool {
	if !s.Start.IsZero() && t.Before(s.Start) {
		return false
	}
	if !s.End.IsZero() && !t.Before(s.End) {
		return false
	}
	return true
}

// ParseSeason 从RFC3339格式的起止参数构造赛季，两个参数都允许为空。
func ParseSeason(startStr, endStr string) (Season, error) {
	s := Season{Name: "custom"}
	if startStr == "" && endStr == "" {
		return AllTime, nil
	}
	if startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return Season{}, fmt.Errorf("season_start 不是合法的RFC3339时间: %w", err)
		}
		s.Start = start
	}
	if endStr != "" {
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return Season{}, fmt.Errorf("season_end 不是合法的RFC3339时间: %w", err)
		}
		s.End = end
	}
	if !s.Start.IsZero() && !s.End.IsZero() && !s.Start.Before(s.End) {
		return Season{}, fmt.Errorf("赛季窗口为空: start不早于end")
	}
	return s, nil
}
