package ring

import (
	"fmt"
	"time"
)

// TimeRing 是一个固定容量的时间戳环形缓冲区。
// 写满后，新写入会覆盖最旧的条目。它不做任何并发保护，调用方需要自己持锁。
type TimeRing struct {
	buf      []time.Time
	capacity int
	head     int // 下一个写入位置
	size     int
}

// NewTimeRing 创建一个指定容量的空环形缓冲区。
func NewTimeRing(capacity int) (*TimeRing, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("环形缓冲区容量必须为正数")
	}
	return &TimeRing{
		buf:      make([]time.Time, capacity),
		capacity: capacity,
	}, nil
}

// Push 写入一个新的时间戳，必要时覆盖最旧的条目。
func (r *TimeRing) Push(t time.Time) {
	r.buf[r.head] = t
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Len 返回当前存储的条目数。
func (r *TimeRing) Len() int {
	return r.size
}

// Cap 返回缓冲区容量。
func (r *TimeRing) Cap() int {
	return r.capacity
}

// Recent 返回从最新往旧数第i个时间戳（i=0为最新）。
// 当i超出已有条目时返回false。
func (r *TimeRing) Recent(i int) (time.Time, bool) {
	if i < 0 || i >= r.size {
		return time.Time{}, false
	}
	pos := (r.head - 1 - i + 2*r.capacity) % r.capacity
	return r.buf[pos], true
}

// Span 计算跳过最新的offset个条目后，连续limit个条目之间的时间跨度。
// 条目不足时返回false。
func (r *TimeRing) Span(limit, offset int) (time.Duration, bool) {
	if limit <= 1 || offset < 0 {
		return 0, false
	}
	newest, ok := r.Recent(offset)
	if !ok {
		return 0, false
	}
	oldest, ok := r.Recent(offset + limit - 1)
	if !ok {
		return 0, false
	}
	return newest.Sub(oldest), true
}

// Clear 清空缓冲区。
func (r *TimeRing) Clear() {
	r.head = 0
	r.size = 0
}
