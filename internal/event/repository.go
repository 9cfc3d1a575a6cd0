package event

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"gorm.io/gorm"
)

// Observer 在一条事实成功落盘后被调用。
// 回调必须快速返回，耗时工作应该转交给自己的Goroutine或队列。
type Observer func(Event)

var (
	observerMutex sync.RWMutex
	observers     []Observer
)

// RegisterObserver 注册一个追加事实后的回调（通知扇出、缓存处理器等）。
func RegisterObserver(fn Observer) {
	observerMutex.Lock()
	defer observerMutex.Unlock()
	observers = append(observers, fn)
}

// notifyObservers 依次调用所有已注册的回调。
func notifyObservers(e Event) {
	observerMutex.RLock()
	defer observerMutex.RUnlock()
	for _, fn := range observers {
		fn(e)
	}
}

// Append 将一条事实写入日志并返回存储层分配的ID。
// 这是事件存储仅有的写入口；除监禁记录的释放时间补丁外，不存在任何更新或删除。
// 暂时性的SQLite锁冲突会隔一拍重试一次；写入成功后同步触发观察者回调。
func Append(e *Event) (uint, error) {
	id, err := AppendTx(database.DB, e)
	if err != nil {
		if !database.IsRetryableError(err) {
			return 0, err
		}
		time.Sleep(50 * time.Millisecond)
		if id, err = AppendTx(database.DB, e); err != nil {
			return 0, err
		}
	}
	NotifyAppended(*e)
	return id, nil
}

// AppendTx 在给定的事务中写入一条事实。
// 供需要把事实写入和其他表变更绑成一个事务的调用方使用。
// 这里不触发观察者回调：事务可能回滚，被回滚的事实绝不能被观察者看到。
// 调用方必须在事务提交成功后自行调用 NotifyAppended。
func AppendTx(db *gorm.DB, e *Event) (uint, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if err := db.Create(e).Error; err != nil {
		return 0, fmt.Errorf("无法写入事实: %w", err)
	}
	return e.ID, nil
}

// NotifyAppended 在一条事实确定落盘之后触发观察者回调。
// Append 会自动调用；走 AppendTx 的调用方在外部事务提交后补发。
func NotifyAppended(e Event) {
	notifyObservers(e)
}

// Query 描述一次事实查询。零值字段不参与过滤。
// 时间区间是半开的 [Start, End)；End为零值时表示没有上界。
type Query struct {
	GuildID    string
	Type       Type
	MemberID   string
	FromID     string
	ToID       string
	SentenceID uint
	JailReason JailReason
	ActorID    string
	Kinds      []InteractionKind
	Reasons    []BeansReason
	Start      time.Time
	End        time.Time
	Limit      int
}

// apply 把查询条件转换为gorm语句。
func (q Query) apply(db *gorm.DB) *gorm.DB {
	stmt := db.Model(&Event{})
	if q.GuildID != "" {
		stmt = stmt.Where("guild_id = ?", q.GuildID)
	}
	if q.Type != "" {
		stmt = stmt.Where("type = ?", q.Type)
	}
	if q.MemberID != "" {
		stmt = stmt.Where("member_id = ?", q.MemberID)
	}
	if q.FromID != "" {
		stmt = stmt.Where("from_id = ?", q.FromID)
	}
	if q.ToID != "" {
		stmt = stmt.Where("to_id = ?", q.ToID)
	}
	if q.SentenceID != 0 {
		stmt = stmt.Where("sentence_id = ?", q.SentenceID)
	}
	if q.JailReason != "" {
		stmt = stmt.Where("jail_reason = ?", q.JailReason)
	}
	if q.ActorID != "" {
		stmt = stmt.Where("actor_id = ?", q.ActorID)
	}
	if len(q.Kinds) > 0 {
		stmt = stmt.Where("kind IN ?", q.Kinds)
	}
	if len(q.Reasons) > 0 {
		stmt = stmt.Where("reason IN ?", q.Reasons)
	}
	if !q.Start.IsZero() {
		stmt = stmt.Where("timestamp >= ?", q.Start)
	}
	if !q.End.IsZero() {
		stmt = stmt.Where("timestamp < ?", q.End)
	}
	return stmt
}

// Find 返回匹配的事实，按时间戳从旧到新排序。
// 没有匹配时返回空切片；错误永远显式上抛，不会伪装成空结果。
func Find(q Query) ([]Event, error) {
	var events []Event
	stmt := q.apply(database.DB).Order("id asc")
	if q.Limit > 0 {
		stmt = stmt.Limit(q.Limit)
	}
	if err := stmt.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("查询事实失败: %w", err)
	}
	return events, nil
}

// Last 返回匹配的最新一条事实；没有匹配时返回nil。
func Last(q Query) (*Event, error) {
	var e Event
	err := q.apply(database.DB).Order("id desc").First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询最新事实失败: %w", err)
	}
	return &e, nil
}

// Count 返回匹配的事实条数。
func Count(q Query) (int64, error) {
	var count int64
	if err := q.apply(database.DB).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计事实失败: %w", err)
	}
	return count, nil
}

// SumValue 返回匹配事实的value列之和。
func SumValue(q Query) (int64, error) {
	var sum *int64
	err := q.apply(database.DB).Select("SUM(value)").Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("累加事实失败: %w", err)
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// FindAfterID 返回ID大于给定检查点的事实，按ID升序，供缓存处理器的巡查员使用。
func FindAfterID(guildAgnosticStartID uint, limit int) ([]Event, error) {
	var events []Event
	err := database.DB.Where("id > ?", guildAgnosticStartID).Order("id asc").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("按检查点查询事实失败: %w", err)
	}
	return events, nil
}
