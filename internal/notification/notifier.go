package notification

import (
	"fmt"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
)

// Notifier 是版主告警的协作方接口（例如发往审核频道）。
type Notifier interface {
	Notify(guildID, message string) error
}

// Announcer 是公开播报的协作方接口（例如发往公共频道）。
type Announcer interface {
	Announce(guildID, message string) error
}

// Dispatcher 负责在选定的事实类别落盘后做尽力而为的消息扇出。
// 任一协作方为nil或返回错误时只记录日志，绝不影响主流程。
type Dispatcher struct {
	notifier  Notifier
	announcer Announcer
}

// NewDispatcher 创建一个扇出器。notifier和announcer都允许为nil。
func NewDispatcher(n Notifier, a Announcer) *Dispatcher {
	return &Dispatcher{notifier: n, announcer: a}
}

// Register 把扇出器挂到事件存储的追加回调上。
func (d *Dispatcher) Register() {
	event.RegisterObserver(d.handleEvent)
}

// handleEvent 按事实类别决定扇出目标。
// 扇出相对写入方是fire-and-forget的，放到独立Goroutine里执行。
func (d *Dispatcher) handleEvent(e event.Event) {
	switch e.Type {
	case event.TypeJail:
		switch e.JailReason {
		case event.JailReasonJail:
			go d.announce(e.GuildID, fmt.Sprintf("%s 被 %s 关进了监狱，刑期 %d 分钟。", e.MemberID, e.ActorID, e.Value))
		case event.JailReasonRelease:
			go d.announce(e.GuildID, fmt.Sprintf("%s 被释放了。", e.MemberID))
		}
	case event.TypeTimeout:
		go d.notify(e.GuildID, fmt.Sprintf("%s 因刷屏被禁言 %d 秒。", e.MemberID, e.Value))
	case event.TypeSpam:
		go d.notify(e.GuildID, fmt.Sprintf("%s 触发了刷屏检测。", e.MemberID))
	}
}

func (d *Dispatcher) notify(guildID, message string) {
	if d.notifier == nil {
		return // 没有配置告警目的地，静默跳过
	}
	if err := d.notifier.Notify(guildID, message); err != nil {
		fmt.Printf("警告: 版主告警发送失败 (guild %s): %v\n", guildID, err)
	}
}

func (d *Dispatcher) announce(guildID, message string) {
	if d.announcer == nil {
		return
	}
	if err := d.announcer.Announce(guildID, message); err != nil {
		fmt.Printf("警告: 公开播报发送失败 (guild %s): %v\n", guildID, err)
	}
}
