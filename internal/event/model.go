package event

import (
	"fmt"
	"time"
)

// Type 是事实记录的类别判别符
type Type string

const (
	// TypeBeans 表示一次货币变动
	TypeBeans Type = "beans"
	// TypeJail 表示一次监禁时长增减
	TypeJail Type = "jail"
	// TypeInteraction 表示一次玩家对玩家的动作
	TypeInteraction Type = "interaction"
	// TypeTimeout 表示一次禁言处罚
	TypeTimeout Type = "timeout"
	// TypeSpam 表示一次刷屏判定
	TypeSpam Type = "spam"
	// TypeInventory 表示一次道具持有量变动
	TypeInventory Type = "inventory"
)

// BeansReason 说明一次货币变动的来源
type BeansReason string

const (
	BeansReasonDaily         BeansReason = "daily"
	BeansReasonGambaCost     BeansReason = "gamba_cost"
	BeansReasonGambaPayout   BeansReason = "gamba_payout"
	BeansReasonTransfer      BeansReason = "transfer"
	BeansReasonShopPurchase  BeansReason = "shop_purchase"
	BeansReasonBalanceChange BeansReason = "balance_change"
)

// JailReason 说明一次监禁时长增减的来源
type JailReason string

const (
	JailReasonJail    JailReason = "jail"
	JailReasonSlap    JailReason = "slap"
	JailReasonPet     JailReason = "pet"
	JailReasonFart    JailReason = "fart"
	JailReasonExtend  JailReason = "extend"
	JailReasonReduce  JailReason = "reduce"
	JailReasonRelease JailReason = "release"
)

// InteractionKind 是三种对称玩家动作之一
type InteractionKind string

const (
	InteractionSlap InteractionKind = "slap"
	InteractionPet  InteractionKind = "pet"
	InteractionFart InteractionKind = "fart"
)

// Event 定义了单条事实记录的数据结构。
// 记录一旦写入便不可变，所有派生状态都从它回放得出。
// 每个类别只使用与自己相关的负载列，其余列保持零值。
type Event struct {
	// ID 由存储层单调分配
	ID uint `gorm:"primarykey" json:"id"`

	// Timestamp 是事实发生的时间
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`

	// GuildID 是事实所属的公会
	GuildID string `gorm:"index;not null;type:varchar(32)" json:"guild_id"`

	// Type 标识事实的类别
	Type Type `gorm:"index;not null;type:varchar(16)" json:"type"`

	// MemberID 是引发这条事实的成员
	MemberID string `gorm:"index;type:varchar(32)" json:"member_id"`

	// --- beans 负载 ---

	// Reason 是货币变动的来源
	Reason BeansReason `gorm:"type:varchar(24)" json:"reason,omitempty"`

	// Value 是带符号的数值负载（beans数量、监禁分钟数、禁言秒数）
	Value int64 `json:"value,omitempty"`

	// --- jail 负载 ---

	// JailReason 是时长增减的来源
	JailReason JailReason `gorm:"type:varchar(16)" json:"jail_reason,omitempty"`

	// ActorID 是执行增减的成员
	ActorID string `gorm:"type:varchar(32)" json:"actor_id,omitempty"`

	// SentenceID 关联到具体的监禁记录
	SentenceID uint `gorm:"index" json:"sentence_id,omitempty"`

	// --- interaction 负载 ---

	// Kind 是玩家动作的类别
	Kind InteractionKind `gorm:"type:varchar(16)" json:"kind,omitempty"`

	FromID string `gorm:"type:varchar(32)" json:"from_id,omitempty"`
	ToID   string `gorm:"type:varchar(32)" json:"to_id,omitempty"`

	// --- inventory 负载 ---

	ItemType string `gorm:"type:varchar(32)" json:"item_type,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
}

// --- 类型化构造函数 ---
// 事实只能通过这些构造函数产生，保证每个类别的负载列组合是封闭的。

// NewBeansEvent 构造一条货币变动事实。
func NewBeansEvent(guildID, memberID string, reason BeansReason, value int64) *Event {
	return &Event{
		Timestamp: time.Now(),
		GuildID:   guildID,
		Type:      TypeBeans,
		MemberID:  memberID,
		Reason:    reason,
		Value:     value,
	}
}

// NewJailEvent 构造一条监禁时长增减事实，value以分钟计。
func NewJailEvent(guildID, memberID, actorID string, reason JailReason, minutes int64, sentenceID uint) *Event {
	return &Event{
		Timestamp:  time.Now(),
		GuildID:    guildID,
		Type:       TypeJail,
		MemberID:   memberID,
		JailReason: reason,
		ActorID:    actorID,
		Value:      minutes,
		SentenceID: sentenceID,
	}
}

// NewInteractionEvent 构造一条玩家动作事实。
// sentenceID 可以为0，表示动作与任何监禁无关。
func NewInteractionEvent(guildID string, kind InteractionKind, fromID, toID string, sentenceID uint) *Event {
	return &Event{
		Timestamp:  time.Now(),
		GuildID:    guildID,
		Type:       TypeInteraction,
		MemberID:   fromID,
		Kind:       kind,
		FromID:     fromID,
		ToID:       toID,
		SentenceID: sentenceID,
	}
}

// NewTimeoutEvent 构造一条禁言事实，value以秒计。
func NewTimeoutEvent(guildID, memberID string, seconds int64) *Event {
	return &Event{
		Timestamp: time.Now(),
		GuildID:   guildID,
		Type:      TypeTimeout,
		MemberID:  memberID,
		Value:     seconds,
	}
}

// NewSpamEvent 构造一条刷屏判定事实。
func NewSpamEvent(guildID, memberID string) *Event {
	return &Event{
		Timestamp: time.Now(),
		GuildID:   guildID,
		Type:      TypeSpam,
		MemberID:  memberID,
	}
}

// NewInventoryEvent 构造一条道具持有量变动事实。
func NewInventoryEvent(guildID, memberID, itemType string, amount int64) *Event {
	return &Event{
		Timestamp: time.Now(),
		GuildID:   guildID,
		Type:      TypeInventory,
		MemberID:  memberID,
		ItemType:  itemType,
		Amount:    amount,
	}
}

// Validate 在写入前做穷尽的类别校验。
// 任何未知类别都会被存储层拒绝，而不是被悄悄落盘。
func (e *Event) Validate() error {
	if e.GuildID == "" {
		return fmt.Errorf("事实缺少guild_id")
	}
	switch e.Type {
	case TypeBeans:
		if e.MemberID == "" || e.Reason == "" {
			return fmt.Errorf("beans事实缺少member_id或reason")
		}
	case TypeJail:
		if e.MemberID == "" || e.JailReason == "" || e.SentenceID == 0 {
			return fmt.Errorf("jail事实缺少member_id、jail_reason或sentence_id")
		}
	case TypeInteraction:
		if e.Kind == "" || e.FromID == "" || e.ToID == "" {
			return fmt.Errorf("interaction事实缺少kind、from_id或to_id")
		}
	case TypeTimeout:
		if e.MemberID == "" || e.Value <= 0 {
			return fmt.Errorf("timeout事实缺少member_id或时长")
		}
	case TypeSpam:
		if e.MemberID == "" {
			return fmt.Errorf("spam事实缺少member_id")
		}
	case TypeInventory:
		if e.MemberID == "" || e.ItemType == "" {
			return fmt.Errorf("inventory事实缺少member_id或item_type")
		}
	default:
		return fmt.Errorf("未知的事实类别: %s", e.Type)
	}
	return nil
}
