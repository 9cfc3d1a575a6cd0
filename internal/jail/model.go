package jail

import (
	"time"

	"gorm.io/gorm"
)

// Sentence 定义了监禁记录在SQLite中的持久化模型。
// 注意它不存储剩余时长：时长永远从事件日志里的增减事实回放得出。
// ReleasedOn 是整个系统里唯一允许的一次性补丁字段，由释放事实固定。
type Sentence struct {
	ID uint `gorm:"primarykey" json:"id"`

	GuildID  string `gorm:"index:idx_guild_member;not null;type:varchar(32)" json:"guild_id"`
	MemberID string `gorm:"index:idx_guild_member;not null;type:varchar(32)" json:"member_id"`

	// JailedOn 是刑期的起算时间
	JailedOn time.Time `gorm:"not null" json:"jailed_on"`

	// ReleasedOn 在刑期存续期间为nil
	ReleasedOn *time.Time `json:"released_on,omitempty"`

	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Active 表示这条监禁是否仍在执行中。
func (s *Sentence) Active() bool {
	return s.ReleasedOn == nil
}
