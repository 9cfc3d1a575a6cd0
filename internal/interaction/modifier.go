package interaction

import (
	"fmt"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"gorm.io/gorm"
)

// ModifierKind 是修正道具的能力词汇表。
// 引擎只认识这些能力，不关心道具在商店里叫什么。
type ModifierKind string

const (
	// KindValueModifier 把基础增量乘上一个倍率
	KindValueModifier ModifierKind = "value_modifier"
	// KindAutoCrit 强制本次动作暴击
	KindAutoCrit ModifierKind = "auto_crit"
	// KindStabilizer 把随机类动作的下界抬到零
	KindStabilizer ModifierKind = "stabilizer"
	// KindAdvantage 随机类动作重掷一次，保留绝对值更大的结果
	KindAdvantage ModifierKind = "advantage"
	// KindBonusAttempt 绕过每监禁一次的动作去重
	KindBonusAttempt ModifierKind = "bonus_attempt"
	// KindFlatBonus 在倍率之后加一个固定值
	KindFlatBonus ModifierKind = "flat_bonus"
	// KindProtection 仅对正增量生效的乘法减伤，持有方是目标
	KindProtection ModifierKind = "protection"
	// KindReleaseOverride 大型覆盖：直接释放目标
	KindReleaseOverride ModifierKind = "release_override"
	// KindStunOverride 大型覆盖：对目标施加禁言
	KindStunOverride ModifierKind = "stun_override"
)

// Modifier 是持有在成员物品栏里的一个激活修正道具。
// Version 是乐观并发戳：消耗时必须带着读取到的版本做条件更新，
// 两个并发调用不可能消耗同一个单次道具两次。
type Modifier struct {
	gorm.Model

	GuildID   string       `gorm:"index:idx_owner;not null;type:varchar(32)" json:"guild_id"`
	OwnerID   string       `gorm:"index:idx_owner;not null;type:varchar(32)" json:"owner_id"`
	Kind      ModifierKind `gorm:"not null;type:varchar(24)" json:"kind"`
	Value     float64      `json:"value"`
	Permanent bool         `json:"permanent"`
	Consumed  bool         `gorm:"index" json:"consumed"`
	Version   uint         `gorm:"not null;default:0" json:"-"`
}

// activeModifiers 返回一个成员当前未消耗的修正道具，按获得顺序排列。
func activeModifiers(guildID, ownerID string) ([]Modifier, error) {
	var mods []Modifier
	err := database.DB.
		Where("guild_id = ? AND owner_id = ? AND consumed = ?", guildID, ownerID, false).
		Order("id asc").Find(&mods).Error
	if err != nil {
		return nil, fmt.Errorf("读取修正道具失败: %w", err)
	}
	return mods, nil
}

// GrantModifier 给一个成员发放修正道具。
func GrantModifier(guildID, ownerID string, kind ModifierKind, value float64, permanent bool) (*Modifier, error) {
	m := &Modifier{
		GuildID:   guildID,
		OwnerID:   ownerID,
		Kind:      kind,
		Value:     value,
		Permanent: permanent,
	}
	if err := database.DB.Create(m).Error; err != nil {
		return nil, fmt.Errorf("发放修正道具失败: %w", err)
	}
	return m, nil
}

// errVersionConflict 表示条件更新没有命中任何行：道具已被并发消耗
var errVersionConflict = fmt.Errorf("修正道具版本冲突")

// consumeModifierTx 在事务内按版本条件消耗一个道具。
// 永久道具没有消耗语义，使用不改变任何状态，直接跳过。
func consumeModifierTx(tx *gorm.DB, m Modifier) error {
	if m.Permanent {
		return nil
	}
	result := tx.Model(&Modifier{}).
		Where("id = ? AND version = ? AND consumed = ?", m.ID, m.Version, false).
		Updates(map[string]interface{}{"consumed": true, "version": m.Version + 1})
	if result.Error != nil {
		return fmt.Errorf("消耗修正道具失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errVersionConflict
	}
	return nil
}
