package interaction

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
)

// Input 汇集一次动作计算所需的全部状态。
// 引擎本身是纯函数：状态读取和结果落盘都由service负责。
type Input struct {
	Kind     event.InteractionKind
	ActorID  string
	TargetID string

	// SentenceID 为0表示目标不在监狱里，增量只计算不落盘
	SentenceID uint
	// AlreadyUsed 表示actor已对这条监禁用过同类动作
	AlreadyUsed bool
	// Remaining 是目标监禁的剩余分钟数
	Remaining int64

	// 来自settings的参数
	BaseValue int64
	FartMin   int64
	FartMax   int64
	CritRate  float64
	CritMult  float64

	ActorModifiers  []Modifier
	TargetModifiers []Modifier
}

// Outcome 是一次动作计算的结果。
type Outcome struct {
	// Performed 为false时动作被去重拒绝，没有任何状态变更
	Performed bool
	// RejectReason 在拒绝时给出可直接展示的原因
	RejectReason string

	// Override 非空时表示一个大型覆盖道具生效，Delta无意义
	Override ModifierKind

	Delta     int64
	Crit      bool
	Breakdown []string
	// Consumed 列出需要标记消耗的道具（按读取时的版本）
	Consumed []Modifier
}

// roller 抽象随机源便于测试
type roller interface {
	Int63n(n int64) int64
	Float64() float64
}

// Resolve 按固定顺序执行修正道具算法。
// 大型覆盖最先结算且排他；随后是动作去重；再往后依次是
// 基础增量、倍率与固定加值、目标减伤、下界钳制、暴击。
func Resolve(in Input, rng roller) Outcome {
	out := Outcome{Performed: true}

	// 大型覆盖：一旦生效，本次调用不再结算其他任何道具
	for _, m := range in.ActorModifiers {
		if m.Kind == KindReleaseOverride || m.Kind == KindStunOverride {
			out.Override = m.Kind
			out.Consumed = append(out.Consumed, m)
			out.Breakdown = append(out.Breakdown, fmt.Sprintf("大型覆盖 %s 生效", m.Kind))
			return out
		}
	}

	// 每监禁一次的去重，bonus_attempt可以绕过
	if in.AlreadyUsed && in.SentenceID != 0 {
		bonus := firstOfKind(in.ActorModifiers, KindBonusAttempt)
		if bonus == nil {
			out.Performed = false
			out.RejectReason = "本次监禁已经用过这个动作了"
			return out
		}
		out.Consumed = append(out.Consumed, *bonus)
		out.Breakdown = append(out.Breakdown, "额外尝试: 绕过动作去重")
	}

	delta := baseDelta(in, rng, &out)

	// 倍率：有value_modifier时求和，否则默认1
	multiplier := 1.0
	var multSum float64
	var multApplied bool
	for _, m := range in.ActorModifiers {
		if m.Kind == KindValueModifier {
			multSum += m.Value
			multApplied = true
			out.Consumed = append(out.Consumed, m)
		}
	}
	if multApplied {
		multiplier = multSum
		out.Breakdown = append(out.Breakdown, fmt.Sprintf("倍率修正: x%.2f", multiplier))
	}
	delta *= multiplier

	// 固定加值：符号反转类动作连加值一起反转
	for _, m := range in.ActorModifiers {
		if m.Kind == KindFlatBonus {
			bonus := m.Value
			if in.Kind == event.InteractionPet {
				bonus = -bonus
			}
			delta += bonus
			out.Consumed = append(out.Consumed, m)
			out.Breakdown = append(out.Breakdown, fmt.Sprintf("固定加值: %+.0f", bonus))
		}
	}

	// 目标减伤：只对正增量生效，多个实例乘法叠加
	if delta > 0 {
		for _, m := range in.TargetModifiers {
			if m.Kind == KindProtection {
				delta *= m.Value
				out.Consumed = append(out.Consumed, m)
				out.Breakdown = append(out.Breakdown, fmt.Sprintf("目标减伤: x%.2f", m.Value))
			}
		}
	}

	// 钳制：单次动作不能把剩余时长打穿到下界以下
	floor := float64(-(in.Remaining + 1))
	if delta < floor {
		delta = floor
		out.Breakdown = append(out.Breakdown, fmt.Sprintf("下界钳制: %+.0f", delta))
	}

	// 暴击：掷骰或被auto_crit强制
	crit := false
	if auto := firstOfKind(in.ActorModifiers, KindAutoCrit); auto != nil {
		crit = true
		out.Consumed = append(out.Consumed, *auto)
		out.Breakdown = append(out.Breakdown, "必定暴击道具生效")
	} else if in.CritRate > 0 && rng.Float64() < in.CritRate {
		crit = true
	}
	if crit {
		delta *= in.CritMult
		out.Crit = true
		out.Breakdown = append(out.Breakdown, fmt.Sprintf("暴击! x%.2f", in.CritMult))
	}

	out.Delta = int64(math.Round(delta))
	out.Breakdown = append(out.Breakdown, fmt.Sprintf("最终增量: %+d 分钟", out.Delta))
	return out
}

// baseDelta 计算基础增量并结算随机类专属的道具。
func baseDelta(in Input, rng roller, out *Outcome) float64 {
	switch in.Kind {
	case event.InteractionSlap:
		out.Breakdown = append(out.Breakdown, fmt.Sprintf("基础增量: %+d", in.BaseValue))
		return float64(in.BaseValue)
	case event.InteractionPet:
		out.Breakdown = append(out.Breakdown, fmt.Sprintf("基础增量: %+d", -in.BaseValue))
		return float64(-in.BaseValue)
	case event.InteractionFart:
		lo, hi := in.FartMin, in.FartMax
		// 动作方的稳定器把随机下界抬到零，保证不会掷出负数
		if stab := firstOfKind(in.ActorModifiers, KindStabilizer); stab != nil && lo < 0 {
			lo = 0
			out.Consumed = append(out.Consumed, *stab)
			out.Breakdown = append(out.Breakdown, "稳定器: 随机下界抬升到0")
		}
		roll := rollBetween(rng, lo, hi)
		// 优势重掷一次，保留绝对值更大的结果
		if adv := firstOfKind(in.ActorModifiers, KindAdvantage); adv != nil {
			second := rollBetween(rng, lo, hi)
			if abs64(second) > abs64(roll) {
				roll = second
			}
			out.Consumed = append(out.Consumed, *adv)
			out.Breakdown = append(out.Breakdown, fmt.Sprintf("优势重掷: 保留 %+d", roll))
		}
		out.Breakdown = append(out.Breakdown, fmt.Sprintf("基础增量: %+d (范围 [%d, %d])", roll, lo, hi))
		return float64(roll)
	}
	return 0
}

func rollBetween(rng roller, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Int63n(hi-lo+1)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func firstOfKind(mods []Modifier, kind ModifierKind) *Modifier {
	for i := range mods {
		if mods[i].Kind == kind {
			return &mods[i]
		}
	}
	return nil
}

// globalRoller 走全局随机源，可以被并发调用
type globalRoller struct{}

func (globalRoller) Int63n(n int64) int64 { return rand.Int63n(n) }
func (globalRoller) Float64() float64     { return rand.Float64() }

var defaultRoller roller = globalRoller{}
