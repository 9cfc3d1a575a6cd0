package interaction

import (
	"errors"
	"fmt"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/jail"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/settings"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Result 是一次动作调用的对外结果。
type Result struct {
	InvocationID string   `json:"invocation_id"`
	Performed    bool     `json:"performed"`
	RejectReason string   `json:"reject_reason,omitempty"`
	Delta        int64    `json:"delta"`
	Crit         bool     `json:"crit"`
	Released     bool     `json:"released,omitempty"`
	Stunned      bool     `json:"stunned,omitempty"`
	Remaining    int64    `json:"remaining_minutes"`
	Breakdown    []string `json:"breakdown"`
}

// jailReasonFor 把动作类别映射到对应的时长增减来源。
func jailReasonFor(kind event.InteractionKind) event.JailReason {
	switch kind {
	case event.InteractionSlap:
		return event.JailReasonSlap
	case event.InteractionPet:
		return event.JailReasonPet
	default:
		return event.JailReasonFart
	}
}

// Perform 执行一次玩家对玩家的动作。
// 道具消耗和产生的事实在一个事务里落盘；单次道具的乐观版本检查
// 失败时整个计算重做一次，第二次仍冲突则把冲突上抛。
func Perform(guildID string, kind event.InteractionKind, actorID, targetID string) (*Result, error) {
	switch kind {
	case event.InteractionSlap, event.InteractionPet, event.InteractionFart:
	default:
		return nil, fmt.Errorf("未知的动作类别: %s", kind)
	}
	if actorID == targetID {
		return &Result{
			InvocationID: uuid.NewString(),
			Performed:    false,
			RejectReason: "不能对自己使用这个动作",
		}, nil
	}

	result, err := attemptPerform(guildID, kind, actorID, targetID)
	if errors.Is(err, errVersionConflict) {
		// 并发调用抢先消耗了某个道具，基于最新状态重算一次
		fmt.Printf("动作引擎: 检测到道具版本冲突，重算一次 (guild %s, actor %s)\n", guildID, actorID)
		result, err = attemptPerform(guildID, kind, actorID, targetID)
	}
	return result, err
}

func attemptPerform(guildID string, kind event.InteractionKind, actorID, targetID string) (*Result, error) {
	invocationID := uuid.NewString()

	sentence, err := jail.ActiveSentence(guildID, targetID)
	if err != nil {
		return nil, err
	}

	var sentenceID uint
	var remaining int64
	alreadyUsed := false
	if sentence != nil {
		sentenceID = sentence.ID
		remaining, err = jail.Remaining(sentence)
		if err != nil {
			return nil, err
		}
		used, err := event.Count(event.Query{
			GuildID:    guildID,
			Type:       event.TypeInteraction,
			FromID:     actorID,
			SentenceID: sentenceID,
			Kinds:      []event.InteractionKind{kind},
		})
		if err != nil {
			return nil, err
		}
		alreadyUsed = used > 0
	}

	in, err := buildInput(guildID, kind, actorID, targetID, sentenceID, alreadyUsed, remaining)
	if err != nil {
		return nil, err
	}

	out := Resolve(in, defaultRoller)
	if !out.Performed {
		return &Result{
			InvocationID: invocationID,
			Performed:    false,
			RejectReason: out.RejectReason,
			Remaining:    remaining,
		}, nil
	}

	// 道具消耗和事实写入是一个原子步骤；
	// 观察者回调等事务提交成功后再补发，回滚的事实不能外泄
	var appended []*event.Event
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		appended = appended[:0]
		for _, m := range out.Consumed {
			if err := consumeModifierTx(tx, m); err != nil {
				return err
			}
		}
		fact := event.NewInteractionEvent(guildID, kind, actorID, targetID, sentenceID)
		if _, err := event.AppendTx(tx, fact); err != nil {
			return err
		}
		appended = append(appended, fact)
		if sentence != nil && out.Override == "" && out.Delta != 0 {
			deltaFact, err := jail.ApplyDeltaTx(tx, sentence, actorID, jailReasonFor(kind), out.Delta)
			if err != nil {
				return err
			}
			appended = append(appended, deltaFact)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, f := range appended {
		event.NotifyAppended(*f)
	}
	if sentence != nil {
		jail.InvalidateDurationCache(sentenceID)
	}

	result := &Result{
		InvocationID: invocationID,
		Performed:    true,
		Delta:        out.Delta,
		Crit:         out.Crit,
		Breakdown:    out.Breakdown,
	}

	// 大型覆盖作为后续独立操作结算
	switch out.Override {
	case KindReleaseOverride:
		if sentence != nil {
			release, err := jail.Release(guildID, actorID, targetID)
			if err != nil {
				return nil, err
			}
			result.Released = release.Released
		}
	case KindStunOverride:
		seconds, err := settings.GetInt(guildID, settings.ModulePolice, settings.KeyPoliceTimeoutDuration)
		if err != nil {
			return nil, err
		}
		if _, err := event.Append(event.NewTimeoutEvent(guildID, targetID, seconds)); err != nil {
			return nil, err
		}
		result.Stunned = true
	}

	if sentence != nil && out.Override == "" {
		result.Remaining, err = jail.Remaining(sentence)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// buildInput 从设置和物品栏装配一次计算的输入。
func buildInput(guildID string, kind event.InteractionKind, actorID, targetID string, sentenceID uint, alreadyUsed bool, remaining int64) (Input, error) {
	in := Input{
		Kind:        kind,
		ActorID:     actorID,
		TargetID:    targetID,
		SentenceID:  sentenceID,
		AlreadyUsed: alreadyUsed,
		Remaining:   remaining,
	}

	var err error
	switch kind {
	case event.InteractionSlap:
		in.BaseValue, err = settings.GetInt(guildID, settings.ModuleJail, settings.KeyJailSlapTime)
	case event.InteractionPet:
		in.BaseValue, err = settings.GetInt(guildID, settings.ModuleJail, settings.KeyJailPetTime)
	case event.InteractionFart:
		in.FartMin, err = settings.GetInt(guildID, settings.ModuleJail, settings.KeyJailFartMin)
		if err == nil {
			in.FartMax, err = settings.GetInt(guildID, settings.ModuleJail, settings.KeyJailFartMax)
		}
	}
	if err != nil {
		return Input{}, err
	}

	in.CritRate, err = settings.GetFloat(guildID, settings.ModuleJail, settings.KeyJailBaseCritRate)
	if err != nil {
		return Input{}, err
	}
	in.CritMult, err = settings.GetFloat(guildID, settings.ModuleJail, settings.KeyJailBaseCritMult)
	if err != nil {
		return Input{}, err
	}

	in.ActorModifiers, err = activeModifiers(guildID, actorID)
	if err != nil {
		return Input{}, err
	}
	in.TargetModifiers, err = activeModifiers(guildID, targetID)
	if err != nil {
		return Input{}, err
	}
	return in, nil
}
