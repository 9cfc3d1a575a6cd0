package jail

import (
	"fmt"
	"time"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"gorm.io/gorm"
)

// RoleFlagger 是负责在聊天平台上给成员加/摘惩罚角色的协作方接口。
type RoleFlagger interface {
	AddJailRole(guildID, memberID string) error
	RemoveJailRole(guildID, memberID string) error
}

// roleFlagger 是进程级的协作方实例，允许为nil（例如测试环境）。
var roleFlagger RoleFlagger

// SetRoleFlagger 在启动时注入角色协作方。
func SetRoleFlagger(f RoleFlagger) {
	roleFlagger = f
}

// JailResult 是一次监禁请求的类型化结果。
// Jailed为false时Reason说明拒绝原因；存储错误走error通道。
type JailResult struct {
	Jailed     bool   `json:"jailed"`
	Reason     string `json:"reason,omitempty"`
	SentenceID uint   `json:"sentence_id,omitempty"`
}

// ReleaseResult 是一次释放请求的类型化结果。
type ReleaseResult struct {
	Released        bool   `json:"released"`
	Reason          string `json:"reason,omitempty"`
	ForgivenMinutes int64  `json:"forgiven_minutes,omitempty"`
}

// Jail 给目标成员创建一条新的监禁。
// 同一成员在同一公会最多只有一条在押监禁；检查与创建都发生在成员锁之内，
// 封闭了并发双重监禁的先检查后执行窗口。
func Jail(guildID, actorID, targetID string, minutes int64) (*JailResult, error) {
	if minutes <= 0 {
		return &JailResult{Jailed: false, Reason: "刑期必须为正数"}, nil
	}

	mu := lockMember(guildID, targetID)
	mu.Lock()
	defer mu.Unlock()

	active, err := ActiveSentence(guildID, targetID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		// 拒绝是正常业务结果，不写任何事实
		return &JailResult{Jailed: false, Reason: "目标已经在监狱里"}, nil
	}

	sentence := Sentence{
		GuildID:  guildID,
		MemberID: targetID,
		JailedOn: time.Now(),
	}

	// 监禁记录和初始时长事实要么同时落盘，要么都不落
	var fact *event.Event
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sentence).Error; err != nil {
			return fmt.Errorf("无法创建监禁记录: %w", err)
		}
		fact = event.NewJailEvent(guildID, targetID, actorID, event.JailReasonJail, minutes, sentence.ID)
		if _, err := event.AppendTx(tx, fact); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event.NotifyAppended(*fact)
	invalidateDurationCache(sentence.ID)

	// 角色打标是尽力而为的外部副作用
	if roleFlagger != nil {
		if err := roleFlagger.AddJailRole(guildID, targetID); err != nil {
			fmt.Printf("警告: 添加监禁角色失败 (guild %s, member %s): %v\n", guildID, targetID, err)
		}
	}

	return &JailResult{Jailed: true, SentenceID: sentence.ID}, nil
}

// ApplyDelta 给一条在押监禁追加时长增减事实（分钟，可为负）。
// 本层不做上下界约束，界限是调用方的策略。返回增减后的剩余时长。
func ApplyDelta(sentenceID uint, actorID string, reason event.JailReason, minutes int64) (int64, error) {
	sentence, err := SentenceByID(sentenceID)
	if err != nil {
		return 0, err
	}
	if sentence == nil {
		return 0, fmt.Errorf("监禁记录 %d 不存在", sentenceID)
	}
	if !sentence.Active() {
		return 0, fmt.Errorf("监禁记录 %d 已经结束", sentenceID)
	}

	fact := event.NewJailEvent(sentence.GuildID, sentence.MemberID, actorID, reason, minutes, sentenceID)
	if _, err := event.Append(fact); err != nil {
		return 0, err
	}

	invalidateDurationCache(sentenceID)
	return Remaining(sentence)
}

// ApplyDeltaTx 在调用方的事务里给一条监禁追加时长增减事实。
// 供需要把增减和其他表变更绑成一个事务的调用方（例如动作引擎）使用；
// 事务提交后调用方必须自行调用 InvalidateDurationCache，并对返回的
// 事实补发 event.NotifyAppended。
func ApplyDeltaTx(tx *gorm.DB, sentence *Sentence, actorID string, reason event.JailReason, minutes int64) (*event.Event, error) {
	fact := event.NewJailEvent(sentence.GuildID, sentence.MemberID, actorID, reason, minutes, sentence.ID)
	if _, err := event.AppendTx(tx, fact); err != nil {
		return nil, err
	}
	return fact, nil
}

// InvalidateDurationCache 在外部事务追加增减事实后废弃时长缓存。
func InvalidateDurationCache(sentenceID uint) {
	invalidateDurationCache(sentenceID)
}

// Release 结束目标成员的在押监禁，返回被赦免的剩余分钟数。
func Release(guildID, actorID, targetID string) (*ReleaseResult, error) {
	mu := lockMember(guildID, targetID)
	mu.Lock()
	defer mu.Unlock()

	sentence, err := ActiveSentence(guildID, targetID)
	if err != nil {
		return nil, err
	}
	if sentence == nil {
		return &ReleaseResult{Released: false, Reason: "目标不在监狱里"}, nil
	}

	forgiven, err := Remaining(sentence)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var fact *event.Event
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := patchReleasedOn(tx, sentence.ID, now); err != nil {
			return err
		}
		fact = event.NewJailEvent(guildID, targetID, actorID, event.JailReasonRelease, 0, sentence.ID)
		if _, err := event.AppendTx(tx, fact); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event.NotifyAppended(*fact)
	invalidateDurationCache(sentence.ID)

	if roleFlagger != nil {
		if err := roleFlagger.RemoveJailRole(guildID, targetID); err != nil {
			fmt.Printf("警告: 移除监禁角色失败 (guild %s, member %s): %v\n", guildID, targetID, err)
		}
	}

	return &ReleaseResult{Released: true, ForgivenMinutes: forgiven}, nil
}

// Remaining 返回一条监禁的剩余分钟数。
// 剩余时长 = max(0, 增减事实之和 − 已服刑分钟数)；释放后恒为0。
func Remaining(sentence *Sentence) (int64, error) {
	if sentence == nil || !sentence.Active() {
		return 0, nil
	}

	total, err := totalDurationMinutes(sentence.ID)
	if err != nil {
		return 0, err
	}

	elapsed := int64(time.Since(sentence.JailedOn).Minutes())
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TimeoutsSinceLastReset 统计成员的禁言计数器自上次归零以来累计的禁言事实数。
// 计数器从日志派生：释放把它归零，升级退化成的加刑（由escalationActor写入的
// extend事实）同样把它归零，已在押的成员不会因此被每次违规都立刻加刑。
func TimeoutsSinceLastReset(guildID, memberID, escalationActorID string) (int64, error) {
	lastRelease, err := event.Last(event.Query{
		GuildID:    guildID,
		Type:       event.TypeJail,
		MemberID:   memberID,
		JailReason: event.JailReasonRelease,
	})
	if err != nil {
		return 0, err
	}
	lastExtend, err := event.Last(event.Query{
		GuildID:    guildID,
		Type:       event.TypeJail,
		MemberID:   memberID,
		JailReason: event.JailReasonExtend,
		ActorID:    escalationActorID,
	})
	if err != nil {
		return 0, err
	}

	q := event.Query{
		GuildID:  guildID,
		Type:     event.TypeTimeout,
		MemberID: memberID,
	}
	if lastRelease != nil {
		q.Start = lastRelease.Timestamp
	}
	if lastExtend != nil && lastExtend.Timestamp.After(q.Start) {
		q.Start = lastExtend.Timestamp
	}
	return event.Count(q)
}
