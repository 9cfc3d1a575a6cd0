package police

import (
	"fmt"
	"sync"
	"time"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/jail"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/settings"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/pkg/ring"
)

// spamRingFactor 决定刷屏窗口容量是limit的多少倍。
// 容量必须装得下多个完整的连发，offset才能一路走到上一个连发的边界。
const spamRingFactor = 10

// memberTracker 是单个成员的双窗口状态。
// 完全驻留内存，进程重启即丢失，这是有意的非持久化设计。
type memberTracker struct {
	spamWindow      *ring.TimeRing
	violationWindow *ring.TimeRing
	// muteUntil 之前的违规消息不再计入违规窗口，避免对同一次禁言重复升级
	muteUntil time.Time
	lastSeen  time.Time
}

// guildTracker 拥有一个公会内全部成员的状态。
// 每个公会一把锁，互不相关的公会永远不会相互争用。
type guildTracker struct {
	mu      sync.Mutex
	members map[string]*memberTracker
}

var (
	registryMutex sync.RWMutex
	registry      = make(map[string]*guildTracker)
)

func guildOf(guildID string) *guildTracker {
	registryMutex.RLock()
	g, ok := registry[guildID]
	registryMutex.RUnlock()
	if ok {
		return g
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()
	if g, ok = registry[guildID]; ok {
		return g
	}
	g = &guildTracker{members: make(map[string]*memberTracker)}
	registry[guildID] = g
	return g
}

// TeardownGuild 在离开公会时丢弃它的全部监测状态。
func TeardownGuild(guildID string) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	delete(registry, guildID)
}

// guildConfig 是一次消息处理所需的全部police设置。
type guildConfig struct {
	messageLimit     int
	messageInterval  time.Duration
	timeoutLimit     int
	timeoutInterval  time.Duration
	timeoutDuration  int64
	timeoutsToJail   int64
	jailMinutes      int64
	excludedChannels []string
	monitoredRoles   []string
}

func loadGuildConfig(guildID string) (*guildConfig, error) {
	cfg := &guildConfig{}

	intFields := []struct {
		key string
		dst *int64
	}{
		{settings.KeyPoliceTimeoutDuration, &cfg.timeoutDuration},
		{settings.KeyPoliceTimeoutsBeforeJail, &cfg.timeoutsToJail},
		{settings.KeyPoliceJailDuration, &cfg.jailMinutes},
	}
	for _, f := range intFields {
		v, err := settings.GetInt(guildID, settings.ModulePolice, f.key)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	limit, err := settings.GetInt(guildID, settings.ModulePolice, settings.KeyPoliceMessageLimit)
	if err != nil {
		return nil, err
	}
	cfg.messageLimit = int(limit)

	interval, err := settings.GetInt(guildID, settings.ModulePolice, settings.KeyPoliceMessageInterval)
	if err != nil {
		return nil, err
	}
	cfg.messageInterval = time.Duration(interval) * time.Second

	tLimit, err := settings.GetInt(guildID, settings.ModulePolice, settings.KeyPoliceTimeoutLimit)
	if err != nil {
		return nil, err
	}
	cfg.timeoutLimit = int(tLimit)

	tInterval, err := settings.GetInt(guildID, settings.ModulePolice, settings.KeyPoliceTimeoutInterval)
	if err != nil {
		return nil, err
	}
	cfg.timeoutInterval = time.Duration(tInterval) * time.Second

	cfg.excludedChannels, err = settings.GetStringList(guildID, settings.ModulePolice, settings.KeyPoliceExcludedChannels)
	if err != nil {
		return nil, err
	}
	cfg.monitoredRoles, err = settings.GetStringList(guildID, settings.ModulePolice, settings.KeyPoliceMonitoredRoles)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// MessageResult 报告一次消息处理的同步结论。
type MessageResult struct {
	SpamFlagged bool `json:"spam_flagged"`
	Violation   bool `json:"violation"`
}

// HandleMessage 处理一条入站消息。
// 刷屏判定同步完成；禁言和监禁升级相对消息处理是发后不理的。
func HandleMessage(guildID, memberID, channelID string, roleIDs []string) (*MessageResult, error) {
	cfg, err := loadGuildConfig(guildID)
	if err != nil {
		return nil, err
	}

	g := guildOf(guildID)
	g.mu.Lock()
	tracker, ok := g.members[memberID]
	if !ok {
		spamWindow, err := ring.NewTimeRing(cfg.messageLimit * spamRingFactor)
		if err != nil {
			g.mu.Unlock()
			return nil, fmt.Errorf("创建刷屏窗口失败: %w", err)
		}
		violationWindow, err := ring.NewTimeRing(cfg.timeoutLimit)
		if err != nil {
			g.mu.Unlock()
			return nil, fmt.Errorf("创建违规窗口失败: %w", err)
		}
		tracker = &memberTracker{spamWindow: spamWindow, violationWindow: violationWindow}
		g.members[memberID] = tracker
	}

	now := time.Now()
	tracker.lastSeen = now
	tracker.spamWindow.Push(now)
	spamFlagged := checkSpamScoreIncrease(tracker.spamWindow, cfg.messageInterval, cfg.messageLimit)

	violation := false
	if monitored(roleIDs, cfg.monitoredRoles) && !contains(cfg.excludedChannels, channelID) && now.After(tracker.muteUntil) {
		tracker.violationWindow.Push(now)
		if timeoutCheck(tracker.violationWindow, cfg.timeoutInterval, cfg.timeoutLimit) {
			violation = true
			tracker.violationWindow.Clear()
			tracker.muteUntil = now.Add(time.Duration(cfg.timeoutDuration) * time.Second)
		}
	}
	g.mu.Unlock()

	if spamFlagged {
		if _, err := event.Append(event.NewSpamEvent(guildID, memberID)); err != nil {
			return nil, err
		}
	}

	if violation {
		// 升级判定相对消息处理是发后不理的
		go escalate(guildID, memberID, cfg)
	}

	return &MessageResult{SpamFlagged: spamFlagged, Violation: violation}, nil
}

// spamCheck 判定跳过offset条最新消息后，最近limit条消息的跨度是否小于interval。
func spamCheck(w *ring.TimeRing, interval time.Duration, limit, offset int) bool {
	span, ok := w.Span(limit, offset)
	if !ok {
		return false
	}
	return span < interval
}

// checkSpamScoreIncrease 把offset一路向上推，只在完整的连发边界上判定成立。
// 一个恰好limit条的连发只触发一次；紧接着的下一个完整连发再触发一次。
func checkSpamScoreIncrease(w *ring.TimeRing, interval time.Duration, limit int) bool {
	offset := 0
	for spamCheck(w, interval, limit, offset) {
		offset++
	}
	if offset == 0 {
		return false
	}
	return offset == 1 || (offset-1)%limit == 0
}

// timeoutCheck 判定违规窗口最近limit条消息的跨度是否小于interval。
func timeoutCheck(w *ring.TimeRing, interval time.Duration, limit int) bool {
	span, ok := w.Span(limit, 0)
	if !ok {
		return false
	}
	return span < interval
}

// policeActorID 是频率监测自动处罚时记录在事实里的执行者
const policeActorID = "police"

// escalate 在违规窗口触发后决定处罚等级。
// 禁言次数从日志派生，释放事实和加刑事实之后都归零；达到阈值时升级为
// 监禁，目标已在押时退化为加刑。
func escalate(guildID, memberID string, cfg *guildConfig) {
	timeouts, err := jail.TimeoutsSinceLastReset(guildID, memberID, policeActorID)
	if err != nil {
		fmt.Printf("警告: 统计禁言次数失败 (guild %s, member %s): %v\n", guildID, memberID, err)
		return
	}

	if timeouts < cfg.timeoutsToJail {
		if _, err := event.Append(event.NewTimeoutEvent(guildID, memberID, cfg.timeoutDuration)); err != nil {
			fmt.Printf("警告: 写入禁言事实失败 (guild %s, member %s): %v\n", guildID, memberID, err)
		}
		return
	}

	result, err := jail.Jail(guildID, policeActorID, memberID, cfg.jailMinutes)
	if err != nil {
		fmt.Printf("警告: 升级监禁失败 (guild %s, member %s): %v\n", guildID, memberID, err)
		return
	}
	if !result.Jailed {
		// 已在押，退化为加刑
		sentence, err := jail.ActiveSentence(guildID, memberID)
		if err != nil || sentence == nil {
			fmt.Printf("警告: 查询在押监禁失败 (guild %s, member %s): %v\n", guildID, memberID, err)
			return
		}
		if _, err := jail.ApplyDelta(sentence.ID, policeActorID, event.JailReasonExtend, cfg.jailMinutes); err != nil {
			fmt.Printf("警告: 加刑失败 (guild %s, member %s): %v\n", guildID, memberID, err)
		}
	}
}

func monitored(roleIDs, monitoredRoles []string) bool {
	if len(monitoredRoles) == 0 {
		return false
	}
	for _, r := range roleIDs {
		if contains(monitoredRoles, r) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// pruneIdleTrackers 丢弃超过retention没有活动的成员状态，由janitor定时调用。
func pruneIdleTrackers(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	pruned := 0

	registryMutex.RLock()
	guilds := make([]*guildTracker, 0, len(registry))
	for _, g := range registry {
		guilds = append(guilds, g)
	}
	registryMutex.RUnlock()

	for _, g := range guilds {
		g.mu.Lock()
		for id, tracker := range g.members {
			if tracker.lastSeen.Before(cutoff) {
				delete(g.members, id)
				pruned++
			}
		}
		g.mu.Unlock()
	}
	return pruned
}
