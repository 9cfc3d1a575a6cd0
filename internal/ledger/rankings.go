package ledger

import (
	"fmt"
	"math"
	"sort"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
)

// RankingKind 标识一种排行榜
type RankingKind string

const (
	RankBalance      RankingKind = "balance"
	RankPrestige     RankingKind = "prestige"
	RankSlapGiven    RankingKind = "slap_given"
	RankSlapReceived RankingKind = "slap_received"
	RankPetGiven     RankingKind = "pet_given"
	RankPetReceived  RankingKind = "pet_received"
	RankFartGiven    RankingKind = "fart_given"
	RankFartReceived RankingKind = "fart_received"
	RankJailMinutes  RankingKind = "jail_minutes"
	RankJailCount    RankingKind = "jail_count"
	RankTimeoutSecs  RankingKind = "timeout_seconds"
	RankTimeoutCount RankingKind = "timeout_count"
	RankSpamCount    RankingKind = "spam_count"
	RankWinStreak    RankingKind = "gamba_win_streak"
	RankLossStreak   RankingKind = "gamba_loss_streak"
	RankWinRate      RankingKind = "gamba_win_rate"
	RankAverageGain  RankingKind = "gamba_average_gain"
)

// Entry 是排行榜中的一行
type Entry struct {
	Rank     int     `json:"rank"`
	MemberID string  `json:"member_id"`
	Value    float64 `json:"value"`
}

// accumulator 按首次出现顺序累积每个成员的数值。
// 保留出现顺序是为了让并列名次保持确定性的先来后到。
type accumulator struct {
	order  []string
	values map[string]float64
}

func newAccumulator() *accumulator {
	return &accumulator{values: make(map[string]float64)}
}

func (a *accumulator) add(memberID string, delta float64) {
	if _, ok := a.values[memberID]; !ok {
		a.order = append(a.order, memberID)
	}
	a.values[memberID] += delta
}

func (a *accumulator) set(memberID string, value float64) {
	if _, ok := a.values[memberID]; !ok {
		a.order = append(a.order, memberID)
	}
	a.values[memberID] = value
}

// entries 输出降序的排行榜，并列时保持出现顺序。
func (a *accumulator) entries() []Entry {
	out := make([]Entry, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, Entry{MemberID: id, Value: a.values[id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Rankings 对赛季窗口内的事实流做一次纯粹的map/reduce，产出指定类别的排行榜。
// 空输入产出空榜，不是错误。
func Rankings(guildID string, kind RankingKind, season Season) ([]Entry, error) {
	switch kind {
	case RankBalance:
		return beansRanking(guildID, season, false)
	case RankPrestige:
		return beansRanking(guildID, season, true)
	case RankSlapGiven:
		return interactionRanking(guildID, season, event.InteractionSlap, true)
	case RankSlapReceived:
		return interactionRanking(guildID, season, event.InteractionSlap, false)
	case RankPetGiven:
		return interactionRanking(guildID, season, event.InteractionPet, true)
	case RankPetReceived:
		return interactionRanking(guildID, season, event.InteractionPet, false)
	case RankFartGiven:
		return interactionRanking(guildID, season, event.InteractionFart, true)
	case RankFartReceived:
		return interactionRanking(guildID, season, event.InteractionFart, false)
	case RankJailMinutes, RankJailCount:
		return jailRanking(guildID, season, kind)
	case RankTimeoutSecs, RankTimeoutCount:
		return timeoutRanking(guildID, season, kind)
	case RankSpamCount:
		return spamRanking(guildID, season)
	case RankWinStreak, RankLossStreak, RankWinRate, RankAverageGain:
		return gambaRanking(guildID, season, kind)
	default:
		return nil, fmt.Errorf("未知的排行榜类别: %s", kind)
	}
}

func beansRanking(guildID string, season Season, prestige bool) ([]Entry, error) {
	facts, err := event.Find(event.Query{
		GuildID: guildID,
		Type:    event.TypeBeans,
		Start:   season.Start,
		End:     season.End,
	})
	if err != nil {
		return nil, err
	}

	acc := newAccumulator()
	if !prestige {
		for _, f := range facts {
			acc.add(f.MemberID, float64(f.Value))
		}
		return acc.entries(), nil
	}

	// 威望榜：每个成员各自的前缀最大值
	running := make(map[string]int64)
	peaks := make(map[string]int64)
	for _, f := range facts {
		acc.add(f.MemberID, 0) // 登记出现顺序
		if prestigeExcluded[f.Reason] {
			continue
		}
		running[f.MemberID] += f.Value
		if running[f.MemberID] > peaks[f.MemberID] {
			peaks[f.MemberID] = running[f.MemberID]
		}
	}
	for id, peak := range peaks {
		acc.set(id, float64(peak))
	}
	return acc.entries(), nil
}

func interactionRanking(guildID string, season Season, kind event.InteractionKind, given bool) ([]Entry, error) {
	facts, err := event.Find(event.Query{
		GuildID: guildID,
		Type:    event.TypeInteraction,
		Kinds:   []event.InteractionKind{kind},
		Start:   season.Start,
		End:     season.End,
	})
	if err != nil {
		return nil, err
	}
	acc := newAccumulator()
	for _, f := range facts {
		if given {
			acc.add(f.FromID, 1)
		} else {
			acc.add(f.ToID, 1)
		}
	}
	return acc.entries(), nil
}

func jailRanking(guildID string, season Season, kind RankingKind) ([]Entry, error) {
	facts, err := event.Find(event.Query{
		GuildID: guildID,
		Type:    event.TypeJail,
		Start:   season.Start,
		End:     season.End,
	})
	if err != nil {
		return nil, err
	}
	acc := newAccumulator()
	for _, f := range facts {
		switch kind {
		case RankJailMinutes:
			acc.add(f.MemberID, float64(f.Value))
		case RankJailCount:
			if f.JailReason == event.JailReasonJail {
				acc.add(f.MemberID, 1)
			}
		}
	}
	return acc.entries(), nil
}

func timeoutRanking(guildID string, season Season, kind RankingKind) ([]Entry, error) {
	facts, err := event.Find(event.Query{
		GuildID: guildID,
		Type:    event.TypeTimeout,
		Start:   season.Start,
		End:     season.End,
	})
	if err != nil {
		return nil, err
	}
	acc := newAccumulator()
	for _, f := range facts {
		if kind == RankTimeoutSecs {
			acc.add(f.MemberID, float64(f.Value))
		} else {
			acc.add(f.MemberID, 1)
		}
	}
	return acc.entries(), nil
}

func spamRanking(guildID string, season Season) ([]Entry, error) {
	facts, err := event.Find(event.Query{
		GuildID: guildID,
		Type:    event.TypeSpam,
		Start:   season.Start,
		End:     season.End,
	})
	if err != nil {
		return nil, err
	}
	acc := newAccumulator()
	for _, f := range facts {
		acc.add(f.MemberID, 1)
	}
	return acc.entries(), nil
}

// gambaStats 汇总一个成员在窗口内的赌局序列。
// 一局以一条 gamba_cost 事实开始，到下一条 gamba_cost 之前结束；
// 局内出现正的 gamba_payout 即为赢。
type gambaStats struct {
	rounds     int
	wins       int
	winStreak  int
	lossStreak int
	net        int64

	curWin  int
	curLoss int
	open    bool
	curWon  bool
}

func (g *gambaStats) closeRound() {
	if !g.open {
		return
	}
	g.rounds++
	if g.curWon {
		g.wins++
		g.curWin++
		g.curLoss = 0
	} else {
		g.curLoss++
		g.curWin = 0
	}
	if g.curWin > g.winStreak {
		g.winStreak = g.curWin
	}
	if g.curLoss > g.lossStreak {
		g.lossStreak = g.curLoss
	}
	g.open = false
	g.curWon = false
}

func gambaRanking(guildID string, season Season, kind RankingKind) ([]Entry, error) {
	facts, err := event.Find(event.Query{
		GuildID: guildID,
		Type:    event.TypeBeans,
		Reasons: []event.BeansReason{event.BeansReasonGambaCost, event.BeansReasonGambaPayout},
		Start:   season.Start,
		End:     season.End,
	})
	if err != nil {
		return nil, err
	}

	order := []string{}
	stats := make(map[string]*gambaStats)
	for _, f := range facts {
		g, ok := stats[f.MemberID]
		if !ok {
			g = &gambaStats{}
			stats[f.MemberID] = g
			order = append(order, f.MemberID)
		}
		g.net += f.Value
		switch f.Reason {
		case event.BeansReasonGambaCost:
			g.closeRound()
			g.open = true
		case event.BeansReasonGambaPayout:
			if g.open && f.Value > 0 {
				g.curWon = true
			}
		}
	}

	acc := newAccumulator()
	for _, id := range order {
		g := stats[id]
		g.closeRound()
		switch kind {
		case RankWinStreak:
			acc.set(id, float64(g.winStreak))
		case RankLossStreak:
			acc.set(id, float64(g.lossStreak))
		case RankWinRate:
			if g.rounds == 0 {
				acc.set(id, 0)
			} else {
				rate := float64(g.wins) / float64(g.rounds) * 100
				acc.set(id, math.Round(rate*100)/100)
			}
		case RankAverageGain:
			if g.rounds == 0 {
				acc.set(id, 0)
			} else {
				acc.set(id, float64(g.net)/float64(g.rounds))
			}
		}
	}
	return acc.entries(), nil
}
