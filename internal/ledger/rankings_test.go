package ledger

import (
	"testing"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankingsEmptyInEmptyOut(t *testing.T) {
	setupTestDB(t)

	entries, err := Rankings("g1", RankBalance, AllTime)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRankingsUnknownKind(t *testing.T) {
	setupTestDB(t)

	_, err := Rankings("g1", RankingKind("nope"), AllTime)
	assert.Error(t, err)
}

func TestBalanceRankingDescendingWithStableTies(t *testing.T) {
	setupTestDB(t)

	appendBeans(t, "g1", "first", event.BeansReasonDaily, 10)
	appendBeans(t, "g1", "second", event.BeansReasonDaily, 10)
	appendBeans(t, "g1", "top", event.BeansReasonDaily, 99)

	entries, err := Rankings("g1", RankBalance, AllTime)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "top", entries[0].MemberID)
	assert.Equal(t, 1, entries[0].Rank)
	// 并列按出现顺序
	assert.Equal(t, "first", entries[1].MemberID)
	assert.Equal(t, "second", entries[2].MemberID)
}

func TestPrestigeRankingUsesPeaks(t *testing.T) {
	setupTestDB(t)

	appendBeans(t, "g1", "m1", event.BeansReasonDaily, 100)
	appendBeans(t, "g1", "m1", event.BeansReasonGambaCost, -100)
	appendBeans(t, "g1", "m2", event.BeansReasonDaily, 50)

	entries, err := Rankings("g1", RankPrestige, AllTime)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "m1", entries[0].MemberID)
	assert.Equal(t, float64(100), entries[0].Value)
}

func TestInteractionRankingsByDirection(t *testing.T) {
	setupTestDB(t)

	appendInteraction := func(kind event.InteractionKind, from, to string) {
		_, err := event.Append(event.NewInteractionEvent("g1", kind, from, to, 0))
		require.NoError(t, err)
	}
	appendInteraction(event.InteractionSlap, "a", "b")
	appendInteraction(event.InteractionSlap, "a", "c")
	appendInteraction(event.InteractionSlap, "b", "a")
	appendInteraction(event.InteractionPet, "a", "b")

	given, err := Rankings("g1", RankSlapGiven, AllTime)
	require.NoError(t, err)
	require.Len(t, given, 2)
	assert.Equal(t, "a", given[0].MemberID)
	assert.Equal(t, float64(2), given[0].Value)

	received, err := Rankings("g1", RankSlapReceived, AllTime)
	require.NoError(t, err)
	require.Len(t, received, 3)

	pets, err := Rankings("g1", RankPetGiven, AllTime)
	require.NoError(t, err)
	require.Len(t, pets, 1)
	assert.Equal(t, "a", pets[0].MemberID)
}

func TestJailAndTimeoutRankings(t *testing.T) {
	setupTestDB(t)

	appendJail := func(member string, reason event.JailReason, minutes int64, sentenceID uint) {
		_, err := event.Append(event.NewJailEvent("g1", member, "actor", reason, minutes, sentenceID))
		require.NoError(t, err)
	}
	appendJail("m1", event.JailReasonJail, 30, 1)
	appendJail("m1", event.JailReasonSlap, 5, 1)
	appendJail("m2", event.JailReasonJail, 60, 2)

	minutes, err := Rankings("g1", RankJailMinutes, AllTime)
	require.NoError(t, err)
	require.Len(t, minutes, 2)
	assert.Equal(t, "m2", minutes[0].MemberID)
	assert.Equal(t, float64(60), minutes[0].Value)
	assert.Equal(t, float64(35), minutes[1].Value)

	counts, err := Rankings("g1", RankJailCount, AllTime)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, float64(1), counts[0].Value)

	_, err = event.Append(event.NewTimeoutEvent("g1", "m1", 60))
	require.NoError(t, err)
	_, err = event.Append(event.NewTimeoutEvent("g1", "m1", 120))
	require.NoError(t, err)

	secs, err := Rankings("g1", RankTimeoutSecs, AllTime)
	require.NoError(t, err)
	require.Len(t, secs, 1)
	assert.Equal(t, float64(180), secs[0].Value)

	timeoutCounts, err := Rankings("g1", RankTimeoutCount, AllTime)
	require.NoError(t, err)
	assert.Equal(t, float64(2), timeoutCounts[0].Value)
}

func TestGambaRankings(t *testing.T) {
	setupTestDB(t)

	// m1: 赢-赢-输 → 连胜2, 连败1, 胜率66.67
	appendBeans(t, "g1", "m1", event.BeansReasonGambaCost, -10)
	appendBeans(t, "g1", "m1", event.BeansReasonGambaPayout, 30)
	appendBeans(t, "g1", "m1", event.BeansReasonGambaCost, -10)
	appendBeans(t, "g1", "m1", event.BeansReasonGambaPayout, 20)
	appendBeans(t, "g1", "m1", event.BeansReasonGambaCost, -10)

	// m2: 全输两局
	appendBeans(t, "g1", "m2", event.BeansReasonGambaCost, -5)
	appendBeans(t, "g1", "m2", event.BeansReasonGambaCost, -5)

	winStreaks, err := Rankings("g1", RankWinStreak, AllTime)
	require.NoError(t, err)
	require.Len(t, winStreaks, 2)
	assert.Equal(t, "m1", winStreaks[0].MemberID)
	assert.Equal(t, float64(2), winStreaks[0].Value)

	lossStreaks, err := Rankings("g1", RankLossStreak, AllTime)
	require.NoError(t, err)
	assert.Equal(t, "m2", lossStreaks[0].MemberID)
	assert.Equal(t, float64(2), lossStreaks[0].Value)

	winRates, err := Rankings("g1", RankWinRate, AllTime)
	require.NoError(t, err)
	assert.Equal(t, "m1", winRates[0].MemberID)
	assert.Equal(t, 66.67, winRates[0].Value)
	assert.Equal(t, float64(0), winRates[1].Value)

	avgGain, err := Rankings("g1", RankAverageGain, AllTime)
	require.NoError(t, err)
	// m1: (−30+50)/3, m2: −10/2
	assert.Equal(t, "m1", avgGain[0].MemberID)
	assert.InDelta(t, 6.67, avgGain[0].Value, 0.01)
	assert.Equal(t, float64(-5), avgGain[1].Value)
}
