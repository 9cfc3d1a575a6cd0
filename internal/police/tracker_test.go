package police

import (
	"fmt"
	"testing"
	"time"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/jail"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/settings"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/pkg/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	database.DB = db
	database.UpdateStatus(false, "")
	require.NoError(t, db.AutoMigrate(&event.Event{}, &jail.Sentence{}, &settings.Setting{}))
	require.NoError(t, PrimeDB())
}

func burst(w *ring.TimeRing, start time.Time, count int, gap time.Duration) time.Time {
	ts := start
	for i := 0; i < count; i++ {
		w.Push(ts)
		ts = ts.Add(gap)
	}
	return ts
}

func TestSpamCheckWindowSpan(t *testing.T) {
	w, err := ring.NewTimeRing(40)
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	burst(w, base, 4, time.Second)

	assert.True(t, spamCheck(w, 10*time.Second, 4, 0))
	assert.False(t, spamCheck(w, 3*time.Second, 4, 0))
	// 条目不足
	assert.False(t, spamCheck(w, 10*time.Second, 5, 0))
}

func TestHysteresisFiresOncePerBurst(t *testing.T) {
	const limit = 4
	interval := 10 * time.Second

	w, err := ring.NewTimeRing(limit * spamRingFactor)
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// 恰好limit条的连发：只在最后一条触发一次
	fires := 0
	ts := base
	for i := 0; i < limit; i++ {
		w.Push(ts)
		if checkSpamScoreIncrease(w, interval, limit) {
			fires++
		}
		ts = ts.Add(time.Second)
	}
	assert.Equal(t, 1, fires)

	// 紧接着的第二个完整连发：再触发恰好一次
	fires = 0
	for i := 0; i < limit; i++ {
		w.Push(ts)
		if checkSpamScoreIncrease(w, interval, limit) {
			fires++
		}
		ts = ts.Add(time.Second)
	}
	assert.Equal(t, 1, fires)
}

func TestHysteresisQuietGapResets(t *testing.T) {
	const limit = 4
	interval := 10 * time.Second

	w, err := ring.NewTimeRing(limit * spamRingFactor)
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	end := burst(w, base, limit, time.Second)
	assert.True(t, checkSpamScoreIncrease(w, interval, limit))

	// 长时间安静后再来一个完整连发，重新触发
	quiet := end.Add(time.Hour)
	fires := 0
	ts := quiet
	for i := 0; i < limit; i++ {
		w.Push(ts)
		if checkSpamScoreIncrease(w, interval, limit) {
			fires++
		}
		ts = ts.Add(time.Second)
	}
	assert.Equal(t, 1, fires)
}

func TestTimeoutCheck(t *testing.T) {
	w, err := ring.NewTimeRing(5)
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	burst(w, base, 5, time.Second)

	assert.True(t, timeoutCheck(w, 10*time.Second, 5))
	assert.False(t, timeoutCheck(w, 3*time.Second, 5))
}

func TestEscalateRaisesTimeoutBelowThreshold(t *testing.T) {
	setupTestDB(t)

	cfg := &guildConfig{timeoutDuration: 60, timeoutsToJail: 3, jailMinutes: 30}
	escalate("g1", "m1", cfg)

	count, err := event.Count(event.Query{GuildID: "g1", Type: event.TypeTimeout, MemberID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// 没有升级成监禁
	sentence, err := jail.ActiveSentence("g1", "m1")
	require.NoError(t, err)
	assert.Nil(t, sentence)
}

func TestEscalateJailsAtThreshold(t *testing.T) {
	setupTestDB(t)

	cfg := &guildConfig{timeoutDuration: 60, timeoutsToJail: 3, jailMinutes: 30}
	for i := 0; i < 3; i++ {
		escalate("g1", "m1", cfg)
	}

	// 第三次禁言后越过阈值
	escalate("g1", "m1", cfg)

	sentence, err := jail.ActiveSentence("g1", "m1")
	require.NoError(t, err)
	require.NotNil(t, sentence)

	remaining, err := jail.Remaining(sentence)
	require.NoError(t, err)
	assert.InDelta(t, 30, remaining, 1)
}

func TestEscalateExtendsWhenAlreadyJailed(t *testing.T) {
	setupTestDB(t)

	jailed, err := jail.Jail("g1", "mod", "m1", 30)
	require.NoError(t, err)
	require.True(t, jailed.Jailed)

	// 已在押且超过阈值：退化为加刑
	for i := 0; i < 3; i++ {
		_, err := event.Append(event.NewTimeoutEvent("g1", "m1", 60))
		require.NoError(t, err)
	}
	cfg := &guildConfig{timeoutDuration: 60, timeoutsToJail: 3, jailMinutes: 30}
	escalate("g1", "m1", cfg)

	sentence, err := jail.SentenceByID(jailed.SentenceID)
	require.NoError(t, err)
	remaining, err := jail.Remaining(sentence)
	require.NoError(t, err)
	assert.InDelta(t, 60, remaining, 1)

	// 加刑把计数器归零：紧接着的违规只记禁言，不会再次立刻加刑
	escalate("g1", "m1", cfg)

	count, err := jail.TimeoutsSinceLastReset("g1", "m1", policeActorID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	remaining, err = jail.Remaining(sentence)
	require.NoError(t, err)
	assert.InDelta(t, 60, remaining, 1)
}

func TestHandleMessageFlagsSpam(t *testing.T) {
	setupTestDB(t)
	TeardownGuild("g1")

	// 默认limit=4、interval=10s：快速连发4条，第4条被标记
	var flagged int
	for i := 0; i < 4; i++ {
		result, err := HandleMessage("g1", "m1", "c1", nil)
		require.NoError(t, err)
		if result.SpamFlagged {
			flagged++
		}
	}
	assert.Equal(t, 1, flagged)

	count, err := event.Count(event.Query{GuildID: "g1", Type: event.TypeSpam, MemberID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestHandleMessageIgnoresUnmonitoredViolations(t *testing.T) {
	setupTestDB(t)
	TeardownGuild("g1")

	// 没有监控角色，消息不进入违规窗口
	result, err := HandleMessage("g1", "m1", "c1", []string{"some-role"})
	require.NoError(t, err)
	assert.False(t, result.Violation)
}

func TestPruneIdleTrackers(t *testing.T) {
	setupTestDB(t)
	TeardownGuild("g1")

	_, err := HandleMessage("g1", "m1", "c1", nil)
	require.NoError(t, err)

	// 还没闲置，不清理
	assert.Zero(t, pruneIdleTrackers(time.Hour))
	// 零保留期视所有人为闲置
	assert.Equal(t, 1, pruneIdleTrackers(-time.Second))
}
