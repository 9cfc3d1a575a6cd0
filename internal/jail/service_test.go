package jail

import (
	"fmt"
	"testing"
	"time"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
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
	require.NoError(t, db.AutoMigrate(&event.Event{}, &Sentence{}))
}

func TestJailCreatesSentenceAndFact(t *testing.T) {
	setupTestDB(t)

	result, err := Jail("g1", "actor", "target", 30)
	require.NoError(t, err)
	require.True(t, result.Jailed)
	require.NotZero(t, result.SentenceID)

	sentence, err := ActiveSentence("g1", "target")
	require.NoError(t, err)
	require.NotNil(t, sentence)
	assert.True(t, sentence.Active())

	facts, err := event.Find(event.Query{GuildID: "g1", Type: event.TypeJail, SentenceID: result.SentenceID})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, event.JailReasonJail, facts[0].JailReason)
	assert.Equal(t, int64(30), facts[0].Value)
}

func TestDoubleJailRejectedWithoutFact(t *testing.T) {
	setupTestDB(t)

	first, err := Jail("g1", "actor", "target", 30)
	require.NoError(t, err)
	require.True(t, first.Jailed)

	second, err := Jail("g1", "actor2", "target", 60)
	require.NoError(t, err)
	assert.False(t, second.Jailed)
	assert.NotEmpty(t, second.Reason)

	// 拒绝不落任何新事实，也不建新监禁
	count, err := event.Count(event.Query{GuildID: "g1", Type: event.TypeJail})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	history, err := SentenceHistory("g1", "target")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestJailRejectsNonPositiveMinutes(t *testing.T) {
	setupTestDB(t)

	result, err := Jail("g1", "actor", "target", 0)
	require.NoError(t, err)
	assert.False(t, result.Jailed)
}

func TestRemainingAfterDeltas(t *testing.T) {
	setupTestDB(t)

	result, err := Jail("g1", "actor", "b", 30)
	require.NoError(t, err)

	// 把起算时间拨回2分钟前，模拟已服刑2分钟
	t0 := time.Now().Add(-2 * time.Minute)
	require.NoError(t, database.DB.Model(&Sentence{}).Where("id = ?", result.SentenceID).Update("jailed_on", t0).Error)

	// 1分钟前被拍了一巴掌，+5分钟
	remaining, err := ApplyDelta(result.SentenceID, "slapper", event.JailReasonSlap, 5)
	require.NoError(t, err)

	// 30 + 5 − 2 = 33，允许1分钟的挂钟误差
	assert.InDelta(t, 33, remaining, 1)
}

func TestRemainingFloorsAtZero(t *testing.T) {
	setupTestDB(t)

	result, err := Jail("g1", "actor", "target", 5)
	require.NoError(t, err)

	t0 := time.Now().Add(-10 * time.Minute)
	require.NoError(t, database.DB.Model(&Sentence{}).Where("id = ?", result.SentenceID).Update("jailed_on", t0).Error)

	sentence, err := SentenceByID(result.SentenceID)
	require.NoError(t, err)
	remaining, err := Remaining(sentence)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestReleaseZeroesRemainingRegardlessOfDeltas(t *testing.T) {
	setupTestDB(t)

	jailed, err := Jail("g1", "actor", "target", 30)
	require.NoError(t, err)

	_, err = ApplyDelta(jailed.SentenceID, "actor", event.JailReasonExtend, 500)
	require.NoError(t, err)

	released, err := Release("g1", "mod", "target")
	require.NoError(t, err)
	require.True(t, released.Released)
	assert.Greater(t, released.ForgivenMinutes, int64(0))

	sentence, err := SentenceByID(jailed.SentenceID)
	require.NoError(t, err)
	assert.False(t, sentence.Active())

	remaining, err := Remaining(sentence)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	// 释放事实已落盘
	facts, err := event.Find(event.Query{Type: event.TypeJail, SentenceID: jailed.SentenceID, JailReason: event.JailReasonRelease})
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestReleaseWithoutActiveSentence(t *testing.T) {
	setupTestDB(t)

	result, err := Release("g1", "mod", "free-member")
	require.NoError(t, err)
	assert.False(t, result.Released)
}

func TestReleaseAllowsReJail(t *testing.T) {
	setupTestDB(t)

	first, err := Jail("g1", "actor", "target", 30)
	require.NoError(t, err)
	_, err = Release("g1", "mod", "target")
	require.NoError(t, err)

	second, err := Jail("g1", "actor", "target", 10)
	require.NoError(t, err)
	assert.True(t, second.Jailed)
	assert.NotEqual(t, first.SentenceID, second.SentenceID)
}

func TestApplyDeltaRejectsEndedSentence(t *testing.T) {
	setupTestDB(t)

	jailed, err := Jail("g1", "actor", "target", 30)
	require.NoError(t, err)
	_, err = Release("g1", "mod", "target")
	require.NoError(t, err)

	_, err = ApplyDelta(jailed.SentenceID, "actor", event.JailReasonExtend, 5)
	assert.Error(t, err)
}

func TestTimeoutsSinceLastReset(t *testing.T) {
	setupTestDB(t)

	appendTimeout := func() {
		_, err := event.Append(event.NewTimeoutEvent("g1", "m1", 60))
		require.NoError(t, err)
	}

	appendTimeout()
	appendTimeout()

	count, err := TimeoutsSinceLastReset("g1", "m1", "police")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// 监禁并释放后计数归零
	_, err = Jail("g1", "police", "m1", 30)
	require.NoError(t, err)
	_, err = Release("g1", "mod", "m1")
	require.NoError(t, err)

	count, err = TimeoutsSinceLastReset("g1", "m1", "police")
	require.NoError(t, err)
	assert.Zero(t, count)

	appendTimeout()
	count, err = TimeoutsSinceLastReset("g1", "m1", "police")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTimeoutsResetByEscalationExtend(t *testing.T) {
	setupTestDB(t)

	result, err := Jail("g1", "mod", "m1", 30)
	require.NoError(t, err)
	require.True(t, result.Jailed)

	for i := 0; i < 3; i++ {
		_, err := event.Append(event.NewTimeoutEvent("g1", "m1", 60))
		require.NoError(t, err)
	}
	count, err := TimeoutsSinceLastReset("g1", "m1", "police")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// 升级退化成的加刑把计数器归零
	_, err = ApplyDelta(result.SentenceID, "police", event.JailReasonExtend, 30)
	require.NoError(t, err)

	count, err = TimeoutsSinceLastReset("g1", "m1", "police")
	require.NoError(t, err)
	assert.Zero(t, count)

	// 其他成员的加刑不影响这个计数器
	_, err = ApplyDelta(result.SentenceID, "mod", event.JailReasonExtend, 5)
	require.NoError(t, err)
	_, err = event.Append(event.NewTimeoutEvent("g1", "m1", 60))
	require.NoError(t, err)

	count, err = TimeoutsSinceLastReset("g1", "m1", "police")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

type fakeFlagger struct {
	added   []string
	removed []string
}

func (f *fakeFlagger) AddJailRole(guildID, memberID string) error {
	f.added = append(f.added, memberID)
	return nil
}

func (f *fakeFlagger) RemoveJailRole(guildID, memberID string) error {
	f.removed = append(f.removed, memberID)
	return nil
}

func TestRoleFlaggerSideEffects(t *testing.T) {
	setupTestDB(t)

	flagger := &fakeFlagger{}
	SetRoleFlagger(flagger)
	defer SetRoleFlagger(nil)

	_, err := Jail("g1", "actor", "target", 30)
	require.NoError(t, err)
	_, err = Release("g1", "mod", "target")
	require.NoError(t, err)

	assert.Equal(t, []string{"target"}, flagger.added)
	assert.Equal(t, []string{"target"}, flagger.removed)
}
