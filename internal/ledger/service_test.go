package ledger

import (
	"fmt"
	"testing"

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
	require.NoError(t, db.AutoMigrate(&event.Event{}))
}

func appendBeans(t *testing.T, guildID, memberID string, reason event.BeansReason, value int64) {
	t.Helper()
	_, err := event.Append(event.NewBeansEvent(guildID, memberID, reason, value))
	require.NoError(t, err)
}

func TestBalanceIsSumOfWindow(t *testing.T) {
	setupTestDB(t)

	appendBeans(t, "g1", "m1", event.BeansReasonDaily, 15)
	appendBeans(t, "g1", "m1", event.BeansReasonGambaCost, -10)
	appendBeans(t, "g1", "m1", event.BeansReasonGambaPayout, 30)
	appendBeans(t, "g1", "m2", event.BeansReasonDaily, 15)

	balance, err := Balance("g1", "m1", AllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(35), balance)
}

func TestBalanceEmptyIsZero(t *testing.T) {
	setupTestDB(t)

	balance, err := Balance("g1", "nobody", AllTime)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestPrestigeIsTruePrefixMax(t *testing.T) {
	setupTestDB(t)

	// 存100、取100、再存1：峰值是100而不是1
	appendBeans(t, "g1", "m1", event.BeansReasonDaily, 100)
	appendBeans(t, "g1", "m1", event.BeansReasonGambaCost, -100)
	appendBeans(t, "g1", "m1", event.BeansReasonDaily, 1)

	peak, err := Prestige("g1", "m1", AllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(100), peak)
}

func TestPrestigeExcludesNonEarnedReasons(t *testing.T) {
	setupTestDB(t)

	appendBeans(t, "g1", "m1", event.BeansReasonDaily, 50)
	appendBeans(t, "g1", "m1", event.BeansReasonTransfer, 1000)
	appendBeans(t, "g1", "m1", event.BeansReasonBalanceChange, 500)
	appendBeans(t, "g1", "m1", event.BeansReasonShopPurchase, -20)

	peak, err := Prestige("g1", "m1", AllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(50), peak)
}

func TestDailyGrantWagerScenario(t *testing.T) {
	setupTestDB(t)

	appendBeans(t, "g1", "a", event.BeansReasonDaily, 15)
	appendBeans(t, "g1", "a", event.BeansReasonGambaCost, -10)
	appendBeans(t, "g1", "a", event.BeansReasonGambaPayout, 30)

	balance, err := Balance("g1", "a", AllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(35), balance)

	peak, err := Prestige("g1", "a", AllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(35), peak)
}

func TestTransferBeans(t *testing.T) {
	setupTestDB(t)

	appendBeans(t, "g1", "rich", event.BeansReasonDaily, 100)

	require.NoError(t, TransferBeans("g1", "rich", "poor", 40))

	richBalance, err := Balance("g1", "rich", AllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(60), richBalance)

	poorBalance, err := Balance("g1", "poor", AllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(40), poorBalance)
}

func TestTransferBeansRejectsOverdraft(t *testing.T) {
	setupTestDB(t)

	appendBeans(t, "g1", "m1", event.BeansReasonDaily, 10)
	err := TransferBeans("g1", "m1", "m2", 11)
	assert.Error(t, err)

	// 拒绝不落任何事实
	count, err := event.Count(event.Query{GuildID: "g1", Reasons: []event.BeansReason{event.BeansReasonTransfer}})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTransferBeansIsAtomic(t *testing.T) {
	setupTestDB(t)

	appendBeans(t, "g1", "rich", event.BeansReasonDaily, 100)

	// 空的收款方让第二条事实在事务内被校验拒绝，扣款那条必须一起回滚
	err := TransferBeans("g1", "rich", "", 40)
	assert.Error(t, err)

	count, err := event.Count(event.Query{GuildID: "g1", Reasons: []event.BeansReason{event.BeansReasonTransfer}})
	require.NoError(t, err)
	assert.Zero(t, count)

	balance, err := Balance("g1", "rich", AllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}
