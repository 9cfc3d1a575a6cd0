package settings

import (
	"fmt"
	"testing"

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
	require.NoError(t, db.AutoMigrate(&Setting{}))
}

func TestGetStringFallsBackToDefault(t *testing.T) {
	setupTestDB(t)
	RegisterDefaults("greet", map[string]string{"message": "hello"})

	v, err := GetString("g1", "greet", "message")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestGetStringMissingKeyWithoutDefault(t *testing.T) {
	setupTestDB(t)

	_, err := GetString("g1", "greet", "no_such_key")
	assert.Error(t, err)
}

func TestSetOverridesDefault(t *testing.T) {
	setupTestDB(t)
	RegisterDefaults("greet", map[string]string{"message": "hello"})

	require.NoError(t, Set("g1", "greet", "message", "hi"))

	v, err := GetString("g1", "greet", "message")
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	// 覆盖只作用于写入的公会
	other, err := GetString("g2", "greet", "message")
	require.NoError(t, err)
	assert.Equal(t, "hello", other)
}

func TestSetUpdatesExistingRow(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, Set("g1", "greet", "message", "first"))
	require.NoError(t, Set("g1", "greet", "message", "second"))

	v, err := GetString("g1", "greet", "message")
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	var count int64
	require.NoError(t, database.DB.Model(&Setting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTypedGetters(t *testing.T) {
	setupTestDB(t)
	RegisterDefaults("typed", map[string]string{
		"count":   "42",
		"rate":    "0.25",
		"enabled": "true",
	})

	n, err := GetInt("g1", "typed", "count")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	f, err := GetFloat("g1", "typed", "rate")
	require.NoError(t, err)
	assert.Equal(t, 0.25, f)

	b, err := GetBool("g1", "typed", "enabled")
	require.NoError(t, err)
	assert.True(t, b)
}

func TestTypedGettersRejectMalformedValues(t *testing.T) {
	setupTestDB(t)
	require.NoError(t, Set("g1", "typed", "count", "not-a-number"))

	_, err := GetInt("g1", "typed", "count")
	assert.Error(t, err)
	_, err = GetFloat("g1", "typed", "count")
	assert.Error(t, err)
	_, err = GetBool("g1", "typed", "count")
	assert.Error(t, err)
}

func TestGetStringListParsing(t *testing.T) {
	setupTestDB(t)
	require.NoError(t, Set("g1", "lists", "channels", "a, b ,,c"))

	list, err := GetStringList("g1", "lists", "channels")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, list)
}

func TestGetStringListEmptyValue(t *testing.T) {
	setupTestDB(t)
	RegisterDefaults("lists", map[string]string{"channels": ""})

	list, err := GetStringList("g1", "lists", "channels")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestModuleValuesOverlay(t *testing.T) {
	setupTestDB(t)
	RegisterDefaults("overlay", map[string]string{
		"a": "1",
		"b": "2",
	})
	require.NoError(t, Set("g1", "overlay", "b", "20"))
	require.NoError(t, Set("g1", "overlay", "c", "30"))

	values, err := ModuleValues("g1", "overlay")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "20", "c": "30"}, values)
}

func TestRegisterDefaultsLaterWins(t *testing.T) {
	RegisterDefaults("dup", map[string]string{"k": "old"})
	RegisterDefaults("dup", map[string]string{"k": "new"})

	v, ok := defaultValue("dup", "k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}
