package metadata

import (
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Generic Accessors ---

// GetValue retrieves a value for a given key from the metadata table.
func GetValue(db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// If the key doesn't exist, return an empty string, which is a valid default.
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue creates or updates a value for a given key within a transaction.
func SetValue(db *gorm.DB, key, value string) error {
	// Use GORM's OnConflict clause for an efficient and atomic "upsert" operation.
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
}

// --- Specific Helpers for Type Conversion ---

// GetLastSnapshotEventID is a helper that retrieves and parses the last snapshot event ID.
func GetLastSnapshotEventID(db *gorm.DB) (uint, error) {
	valueStr, err := GetValue(db, LastSnapshotEventIDKey)
	if err != nil {
		return 0, err
	}
	if valueStr == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(valueStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", LastSnapshotEventIDKey, err)
	}
	return uint(id), nil
}

// SetLastSnapshotEventID is a helper that formats and sets the last snapshot event ID.
func SetLastSnapshotEventID(db *gorm.DB, eventID uint) error {
	valueStr := strconv.FormatUint(uint64(eventID), 10)
	return SetValue(db, LastSnapshotEventIDKey, valueStr)
}
