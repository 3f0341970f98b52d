// internal/state/db.go
package state

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the sqlite database at path. TranslateError is required: the
// store relies on gorm.ErrDuplicatedKey to detect racing inserts.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema for the state tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&StudentModule{}, &StudentModuleHistory{}); err != nil {
		return fmt.Errorf("migrate state tables: %w", err)
	}
	return nil
}
