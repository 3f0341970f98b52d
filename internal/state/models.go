// internal/state/models.go
package state

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StudentModule is the current stored state for one (user, block) pair.
//
// The state column is tri-state. NULL means the user has never touched the
// block. "{}" means state existed and was later cleared. Anything else is
// the serialized field mapping. Rows are never deleted by the store;
// clearing state keeps the row so that history remains reachable.
type StudentModule struct {
	ID         int64          `gorm:"primaryKey"`
	Username   string         `gorm:"size:150;not null;index:idx_student_block,unique,priority:1"`
	CourseID   string         `gorm:"size:255;not null;index:idx_student_block,unique,priority:2"`
	BlockType  string         `gorm:"size:64;not null;index:idx_student_block,unique,priority:3"`
	BlockID    string         `gorm:"size:255;not null;index:idx_student_block,unique,priority:4"`
	State      datatypes.JSON `gorm:"type:json"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	ModifiedAt time.Time      `gorm:"autoUpdateTime"`
}

func (StudentModule) TableName() string { return "student_modules" }

// AfterSave appends an immutable snapshot of the row's state. It runs on
// both create and update, so every save leaves a history entry.
func (m *StudentModule) AfterSave(tx *gorm.DB) error {
	entry := StudentModuleHistory{
		StudentModuleID: m.ID,
		State:           m.State,
	}
	return tx.Session(&gorm.Session{NewDB: true}).Create(&entry).Error
}

// StudentModuleHistory is an append-only snapshot of a StudentModule's
// state at save time. The store never mutates or deletes entries; only the
// retention job removes old rows.
type StudentModuleHistory struct {
	ID              int64          `gorm:"primaryKey"`
	StudentModuleID int64          `gorm:"not null;index"`
	State           datatypes.JSON `gorm:"type:json"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index"`
}

func (StudentModuleHistory) TableName() string { return "student_module_history" }
