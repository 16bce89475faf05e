package models

import "time"

// PreferenceMemory sources.
const (
	MemorySourceFeedback   = "feedback"
	MemorySourcePattern    = "pattern"
	MemorySourceUserStated = "user_stated"
)

// PreferenceMemory is a persisted, append-only fact derived from feedback or
// detected behavior, consumed as additional context by future pipeline runs.
// Corrections are new rows, never in-place edits, so the history of what the
// system believed at any point is preserved. Pipeline step outputs chained as
// memory use a "pipeline:{step}" source tag.
type PreferenceMemory struct {
	ID            string  `gorm:"primaryKey;size:32"`
	OwnerID       string  `gorm:"size:32;not null;index"`
	DeliverableID *string `gorm:"size:32;index"`
	Content       string  `gorm:"type:text;not null"`
	Source        string  `gorm:"size:32;not null"`
	Confidence    float64 `gorm:"default:1"`
	CreatedAt     time.Time
}
