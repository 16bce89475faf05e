package models

import "time"

// Deliverable statuses.
const (
	DeliverableActive   = "active"
	DeliverablePaused   = "paused"
	DeliverableArchived = "archived"
)

// Deliverable is a user-defined recurring content commitment, e.g. a weekly
// status report or a Monday-morning client digest.
type Deliverable struct {
	ID                string `gorm:"primaryKey;size:32"`
	OwnerID           string `gorm:"size:32;not null;index"`
	Title             string `gorm:"not null"`
	Frequency         string `gorm:"size:16;default:weekly"`
	Day               string `gorm:"size:16"`
	TimeOfDay         string `gorm:"size:8"`
	Timezone          string `gorm:"size:64;default:UTC"`
	CronExpr          string `gorm:"size:64"`
	Sources           string `gorm:"type:json"`
	TemplateStructure string `gorm:"type:text"`
	Status            string `gorm:"size:16;default:active;index"`
	QuietStart        string `gorm:"size:8"`
	QuietEnd          string `gorm:"size:8"`
	QualityScore      float64
	NextRunAt         *time.Time `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Versions []DeliverableVersion `gorm:"foreignKey:DeliverableID"`
}

// SourceDescriptor identifies one connected content source for a deliverable.
// Stored JSON-encoded in Deliverable.Sources.
type SourceDescriptor struct {
	Platform string `json:"platform"` // e.g. "slack", "gmail", "notion"
	Resource string `json:"resource"` // platform-specific resource locator
}
