package models

import "time"

// DeliverableVersion statuses.
const (
	VersionGenerating = "generating"
	VersionStaged     = "staged"
	VersionApproved   = "approved"
	VersionRejected   = "rejected"
	VersionFailed     = "failed"
)

// DeliverableVersion is one pipeline run's output for a deliverable. Versions
// accumulate and are never overwritten; feedback fields are filled in by the
// feedback engine after approval.
type DeliverableVersion struct {
	ID                string `gorm:"primaryKey;size:32"`
	DeliverableID     string `gorm:"size:32;not null;uniqueIndex:idx_deliverable_version,priority:1"`
	OwnerID           string `gorm:"size:32;not null;index"`
	VersionNumber     int    `gorm:"not null;uniqueIndex:idx_deliverable_version,priority:2"`
	Status            string `gorm:"size:16;default:generating;index"`
	DraftContent      string `gorm:"type:text"`
	FinalContent      string `gorm:"type:text"`
	EditCategories    string `gorm:"type:json"`
	EditDistanceScore *float64
	FailureReason     string `gorm:"type:text"`
	CreatedAt         time.Time
	StagedAt          *time.Time
	ApprovedAt        *time.Time

	Tickets []WorkTicket `gorm:"foreignKey:DeliverableVersionID"`
}
