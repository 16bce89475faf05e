package models

import "time"

// SuggestedDeliverable statuses.
const (
	SuggestionPending   = "pending"
	SuggestionEnabled   = "enabled"
	SuggestionDismissed = "dismissed"
)

// SuggestedDeliverable is a pattern-detector candidate awaiting explicit user
// action. Enabling materializes a Deliverable with the proposed schedule;
// dismissing records the refusal so the same pattern is not re-suggested.
type SuggestedDeliverable struct {
	ID                string  `gorm:"primaryKey;size:32"`
	OwnerID           string  `gorm:"size:32;not null;index"`
	Confidence        float64 `gorm:"not null"`
	DetectionReason   string  `gorm:"type:text"`
	ProposedTitle     string  `gorm:"not null"`
	ProposedFrequency string  `gorm:"size:16;default:weekly"`
	ProposedDay       string  `gorm:"size:16"`
	ProposedTime      string  `gorm:"size:8"`
	ProposedTimezone  string  `gorm:"size:64;default:UTC"`
	Status            string  `gorm:"size:16;default:pending;index"`
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}
