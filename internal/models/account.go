package models

import "time"

// Account holds per-owner state the pipeline and scheduler need: engagement
// counters feeding user-stage derivation, the manual-trigger cooldown
// timestamp, and the one-time suggestion-intro flag.
type Account struct {
	ID                  string `gorm:"primaryKey;size:32"`
	Email               string `gorm:"size:255"`
	Timezone            string `gorm:"size:64;default:UTC"`
	SessionCount        int
	ApprovalCount       int
	LastManualTriggerAt *time.Time
	SuggestionIntroSent bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
