package models

import "time"

// InteractionSession is one recorded conversation/work session for an owner.
// The pattern detector scans a bounded recent window of these for
// cross-session repetition signals. Topics and Resources are JSON string
// arrays extracted at capture time by the session recorder (out of scope
// here); Text is the raw session transcript.
type InteractionSession struct {
	ID        string `gorm:"primaryKey;size:32"`
	OwnerID   string `gorm:"size:32;not null;index"`
	Topics    string `gorm:"type:json"`
	Resources string `gorm:"type:json"`
	Text      string `gorm:"type:text"`
	StartedAt time.Time `gorm:"index"`
	CreatedAt time.Time
}
