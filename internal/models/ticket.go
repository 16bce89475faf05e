package models

import "time"

// WorkTicket statuses.
const (
	TicketPending   = "pending"
	TicketRunning   = "running"
	TicketCompleted = "completed"
	TicketFailed    = "failed"
)

// Pipeline steps, in chain order.
const (
	StepGather     = "gather"
	StepSynthesize = "synthesize"
	StepStage      = "stage"
)

// WorkTicket is one step of a generation chain. A ticket with a non-nil
// DependsOnWorkID may only start running once the referenced ticket has
// completed. Tickets are created in a batch at trigger time and mutated only
// by the executor that owns the run.
type WorkTicket struct {
	ID                   string  `gorm:"primaryKey;size:32"`
	OwnerID              string  `gorm:"size:32;not null;index"`
	DeliverableID        string  `gorm:"size:32;not null;index"`
	DeliverableVersionID string  `gorm:"size:32;not null;index"`
	PipelineStep         string  `gorm:"size:16;not null"`
	DependsOnWorkID      *string `gorm:"size:32"`
	Status               string  `gorm:"size:16;default:pending;index"`
	ChainOutputAsMemory  bool
	Output               string `gorm:"type:text"`
	CreatedAt            time.Time
	StartedAt            *time.Time
	CompletedAt          *time.Time

	DependsOn *WorkTicket `gorm:"foreignKey:DependsOnWorkID"`
}
