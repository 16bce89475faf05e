// Package memory provides the append-only preference memory store. Memories
// are facts derived from feedback or detected behavior; corrections are new
// rows so the history of what the system believed is preserved. Readers see
// most-recent-first ordering, which makes most-recent-wins the effective
// conflict resolution.
package memory

import (
	"fmt"
	"time"

	"github.com/zulandar/inkwell/internal/models"
	"gorm.io/gorm"
)

// AppendOpts holds optional parameters for appending a memory.
type AppendOpts struct {
	DeliverableID string  // tag the memory to one deliverable
	Confidence    float64 // defaults to 1.0
}

// Append records a new preference memory. Memories are never updated or
// deleted through this package.
func Append(db *gorm.DB, ownerID, content, source string, opts AppendOpts) (*models.PreferenceMemory, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("memory: ownerID is required")
	}
	if content == "" {
		return nil, fmt.Errorf("memory: content is required")
	}
	if source == "" {
		return nil, fmt.Errorf("memory: source is required")
	}

	confidence := opts.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	mem := models.PreferenceMemory{
		ID:         models.NewID(),
		OwnerID:    ownerID,
		Content:    content,
		Source:     source,
		Confidence: confidence,
		CreatedAt:  time.Now(),
	}
	if opts.DeliverableID != "" {
		mem.DeliverableID = &opts.DeliverableID
	}

	if err := db.Create(&mem).Error; err != nil {
		return nil, fmt.Errorf("memory: append: %w", err)
	}
	return &mem, nil
}

// ForDeliverable returns the most recent memories tagged to a deliverable,
// newest first.
func ForDeliverable(db *gorm.DB, deliverableID string, limit int) ([]models.PreferenceMemory, error) {
	if deliverableID == "" {
		return nil, fmt.Errorf("memory: deliverableID is required")
	}
	if limit <= 0 {
		limit = 20
	}

	var mems []models.PreferenceMemory
	if err := db.Where("deliverable_id = ?", deliverableID).
		Order("created_at DESC").Limit(limit).Find(&mems).Error; err != nil {
		return nil, fmt.Errorf("memory: for deliverable %s: %w", deliverableID, err)
	}
	return mems, nil
}

// ForOwner returns the most recent owner-level memories (those not tagged to
// any deliverable), newest first.
func ForOwner(db *gorm.DB, ownerID string, limit int) ([]models.PreferenceMemory, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("memory: ownerID is required")
	}
	if limit <= 0 {
		limit = 20
	}

	var mems []models.PreferenceMemory
	if err := db.Where("owner_id = ? AND deliverable_id IS NULL", ownerID).
		Order("created_at DESC").Limit(limit).Find(&mems).Error; err != nil {
		return nil, fmt.Errorf("memory: for owner %s: %w", ownerID, err)
	}
	return mems, nil
}
