package pattern

import (
	"fmt"
	"time"

	"github.com/zulandar/inkwell/internal/models"
	"github.com/zulandar/inkwell/internal/schedule"
	"gorm.io/gorm"
)

// ListPending returns the owner's suggestions awaiting action, newest first.
func ListPending(db *gorm.DB, ownerID string) ([]models.SuggestedDeliverable, error) {
	var out []models.SuggestedDeliverable
	if err := db.Where("owner_id = ? AND status = ?", ownerID, models.SuggestionPending).
		Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("pattern: list suggestions: %w", err)
	}
	return out, nil
}

// Enable materializes a pending suggestion into an active deliverable with
// the proposed schedule and marks the suggestion enabled.
func Enable(db *gorm.DB, suggestionID string, now time.Time) (*models.Deliverable, error) {
	var d *models.Deliverable

	err := db.Transaction(func(tx *gorm.DB) error {
		var s models.SuggestedDeliverable
		if err := tx.Where("id = ?", suggestionID).First(&s).Error; err != nil {
			return fmt.Errorf("pattern: load suggestion %s: %w", suggestionID, err)
		}
		if s.Status != models.SuggestionPending {
			return fmt.Errorf("pattern: suggestion %s is %s, only pending suggestions can be enabled", suggestionID, s.Status)
		}

		next, err := schedule.Next(schedule.Spec{
			Frequency: s.ProposedFrequency,
			Day:       s.ProposedDay,
			TimeOfDay: s.ProposedTime,
			Timezone:  s.ProposedTimezone,
		}, now)
		if err != nil {
			return err
		}

		d = &models.Deliverable{
			ID:        models.NewID(),
			OwnerID:   s.OwnerID,
			Title:     s.ProposedTitle,
			Frequency: s.ProposedFrequency,
			Day:       s.ProposedDay,
			TimeOfDay: s.ProposedTime,
			Timezone:  s.ProposedTimezone,
			Status:    models.DeliverableActive,
			NextRunAt: &next,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(d).Error; err != nil {
			return fmt.Errorf("pattern: create deliverable: %w", err)
		}

		return tx.Model(&models.SuggestedDeliverable{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
			"status":      models.SuggestionEnabled,
			"resolved_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Dismiss marks a pending suggestion dismissed. The row is kept so the same
// pattern is not re-suggested later.
func Dismiss(db *gorm.DB, suggestionID string, now time.Time) error {
	var s models.SuggestedDeliverable
	if err := db.Where("id = ?", suggestionID).First(&s).Error; err != nil {
		return fmt.Errorf("pattern: load suggestion %s: %w", suggestionID, err)
	}
	if s.Status != models.SuggestionPending {
		return fmt.Errorf("pattern: suggestion %s is %s, only pending suggestions can be dismissed", suggestionID, s.Status)
	}

	if err := db.Model(&models.SuggestedDeliverable{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
		"status":      models.SuggestionDismissed,
		"resolved_at": now,
	}).Error; err != nil {
		return fmt.Errorf("pattern: dismiss suggestion %s: %w", suggestionID, err)
	}
	return nil
}
