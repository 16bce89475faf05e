package db

import (
	"fmt"

	"github.com/zulandar/inkwell/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Deliverable{},
		&models.DeliverableVersion{},
		&models.WorkTicket{},
		&models.PreferenceMemory{},
		&models.SuggestedDeliverable{},
		&models.InteractionSession{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
