package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/clubhouse/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Member{},
		&models.Vehicle{},
		&models.Event{},
		&models.RSVP{},
		&models.MembershipLogItem{},
		&models.ActivityLogItem{},
		&models.CacheEntry{},
	)
}
