package database

import (
	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Meeting{},
		&models.Context{},
		&models.Notification{},
		&models.AttendeeInfo{},
	)
}
