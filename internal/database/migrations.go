package database

import (
	"gorm.io/gorm"

	"github.com/wintent/plugin-config/internal/models"
)

// AutoMigrate creates or updates the database schema for all models. Attachments
// migrate before settings because settings reference them.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ApplicationPlugin{},
		&models.Attachment{},
		&models.SystemSettings{},
		&models.CacheEntry{},
	)
}
