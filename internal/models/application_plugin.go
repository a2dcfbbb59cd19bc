package models

import "time"

// ApplicationPlugin records the lifecycle state of a plugin across restarts.
type ApplicationPlugin struct {
	Name      string    `gorm:"primaryKey;size:128" json:"name"`
	Installed bool      `gorm:"not null;default:false" json:"installed"`
	Enabled   bool      `gorm:"not null;default:false" json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName keeps the host's collection name.
func (ApplicationPlugin) TableName() string {
	return "application_plugins"
}
