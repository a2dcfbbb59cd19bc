package models

import (
	"time"

	"gorm.io/datatypes"
)

// SystemSettingsKey is the primary key of the one settings row. The host keeps a
// single row by convention and branding code always addresses it by this key.
const SystemSettingsKey uint = 1

// SystemSettings holds platform-wide branding and locale configuration.
type SystemSettings struct {
	ID               uint                        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title            string                      `gorm:"size:255" json:"title"`
	AppLang          string                      `gorm:"size:32" json:"appLang"`
	EnabledLanguages datatypes.JSONSlice[string] `json:"enabledLanguages"`
	LogoID           *string                     `gorm:"type:uuid" json:"logoId,omitempty"`
	Logo             *Attachment                 `gorm:"foreignKey:LogoID;constraint:OnDelete:SET NULL" json:"logo,omitempty"`
	FaviconID        *string                     `gorm:"type:uuid" json:"faviconId,omitempty"`
	Favicon          *Attachment                 `gorm:"foreignKey:FaviconID;constraint:OnDelete:SET NULL" json:"favicon,omitempty"`
	CreatedAt        time.Time                   `json:"createdAt"`
	UpdatedAt        time.Time                   `json:"updatedAt"`
}

// TableName keeps the host's collection name.
func (SystemSettings) TableName() string {
	return "system_settings"
}
