// Package systemsettings hosts the built-in plugin that owns the singleton settings row.
package systemsettings

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wintent/plugin-config/internal/database"
	"github.com/wintent/plugin-config/internal/models"
	"github.com/wintent/plugin-config/internal/plugins"
	"github.com/wintent/plugin-config/pkg/logger"
)

// Name is the registration name other plugins listen for.
const Name = "system-settings"

// Defaults returns the row seeded on first install.
func Defaults() models.SystemSettings {
	return models.SystemSettings{
		ID:               models.SystemSettingsKey,
		Title:            "NocoBase",
		AppLang:          "en-US",
		EnabledLanguages: []string{"en-US"},
	}
}

// Plugin seeds the settings row on install.
type Plugin struct {
	plugins.BasePlugin
	db       *gorm.DB
	defaults models.SystemSettings
	log      *zap.Logger
}

// New constructs the plugin. A zero defaults value falls back to Defaults().
func New(db *gorm.DB, defaults models.SystemSettings) (*Plugin, error) {
	if db == nil {
		return nil, errors.New("system settings plugin: db is required")
	}
	if defaults.Title == "" {
		defaults = Defaults()
	}
	return &Plugin{db: db, defaults: defaults, log: logger.WithPlugin(Name)}, nil
}

// Name implements plugins.Plugin.
func (p *Plugin) Name() string { return Name }

// Install creates the settings row when absent.
func (p *Plugin) Install(ctx context.Context) error {
	created, err := database.EnsureSystemSettings(ctx, p.db, p.defaults)
	if err != nil {
		return err
	}
	if created {
		p.log.Info("system settings initialised", zap.String("title", p.defaults.Title))
	}
	return nil
}
