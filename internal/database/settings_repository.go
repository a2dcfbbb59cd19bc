package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wintent/plugin-config/internal/models"
)

var (
	// ErrSettingsNotFound is returned by Update when no row carries the requested key.
	ErrSettingsNotFound = errors.New("system settings: row not found")
	// ErrUnknownAppend signals an append name that is not a settings relation.
	ErrUnknownAppend = errors.New("system settings: unknown append")
)

// settingsAppends maps host relation names to gorm associations.
var settingsAppends = map[string]string{
	"logo":    "Logo",
	"favicon": "Favicon",
}

// FindOptions mirrors the host repository's findOne options.
type FindOptions struct {
	// Appends lists relations to resolve, e.g. "logo".
	Appends []string
}

// SettingsValues is a partial update; nil fields are left untouched.
type SettingsValues struct {
	Title            *string
	AppLang          *string
	EnabledLanguages []string
	Logo             *models.Attachment
	Favicon          *models.Attachment
}

// UpdateOptions mirrors the host repository's update options.
type UpdateOptions struct {
	FilterByTk uint
	Values     SettingsValues
}

// SystemSettingsRepository reads and updates the singleton settings row.
type SystemSettingsRepository struct {
	db *gorm.DB
}

// NewSystemSettingsRepository constructs a repository over db.
func NewSystemSettingsRepository(db *gorm.DB) (*SystemSettingsRepository, error) {
	if db == nil {
		return nil, errors.New("system settings: db is required")
	}
	return &SystemSettingsRepository{db: db}, nil
}

// FindOne returns the first settings row, or nil when none exists.
func (r *SystemSettingsRepository) FindOne(ctx context.Context, opts FindOptions) (*models.SystemSettings, error) {
	query := r.db.WithContext(ctx)
	for _, name := range opts.Appends {
		assoc, ok := settingsAppends[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAppend, name)
		}
		query = query.Preload(assoc)
	}

	var settings models.SystemSettings
	err := query.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("system settings: find: %w", err)
	}
	return &settings, nil
}

// Update writes the set fields of opts.Values to the row addressed by opts.FilterByTk.
func (r *SystemSettingsRepository) Update(ctx context.Context, opts UpdateOptions) error {
	updates, err := opts.Values.columns()
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.SystemSettings{}).Where("id = ?", opts.FilterByTk).Count(&count).Error; err != nil {
			return fmt.Errorf("system settings: lookup %d: %w", opts.FilterByTk, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: key %d", ErrSettingsNotFound, opts.FilterByTk)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.SystemSettings{}).Where("id = ?", opts.FilterByTk).Updates(updates).Error; err != nil {
			return fmt.Errorf("system settings: update %d: %w", opts.FilterByTk, err)
		}
		return nil
	})
}

func (v SettingsValues) columns() (map[string]any, error) {
	updates := map[string]any{}
	if v.Title != nil {
		updates["title"] = *v.Title
	}
	if v.AppLang != nil {
		updates["app_lang"] = *v.AppLang
	}
	if v.EnabledLanguages != nil {
		updates["enabled_languages"] = datatypes.JSONSlice[string](v.EnabledLanguages)
	}
	if v.Logo != nil {
		if v.Logo.ID == "" {
			return nil, errors.New("system settings: logo attachment has no id")
		}
		updates["logo_id"] = v.Logo.ID
	}
	if v.Favicon != nil {
		if v.Favicon.ID == "" {
			return nil, errors.New("system settings: favicon attachment has no id")
		}
		updates["favicon_id"] = v.Favicon.ID
	}
	return updates, nil
}

// EnsureSystemSettings creates the singleton row from defaults when it is missing.
// It reports whether a row was created and never creates a second row.
func EnsureSystemSettings(ctx context.Context, db *gorm.DB, defaults models.SystemSettings) (bool, error) {
	if db == nil {
		return false, errors.New("system settings: db is nil")
	}
	defaults.ID = models.SystemSettingsKey

	var count int64
	if err := db.WithContext(ctx).Model(&models.SystemSettings{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("system settings: count: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if err := db.WithContext(ctx).Create(&defaults).Error; err != nil {
		if IsUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("system settings: seed: %w", err)
	}
	return true, nil
}
