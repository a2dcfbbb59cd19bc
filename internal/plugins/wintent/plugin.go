// Package wintent applies the Wintent brand to the system settings row.
package wintent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wintent/plugin-config/internal/database"
	"github.com/wintent/plugin-config/internal/filemanager"
	"github.com/wintent/plugin-config/internal/models"
	"github.com/wintent/plugin-config/internal/plugins"
	"github.com/wintent/plugin-config/pkg/logger"
	"github.com/wintent/plugin-config/pkg/metrics"
)

// Name is the plugin registration name.
const Name = "wintent-config"

const (
	// SettingsKey addresses the singleton settings row; the host always keeps it at 1.
	SettingsKey = models.SystemSettingsKey

	SystemSettingsPlugin = "system-settings"
	FileManagerPlugin    = "file-manager"

	BrandTitle   = "Wintent"
	BrandAppLang = "zh-CN"

	LogoTitle    = "wintent-logo"
	LogoFile     = "wintent-logo.png"
	LogoExtname  = ".png"
	LogoMimetype = "image/png"

	FaviconTitle    = "wintent-favicon"
	FaviconFile     = "icon_square.ico"
	FaviconExtname  = ".ico"
	FaviconMimetype = "image/x-icon"
)

// BrandLanguages is the enabled language list written with the brand.
func BrandLanguages() []string {
	return []string{"zh-CN", "en-US"}
}

// Triggers recorded on branding metrics.
const (
	TriggerInstallEvent = "afterInstallPlugin"
	TriggerAfterEnable  = "afterEnable"
	TriggerReconcile    = "reconcile"
)

// SettingsRepository reads and updates the settings row.
type SettingsRepository interface {
	FindOne(ctx context.Context, opts database.FindOptions) (*models.SystemSettings, error)
	Update(ctx context.Context, opts database.UpdateOptions) error
}

// PluginLookup resolves sibling plugins by name.
type PluginLookup interface {
	Get(name string) (plugins.Plugin, bool)
}

// FileRecordCreator is the file-manager capability used for uploads.
type FileRecordCreator interface {
	CreateFileRecord(ctx context.Context, input filemanager.CreateFileRecordInput) (*models.Attachment, error)
}

// Config wires the plugin to its collaborators.
type Config struct {
	Settings SettingsRepository
	Plugins  PluginLookup
	Events   plugins.Subscriber
	// AssetsDir holds wintent-logo.png and icon_square.ico. Empty extracts the packaged copies.
	AssetsDir string
	Logger    *zap.Logger
}

// Plugin reacts to the settings lifecycle and writes the brand values.
type Plugin struct {
	plugins.BasePlugin
	settings  SettingsRepository
	plugins   PluginLookup
	events    plugins.Subscriber
	assetsDir string
	log       *zap.Logger
}

// New constructs the plugin.
func New(cfg Config) (*Plugin, error) {
	if cfg.Settings == nil {
		return nil, errors.New("wintent: settings repository is required")
	}
	if cfg.Plugins == nil {
		return nil, errors.New("wintent: plugin lookup is required")
	}
	if cfg.Events == nil {
		return nil, errors.New("wintent: event subscriber is required")
	}

	dir := cfg.AssetsDir
	if dir == "" {
		extracted, err := MaterializeAssets("")
		if err != nil {
			return nil, err
		}
		dir = extracted
	}

	log := cfg.Logger
	if log == nil {
		log = logger.WithPlugin(Name)
	}

	return &Plugin{
		settings:  cfg.Settings,
		plugins:   cfg.Plugins,
		events:    cfg.Events,
		assetsDir: dir,
		log:       log,
	}, nil
}

// Name implements plugins.Plugin.
func (p *Plugin) Name() string { return Name }

// AssetsDir returns the directory uploads are read from.
func (p *Plugin) AssetsDir() string { return p.assetsDir }

// BeforeLoad subscribes to plugin installs so the brand lands right after the settings row is seeded.
func (p *Plugin) BeforeLoad(context.Context) error {
	p.events.On(plugins.EventAfterInstallPlugin, p.handleAfterInstall)
	return nil
}

// Install only logs; branding waits for the settings plugin.
func (p *Plugin) Install(context.Context) error {
	p.log.Info("installing wintent configuration plugin")
	p.log.Info("wintent configuration plugin installed, waiting for system settings to initialise")
	return nil
}

// AfterEnable applies the brand unless the current logo is already the Wintent logo.
func (p *Plugin) AfterEnable(ctx context.Context) error {
	p.EnsureBranding(ctx, TriggerAfterEnable)
	return nil
}

func (p *Plugin) handleAfterInstall(ctx context.Context, event plugins.Event) error {
	if event.Plugin.Name != SystemSettingsPlugin {
		return nil
	}
	p.log.Info("system settings plugin installed, applying wintent configuration")
	p.apply(ctx, TriggerInstallEvent)
	return nil
}

// EnsureBranding runs the idempotency check and applies the brand when the logo differs.
func (p *Plugin) EnsureBranding(ctx context.Context, trigger string) {
	defer p.recoverPanic(trigger)

	settings, err := p.settings.FindOne(ctx, database.FindOptions{Appends: []string{"logo"}})
	if err != nil {
		p.log.Warn("could not check system settings", zap.String("trigger", trigger), zap.Error(err))
		metrics.BrandingRuns.WithLabelValues(trigger, "failed").Inc()
		return
	}
	if settings == nil {
		p.log.Warn("no system settings found", zap.String("trigger", trigger))
		metrics.BrandingRuns.WithLabelValues(trigger, "skipped").Inc()
		return
	}
	if settings.Logo != nil && settings.Logo.Title == LogoTitle {
		p.log.Info("wintent configuration already applied", zap.String("trigger", trigger))
		metrics.BrandingRuns.WithLabelValues(trigger, "skipped").Inc()
		return
	}

	p.log.Info("wintent logo not found, applying configuration", zap.String("trigger", trigger))
	p.apply(ctx, trigger)
}

// ApplyWintentSettings uploads the brand assets and overwrites the brand fields of the
// settings row. Failures are logged and never returned.
func (p *Plugin) ApplyWintentSettings(ctx context.Context) {
	p.apply(ctx, "manual")
}

func (p *Plugin) apply(ctx context.Context, trigger string) {
	defer p.recoverPanic(trigger)

	existing, err := p.settings.FindOne(ctx, database.FindOptions{})
	if err != nil {
		p.fail(trigger, fmt.Errorf("load system settings: %w", err))
		return
	}
	if existing == nil {
		p.log.Warn("no system settings found, skipping wintent configuration")
		metrics.BrandingRuns.WithLabelValues(trigger, "skipped").Inc()
		return
	}

	values := database.SettingsValues{
		Title:            stringPtr(BrandTitle),
		AppLang:          stringPtr(BrandAppLang),
		EnabledLanguages: BrandLanguages(),
	}

	if creator, ok := p.fileManager(); ok {
		values.Logo = p.upload(ctx, creator, LogoFile, filemanager.AttachmentValues{
			Title:    LogoTitle,
			Extname:  LogoExtname,
			Mimetype: LogoMimetype,
		}, "wintent logo file not found, keeping existing logo")

		values.Favicon = p.upload(ctx, creator, FaviconFile, filemanager.AttachmentValues{
			Title:    FaviconTitle,
			Extname:  FaviconExtname,
			Mimetype: FaviconMimetype,
		}, "wintent favicon file not found")
	} else {
		p.log.Warn("file manager plugin unavailable, skipping logo and favicon uploads")
	}

	if err := p.settings.Update(ctx, database.UpdateOptions{FilterByTk: SettingsKey, Values: values}); err != nil {
		p.fail(trigger, fmt.Errorf("update system settings: %w", err))
		return
	}

	p.log.Info("wintent configuration applied",
		zap.String("trigger", trigger),
		zap.Bool("logo", values.Logo != nil),
		zap.Bool("favicon", values.Favicon != nil),
	)
	metrics.BrandingRuns.WithLabelValues(trigger, "applied").Inc()
}

func (p *Plugin) fileManager() (FileRecordCreator, bool) {
	plugin, ok := p.plugins.Get(FileManagerPlugin)
	if !ok || plugin == nil {
		return nil, false
	}
	creator, ok := plugin.(FileRecordCreator)
	return creator, ok
}

func (p *Plugin) upload(ctx context.Context, creator FileRecordCreator, file string, values filemanager.AttachmentValues, failure string) *models.Attachment {
	attachment, err := creator.CreateFileRecord(ctx, filemanager.CreateFileRecordInput{
		FilePath:       filepath.Join(p.assetsDir, file),
		CollectionName: models.AttachmentsCollection,
		Values:         values,
	})
	if err != nil || attachment == nil {
		p.log.Warn(failure, zap.String("file", file), zap.Error(err))
		return nil
	}
	p.log.Info("wintent asset uploaded", zap.String("title", values.Title), zap.String("id", attachment.ID))
	return attachment
}

func (p *Plugin) fail(trigger string, err error) {
	p.log.Error("failed to apply wintent configuration", zap.String("trigger", trigger), zap.Error(err))
	metrics.BrandingRuns.WithLabelValues(trigger, "failed").Inc()
}

func (p *Plugin) recoverPanic(trigger string) {
	if r := recover(); r != nil {
		p.fail(trigger, fmt.Errorf("panic: %v", r))
	}
}

func stringPtr(v string) *string {
	return &v
}
