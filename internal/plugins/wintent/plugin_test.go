package wintent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wintent/plugin-config/internal/database"
	"github.com/wintent/plugin-config/internal/filemanager"
	"github.com/wintent/plugin-config/internal/models"
	"github.com/wintent/plugin-config/internal/plugins"
)

type fakeSettings struct {
	row       *models.SystemSettings
	findErr   error
	updateErr error
	finds     []database.FindOptions
	updates   []database.UpdateOptions
}

func (f *fakeSettings) FindOne(_ context.Context, opts database.FindOptions) (*models.SystemSettings, error) {
	f.finds = append(f.finds, opts)
	return f.row, f.findErr
}

func (f *fakeSettings) Update(_ context.Context, opts database.UpdateOptions) error {
	f.updates = append(f.updates, opts)
	return f.updateErr
}

type fakeFileManager struct {
	plugins.BasePlugin
	fail  map[string]error
	calls []filemanager.CreateFileRecordInput
}

func (f *fakeFileManager) Name() string { return FileManagerPlugin }

func (f *fakeFileManager) CreateFileRecord(_ context.Context, input filemanager.CreateFileRecordInput) (*models.Attachment, error) {
	f.calls = append(f.calls, input)
	if err := f.fail[input.Values.Title]; err != nil {
		return nil, err
	}
	return &models.Attachment{
		BaseModel: models.BaseModel{ID: input.Values.Title + "-id"},
		Title:     input.Values.Title,
		Extname:   input.Values.Extname,
		Mimetype:  input.Values.Mimetype,
	}, nil
}

type fakeLookup map[string]plugins.Plugin

func (l fakeLookup) Get(name string) (plugins.Plugin, bool) {
	p, ok := l[name]
	return p, ok
}

type harness struct {
	plugin   *Plugin
	settings *fakeSettings
	files    *fakeFileManager
	lookup   fakeLookup
	bus      *plugins.EventBus
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, row *models.SystemSettings) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		settings: &fakeSettings{row: row},
		files:    &fakeFileManager{fail: map[string]error{}},
		bus:      plugins.NewEventBus(),
		logs:     logs,
	}
	h.lookup = fakeLookup{FileManagerPlugin: h.files}

	plugin, err := New(Config{
		Settings:  h.settings,
		Plugins:   h.lookup,
		Events:    h.bus,
		AssetsDir: t.TempDir(),
		Logger:    zap.New(core),
	})
	require.NoError(t, err)
	h.plugin = plugin
	return h
}

func existingRow() *models.SystemSettings {
	return &models.SystemSettings{ID: SettingsKey, Title: "NocoBase", AppLang: "en-US"}
}

func TestApplyWithoutSettingsRowSkipsUpdate(t *testing.T) {
	h := newHarness(t, nil)

	h.plugin.ApplyWintentSettings(context.Background())

	require.Empty(t, h.settings.updates)
	require.Empty(t, h.files.calls)
	require.Equal(t, 1, h.logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("no system settings found").Len())
}

func TestApplyWithoutFileManagerWritesScalarFields(t *testing.T) {
	h := newHarness(t, existingRow())
	delete(h.lookup, FileManagerPlugin)

	h.plugin.ApplyWintentSettings(context.Background())

	require.Len(t, h.settings.updates, 1)
	update := h.settings.updates[0]
	require.Equal(t, SettingsKey, update.FilterByTk)
	require.Equal(t, BrandTitle, *update.Values.Title)
	require.Equal(t, BrandAppLang, *update.Values.AppLang)
	require.Equal(t, []string{"zh-CN", "en-US"}, update.Values.EnabledLanguages)
	require.Nil(t, update.Values.Logo)
	require.Nil(t, update.Values.Favicon)
}

func TestApplyWithBothUploads(t *testing.T) {
	h := newHarness(t, existingRow())

	h.plugin.ApplyWintentSettings(context.Background())

	require.Len(t, h.files.calls, 2)
	logo := h.files.calls[0]
	require.Equal(t, filepath.Join(h.plugin.AssetsDir(), LogoFile), logo.FilePath)
	require.Equal(t, models.AttachmentsCollection, logo.CollectionName)
	require.Equal(t, filemanager.AttachmentValues{Title: LogoTitle, Extname: ".png", Mimetype: "image/png"}, logo.Values)
	favicon := h.files.calls[1]
	require.Equal(t, filepath.Join(h.plugin.AssetsDir(), FaviconFile), favicon.FilePath)
	require.Equal(t, filemanager.AttachmentValues{Title: FaviconTitle, Extname: ".ico", Mimetype: "image/x-icon"}, favicon.Values)

	require.Len(t, h.settings.updates, 1)
	values := h.settings.updates[0].Values
	require.NotNil(t, values.Logo)
	require.Equal(t, "wintent-logo-id", values.Logo.ID)
	require.NotNil(t, values.Favicon)
	require.Equal(t, "wintent-favicon-id", values.Favicon.ID)
}

func TestApplyLogoFailureKeepsFavicon(t *testing.T) {
	h := newHarness(t, existingRow())
	h.files.fail[LogoTitle] = os.ErrNotExist

	h.plugin.ApplyWintentSettings(context.Background())

	require.Len(t, h.settings.updates, 1)
	values := h.settings.updates[0].Values
	require.Nil(t, values.Logo)
	require.NotNil(t, values.Favicon)
	require.Equal(t, 1, h.logs.FilterMessageSnippet("keeping existing logo").Len())
}

func TestApplyFaviconFailureKeepsLogo(t *testing.T) {
	h := newHarness(t, existingRow())
	h.files.fail[FaviconTitle] = os.ErrNotExist

	h.plugin.ApplyWintentSettings(context.Background())

	require.Len(t, h.files.calls, 2)
	require.Len(t, h.settings.updates, 1)
	values := h.settings.updates[0].Values
	require.NotNil(t, values.Logo)
	require.Equal(t, "wintent-logo-id", values.Logo.ID)
	require.Nil(t, values.Favicon)
	require.Equal(t, BrandTitle, *values.Title)
	require.Equal(t, 1, h.logs.FilterMessageSnippet("wintent favicon file not found").Len())
}

func TestApplyUpdateFailureIsLogged(t *testing.T) {
	h := newHarness(t, existingRow())
	h.settings.updateErr = errors.New("database is locked")

	require.NotPanics(t, func() { h.plugin.ApplyWintentSettings(context.Background()) })

	errorsLogged := h.logs.FilterLevelExact(zapcore.ErrorLevel)
	require.Equal(t, 1, errorsLogged.Len())
	require.Contains(t, errorsLogged.All()[0].ContextMap()["error"], "database is locked")
}

func TestApplyFindFailureIsLogged(t *testing.T) {
	h := newHarness(t, nil)
	h.settings.findErr = errors.New("connection refused")

	h.plugin.ApplyWintentSettings(context.Background())

	require.Empty(t, h.settings.updates)
	require.Equal(t, 1, h.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestAfterEnableIsNoopWhenLogoAlreadyApplied(t *testing.T) {
	row := existingRow()
	row.Logo = &models.Attachment{Title: LogoTitle}
	h := newHarness(t, row)

	require.NoError(t, h.plugin.AfterEnable(context.Background()))

	require.Empty(t, h.settings.updates)
	require.Empty(t, h.files.calls)
	require.Equal(t, []database.FindOptions{{Appends: []string{"logo"}}}, h.settings.finds)
}

func TestAfterEnableAppliesWhenLogoDiffers(t *testing.T) {
	row := existingRow()
	row.Logo = &models.Attachment{Title: "custom-logo"}
	h := newHarness(t, row)

	require.NoError(t, h.plugin.AfterEnable(context.Background()))
	require.Len(t, h.settings.updates, 1)

	h.settings.row.Logo = nil
	require.NoError(t, h.plugin.AfterEnable(context.Background()))
	require.Len(t, h.settings.updates, 2)
}

func TestAfterEnableWithoutRowWarns(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.plugin.AfterEnable(context.Background()))
	require.Empty(t, h.settings.updates)
	require.Equal(t, 1, h.logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestAfterEnableLookupErrorWarns(t *testing.T) {
	h := newHarness(t, nil)
	h.settings.findErr = errors.New("timeout")

	require.NoError(t, h.plugin.AfterEnable(context.Background()))
	require.Empty(t, h.settings.updates)
	require.Equal(t, 1, h.logs.FilterMessageSnippet("could not check system settings").Len())
}

func TestInstallEventTriggersOnlyForSystemSettings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, existingRow())
	require.NoError(t, h.plugin.BeforeLoad(ctx))
	require.Equal(t, 1, h.bus.Count(plugins.EventAfterInstallPlugin))

	require.NoError(t, h.bus.Emit(ctx, plugins.EventAfterInstallPlugin, plugins.Descriptor{Name: "file-manager"}))
	require.Empty(t, h.settings.updates)

	require.NoError(t, h.bus.Emit(ctx, plugins.EventAfterInstallPlugin, plugins.Descriptor{Name: SystemSettingsPlugin}))
	require.Len(t, h.settings.updates, 1)
}

func TestInstallOnlyLogs(t *testing.T) {
	h := newHarness(t, existingRow())

	require.NoError(t, h.plugin.Install(context.Background()))
	require.Empty(t, h.settings.finds)
	require.Empty(t, h.settings.updates)
	require.Equal(t, 2, h.logs.FilterLevelExact(zapcore.InfoLevel).Len())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{Settings: &fakeSettings{}})
	require.Error(t, err)
	_, err = New(Config{Settings: &fakeSettings{}, Plugins: fakeLookup{}})
	require.Error(t, err)
}

func TestNewExtractsPackagedAssets(t *testing.T) {
	plugin, err := New(Config{Settings: &fakeSettings{}, Plugins: fakeLookup{}, Events: plugins.NewEventBus()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(plugin.AssetsDir()) })

	require.FileExists(t, filepath.Join(plugin.AssetsDir(), LogoFile))
	require.FileExists(t, filepath.Join(plugin.AssetsDir(), FaviconFile))
}
