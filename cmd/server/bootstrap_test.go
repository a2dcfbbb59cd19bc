package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wintent/plugin-config/internal/app"
	"github.com/wintent/plugin-config/internal/database"
	"github.com/wintent/plugin-config/internal/filemanager"
	"github.com/wintent/plugin-config/internal/models"
	"github.com/wintent/plugin-config/internal/plugins/wintent"
)

func bootstrapConfig(t *testing.T) *app.Config {
	t.Helper()
	dir := t.TempDir()
	assets, err := wintent.MaterializeAssets(filepath.Join(dir, "assets"))
	require.NoError(t, err)

	return &app.Config{
		Server: app.ServerConfig{
			Port:      8000,
			RateLimit: app.RateLimitConfig{Requests: 100, Window: time.Minute},
		},
		Database: app.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "wintent.sqlite")},
		Storage: app.StorageConfig{
			Driver: filemanager.DriverLocal,
			Local:  app.LocalStorageConfig{Root: filepath.Join(dir, "uploads"), BaseURL: filemanager.DefaultLocalBaseURL},
		},
		Branding: app.BrandingConfig{AssetsDir: assets},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
}

func startStack(t *testing.T, cfg *app.Config) *runtimeStack {
	t.Helper()
	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	return stack
}

func TestBootstrapAppliesBranding(t *testing.T) {
	cfg := bootstrapConfig(t)
	stack := startStack(t, cfg)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	ctx := context.Background()
	settings, err := stack.Settings.FindOne(ctx, database.FindOptions{Appends: []string{"logo", "favicon"}})
	require.NoError(t, err)
	require.NotNil(t, settings)
	require.Equal(t, wintent.BrandTitle, settings.Title)
	require.Equal(t, wintent.BrandAppLang, settings.AppLang)
	require.Equal(t, []string{"zh-CN", "en-US"}, []string(settings.EnabledLanguages))
	require.NotNil(t, settings.Logo)
	require.Equal(t, wintent.LogoTitle, settings.Logo.Title)
	require.NotNil(t, settings.Favicon)
	require.Equal(t, wintent.FaviconTitle, settings.Favicon.Title)

	for _, name := range []string{"system-settings", "file-manager", wintent.Name} {
		state, err := stack.Plugins.State(ctx, name)
		require.NoError(t, err)
		require.True(t, state.Installed, name)
	}
	state, err := stack.Plugins.State(ctx, wintent.Name)
	require.NoError(t, err)
	require.True(t, state.Enabled)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `href="`+settings.Favicon.URL+`"`)
	require.Contains(t, w.Body.String(), `id="wintent-custom-styles"`)

	icon := httptest.NewRecorder()
	stack.Router.ServeHTTP(icon, httptest.NewRequest(http.MethodGet, settings.Favicon.URL, nil))
	require.Equal(t, http.StatusOK, icon.Code)
}

func TestBootstrapRestartKeepsBranding(t *testing.T) {
	cfg := bootstrapConfig(t)
	first := startStack(t, cfg)
	first.Shutdown(context.Background(), zap.NewNop())

	second := startStack(t, cfg)
	t.Cleanup(func() { second.Shutdown(context.Background(), zap.NewNop()) })

	var attachments int64
	require.NoError(t, second.DB.Model(&models.Attachment{}).Count(&attachments).Error)
	require.EqualValues(t, 2, attachments)

	var rows int64
	require.NoError(t, second.DB.Model(&models.SystemSettings{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}

func TestInitialiseStorageRejectsUnknownDriver(t *testing.T) {
	cfg := bootstrapConfig(t)
	cfg.Storage.Driver = "ftp"

	_, err := initialiseStorage(context.Background(), cfg)
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.ErrorContains(t, err, "does not exist")
}

func TestBootstrapSharesRateCountersInDatabase(t *testing.T) {
	cfg := bootstrapConfig(t)
	cfg.Server.RateLimit.Store = "database"
	stack := startStack(t, cfg)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })
	require.NotNil(t, stack.Counters)

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/systemSettings:get", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var counters int64
	require.NoError(t, stack.DB.Model(&models.CacheEntry{}).Count(&counters).Error)
	require.EqualValues(t, 1, counters)
}

func TestBuildPageHandlerUsesRemoteAPI(t *testing.T) {
	var authorization string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		require.Equal(t, "/api/attachments:list", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"a1","title":"wintent-favicon","url":"https://cdn.example.com/fav.ico"}]}`))
	}))
	t.Cleanup(api.Close)

	cfg := bootstrapConfig(t)
	cfg.Branding.APIBaseURL = api.URL
	cfg.Branding.APIToken = "host-token"

	pages, err := buildPageHandler(cfg, nil)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.NoRoute(pages.Handle)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `href="https://cdn.example.com/fav.ico"`)
	require.Equal(t, "Bearer host-token", authorization)
}

func TestBrandingClientDefaultsToFileManager(t *testing.T) {
	cfg := bootstrapConfig(t)
	_, err := brandingClient(cfg, nil)
	require.ErrorContains(t, err, "file manager is required")
}
