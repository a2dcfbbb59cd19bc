package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wintent/plugin-config/internal/api"
	"github.com/wintent/plugin-config/internal/app"
	"github.com/wintent/plugin-config/internal/app/maintenance"
	"github.com/wintent/plugin-config/internal/branding"
	"github.com/wintent/plugin-config/internal/cache"
	"github.com/wintent/plugin-config/internal/database"
	"github.com/wintent/plugin-config/internal/filemanager"
	"github.com/wintent/plugin-config/internal/middleware"
	"github.com/wintent/plugin-config/internal/plugins"
	filemanagerplugin "github.com/wintent/plugin-config/internal/plugins/filemanager"
	"github.com/wintent/plugin-config/internal/plugins/systemsettings"
	"github.com/wintent/plugin-config/internal/plugins/wintent"
	"github.com/wintent/plugin-config/pkg/logger"
	"github.com/wintent/plugin-config/web"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Counters   *cache.DatabaseStore
	Storage    filemanager.Storage
	Files      *filemanager.Service
	Settings   *database.SystemSettingsRepository
	Plugins    *plugins.Manager
	Wintent    *wintent.Plugin
	Reconciler *maintenance.Reconciler
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, storage, plugins and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Storage, err = initialiseStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("attachment storage ready", zap.String("driver", stack.Storage.Type()))

	stack.Files, err = filemanager.NewService(stack.DB, stack.Storage)
	if err != nil {
		return nil, fmt.Errorf("initialise file manager: %w", err)
	}

	stack.Settings, err = database.NewSystemSettingsRepository(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise settings repository: %w", err)
	}

	if err := stack.startPlugins(ctx, cfg); err != nil {
		return nil, err
	}

	stack.Reconciler = maintenance.NewReconciler(stack.Wintent, cfg.Branding.ReconcileSchedule)
	if err := stack.Reconciler.Start(); err != nil {
		return nil, fmt.Errorf("start branding reconciler: %w", err)
	}

	pages, err := buildPageHandler(cfg, stack.Files)
	if err != nil {
		return nil, err
	}

	deps := api.Dependencies{
		DB:        stack.DB,
		Config:    cfg,
		Files:     stack.Files,
		Settings:  stack.Settings,
		Pages:     pages,
		RateStore: stack.rateStore(ctx, cfg, log),
	}
	if local, ok := stack.Storage.(*filemanager.LocalStorage); ok {
		deps.UploadsDir = local.Root()
	}

	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// startPlugins registers the plugins and drives them through the host lifecycle:
// load, install system-settings, then enable file-manager and wintent-config.
func (s *runtimeStack) startPlugins(ctx context.Context, cfg *app.Config) error {
	var err error
	s.Plugins, err = plugins.NewManager(s.DB, nil)
	if err != nil {
		return fmt.Errorf("initialise plugin manager: %w", err)
	}

	settingsPlugin, err := systemsettings.New(s.DB, systemsettings.Defaults())
	if err != nil {
		return fmt.Errorf("initialise %s plugin: %w", systemsettings.Name, err)
	}
	filesPlugin, err := filemanagerplugin.New(s.Files)
	if err != nil {
		return fmt.Errorf("initialise %s plugin: %w", filemanagerplugin.Name, err)
	}
	s.Wintent, err = wintent.New(wintent.Config{
		Settings:  s.Settings,
		Plugins:   s.Plugins,
		Events:    s.Plugins.Bus(),
		AssetsDir: strings.TrimSpace(cfg.Branding.AssetsDir),
	})
	if err != nil {
		return fmt.Errorf("initialise %s plugin: %w", wintent.Name, err)
	}

	for _, plugin := range []plugins.Plugin{settingsPlugin, filesPlugin, s.Wintent} {
		if err := s.Plugins.Add(ctx, plugin); err != nil {
			return fmt.Errorf("add plugin: %w", err)
		}
	}
	if err := s.Plugins.Load(ctx); err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}
	if err := s.Plugins.Install(ctx, systemsettings.Name); err != nil {
		return fmt.Errorf("install %s: %w", systemsettings.Name, err)
	}
	for _, name := range []string{filemanagerplugin.Name, wintent.Name} {
		if err := s.Plugins.Enable(ctx, name); err != nil {
			return fmt.Errorf("enable %s: %w", name, err)
		}
	}
	return nil
}

func (s *runtimeStack) rateStore(ctx context.Context, cfg *app.Config, log *zap.Logger) middleware.RateStore {
	if strings.EqualFold(strings.TrimSpace(cfg.Server.RateLimit.Store), "database") {
		s.Counters = cache.NewDatabaseStore(s.DB)
		if removed, err := s.Counters.PurgeExpired(ctx); err != nil {
			log.Warn("purge expired rate counters", zap.Error(err))
		} else if removed > 0 {
			log.Info("purged expired rate counters", zap.Int64("count", removed))
		}
		return middleware.NewCacheRateStore(s.Counters)
	}
	return middleware.NewMemoryRateStore()
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Reconciler != nil {
		select {
		case <-s.Reconciler.Stop().Done():
		case <-ctx.Done():
			log.Warn("branding reconciler did not stop in time", zap.Error(ctx.Err()))
		}
	}

	if s.Counters != nil {
		if _, err := s.Counters.PurgeExpired(ctx); err != nil {
			log.Warn("purge expired rate counters", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func initialiseStorage(ctx context.Context, cfg *app.Config) (filemanager.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", filemanager.DriverLocal:
		storage, err := filemanager.NewLocalStorage(cfg.Storage.Local.Root, cfg.Storage.Local.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("initialise local storage: %w", err)
		}
		return storage, nil
	case filemanager.DriverS3:
		storage, err := filemanager.NewS3Storage(ctx, cfg.Storage.S3Settings())
		if err != nil {
			return nil, fmt.Errorf("initialise s3 storage: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// buildPageHandler brands the frontend served from branding.static_dir or the embedded build.
func buildPageHandler(cfg *app.Config, files *filemanager.Service) (*branding.PageHandler, error) {
	css, err := branding.LoadCSS(cfg.Branding.CSSFile)
	if err != nil {
		return nil, err
	}

	client, err := brandingClient(cfg, files)
	if err != nil {
		return nil, err
	}
	injector, err := branding.NewInjector(client, branding.Options{
		CSS:          css,
		StyleID:      cfg.Branding.StyleID,
		MarkerAttr:   cfg.Branding.MarkerAttr,
		FaviconTitle: cfg.Branding.FaviconTitle,
	})
	if err != nil {
		return nil, err
	}

	var fsys fs.FS
	if dir := strings.TrimSpace(cfg.Branding.StaticDir); dir != "" {
		fsys = os.DirFS(dir)
	} else {
		fsys, err = web.FS()
		if err != nil {
			return nil, fmt.Errorf("load embedded frontend: %w", err)
		}
	}

	pages, err := branding.NewPageHandler(fsys, injector, middleware.NotFoundHandler)
	if err != nil {
		return nil, fmt.Errorf("build page handler: %w", err)
	}
	return pages, nil
}

// brandingClient resolves favicon attachments over HTTP when branding.api_base_url is
// set, otherwise straight from the file manager.
func brandingClient(cfg *app.Config, files *filemanager.Service) (branding.APIClient, error) {
	if base := strings.TrimSpace(cfg.Branding.APIBaseURL); base != "" {
		client, err := branding.NewHTTPClient(base, branding.WithBearerToken(cfg.Branding.APIToken))
		if err != nil {
			return nil, fmt.Errorf("build branding api client: %w", err)
		}
		return client, nil
	}
	if files == nil {
		return nil, fmt.Errorf("build branding api client: file manager is required")
	}
	client, err := branding.NewLocalClient(files)
	if err != nil {
		return nil, fmt.Errorf("build branding api client: %w", err)
	}
	return client, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
