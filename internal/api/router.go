package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/wintent/plugin-config/internal/app"
	"github.com/wintent/plugin-config/internal/branding"
	"github.com/wintent/plugin-config/internal/handlers"
	"github.com/wintent/plugin-config/internal/middleware"
)

// Dependencies are the collaborators mounted by NewRouter.
type Dependencies struct {
	DB       *gorm.DB
	Config   *app.Config
	Files    handlers.AttachmentLister
	Settings handlers.SettingsReader
	// Pages serves the branded application page; nil falls back to JSON 404s.
	Pages *branding.PageHandler
	// UploadsDir is the local storage root served under the local base url.
	UploadsDir string
	RateStore  middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.Files == nil {
		return nil, errors.New("attachment lister must be provided")
	}
	if deps.Settings == nil {
		return nil, errors.New("settings reader must be provided")
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(securityOptions(cfg)))

	registerHealthRoutes(r, cfg, deps.DB)

	rateStore := deps.RateStore
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}
	api := r.Group("/api")
	api.Use(middleware.RateLimit(rateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))

	attachmentHandler, err := handlers.NewAttachmentHandler(deps.Files)
	if err != nil {
		return nil, err
	}
	api.GET("/attachments:list", attachmentHandler.List)

	settingsHandler, err := handlers.NewSystemSettingsHandler(deps.Settings)
	if err != nil {
		return nil, err
	}
	api.GET("/systemSettings:get", settingsHandler.Get)

	registerStorageRoutes(r, cfg, deps.UploadsDir)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	if deps.Pages != nil {
		r.NoRoute(deps.Pages.Handle)
	} else {
		r.NoRoute(middleware.NotFoundHandler)
	}

	return r, nil
}

func securityOptions(cfg *app.Config) middleware.SecurityOptions {
	opts := middleware.SecurityOptions{HSTS: cfg.Server.HSTS}
	if cfg.Storage.Driver == "s3" {
		if public := cfg.Storage.S3.PublicURL; public != "" {
			opts.ImageSources = append(opts.ImageSources, public)
		} else if endpoint := cfg.Storage.S3.Endpoint; endpoint != "" {
			opts.ImageSources = append(opts.ImageSources, endpoint)
		}
	}
	return opts
}
