package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wintent/plugin-config/internal/app"
	"github.com/wintent/plugin-config/internal/filemanager"
)

// registerStorageRoutes serves local uploads when the base url is a path on this server.
func registerStorageRoutes(r *gin.Engine, cfg *app.Config, dir string) {
	if cfg.Storage.Driver != filemanager.DriverLocal || strings.TrimSpace(dir) == "" {
		return
	}
	base := cfg.Storage.Local.BaseURL
	if base == "" {
		base = filemanager.DefaultLocalBaseURL
	}
	if !strings.HasPrefix(base, "/") {
		return
	}
	r.Static(strings.TrimRight(base, "/"), dir)
}
