package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wintent/plugin-config/internal/database"
	"github.com/wintent/plugin-config/internal/models"
	appErrors "github.com/wintent/plugin-config/pkg/errors"
	"github.com/wintent/plugin-config/pkg/response"
)

// SettingsReader loads the settings row.
type SettingsReader interface {
	FindOne(ctx context.Context, opts database.FindOptions) (*models.SystemSettings, error)
}

// SystemSettingsHandler exposes the singleton settings row.
type SystemSettingsHandler struct {
	settings SettingsReader
}

// NewSystemSettingsHandler constructs the handler.
func NewSystemSettingsHandler(settings SettingsReader) (*SystemSettingsHandler, error) {
	if settings == nil {
		return nil, errors.New("system settings handler: reader is required")
	}
	return &SystemSettingsHandler{settings: settings}, nil
}

// Get handles GET /api/systemSettings:get, resolving logo and favicon.
func (h *SystemSettingsHandler) Get(c *gin.Context) {
	if !requireAction(c, "get") {
		return
	}
	settings, err := h.settings.FindOne(c.Request.Context(), database.FindOptions{Appends: []string{"logo", "favicon"}})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to load system settings"))
		return
	}
	if settings == nil {
		response.Error(c, appErrors.ErrSettingsMissing)
		return
	}
	response.Success(c, http.StatusOK, settings)
}
