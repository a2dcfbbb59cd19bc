// Package filemanager exposes the attachment service to other plugins.
package filemanager

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wintent/plugin-config/internal/filemanager"
	"github.com/wintent/plugin-config/internal/models"
	"github.com/wintent/plugin-config/internal/plugins"
	"github.com/wintent/plugin-config/pkg/logger"
)

// Name is the registration name plugins resolve the file manager by.
const Name = "file-manager"

// Plugin delegates file record operations to a filemanager.Service.
type Plugin struct {
	plugins.BasePlugin
	service *filemanager.Service
	log     *zap.Logger
}

// New wraps service as a plugin.
func New(service *filemanager.Service) (*Plugin, error) {
	if service == nil {
		return nil, errors.New("file manager plugin: service is required")
	}
	return &Plugin{service: service, log: logger.WithPlugin(Name)}, nil
}

// Name implements plugins.Plugin.
func (p *Plugin) Name() string { return Name }

// Load logs the active storage driver.
func (p *Plugin) Load(context.Context) error {
	p.log.Info("file manager ready", zap.String("storage", p.service.Storage().Type()))
	return nil
}

// Service returns the underlying attachment service.
func (p *Plugin) Service() *filemanager.Service {
	return p.service
}

// CreateFileRecord uploads a local file as an attachment.
func (p *Plugin) CreateFileRecord(ctx context.Context, input filemanager.CreateFileRecordInput) (*models.Attachment, error) {
	return p.service.CreateFileRecord(ctx, input)
}

// List queries attachments.
func (p *Plugin) List(ctx context.Context, query filemanager.ListQuery) (filemanager.ListResult, error) {
	return p.service.List(ctx, query)
}
