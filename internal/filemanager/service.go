package filemanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wintent/plugin-config/internal/models"
	"github.com/wintent/plugin-config/pkg/logger"
	"github.com/wintent/plugin-config/pkg/metrics"
	"github.com/wintent/plugin-config/pkg/validator"
)

// Paging limits for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

var (
	// ErrUnsupportedCollection is returned when a record targets a collection other than attachments.
	ErrUnsupportedCollection = errors.New("file manager: unsupported collection")
	// ErrServiceNotInitialised guards calls on a nil service.
	ErrServiceNotInitialised = errors.New("file manager: service not initialised")
)

// AttachmentValues are caller-provided attachment fields.
type AttachmentValues struct {
	Title    string `json:"title"`
	Extname  string `json:"extname" validate:"omitempty,extname"`
	Mimetype string `json:"mimetype" validate:"omitempty,max=128"`
}

// CreateFileRecordInput describes a local file to upload as an attachment.
type CreateFileRecordInput struct {
	FilePath       string           `json:"filePath" validate:"required"`
	CollectionName string           `json:"collectionName" validate:"required"`
	Values         AttachmentValues `json:"values"`
}

// ListQuery filters and pages attachments.
type ListQuery struct {
	Title    string
	Page     int
	PageSize int
}

// ListResult is one page of attachments plus the total match count.
type ListResult struct {
	Items    []models.Attachment
	Total    int64
	Page     int
	PageSize int
}

// Service creates and lists attachment records.
type Service struct {
	db      *gorm.DB
	storage Storage
	log     *zap.Logger
	now     func() time.Time
}

// Option customises the service.
type Option func(*Service)

// WithLogger overrides the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService constructs a file manager service over db and storage.
func NewService(db *gorm.DB, storage Storage, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("file manager: db is required")
	}
	if storage == nil {
		return nil, errors.New("file manager: storage is required")
	}
	svc := &Service{
		db:      db,
		storage: storage,
		log:     logger.WithModule("filemanager"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Storage returns the configured backend.
func (s *Service) Storage() Storage {
	return s.storage
}

// CreateFileRecord stores the file at input.FilePath and inserts its attachment row.
func (s *Service) CreateFileRecord(ctx context.Context, input CreateFileRecordInput) (*models.Attachment, error) {
	if s == nil {
		return nil, ErrServiceNotInitialised
	}
	input.FilePath = strings.TrimSpace(input.FilePath)
	input.CollectionName = strings.TrimSpace(input.CollectionName)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("file manager: invalid input: %w", err)
	}
	if input.CollectionName != models.AttachmentsCollection {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCollection, input.CollectionName)
	}

	attachment, err := s.createFileRecord(ctx, input)
	result := "success"
	if err != nil {
		result = "failure"
		s.log.Warn("create file record failed", zap.String("path", input.FilePath), zap.Error(err))
	}
	metrics.FileUploads.WithLabelValues(s.storage.Type(), result).Inc()
	return attachment, err
}

func (s *Service) createFileRecord(ctx context.Context, input CreateFileRecordInput) (*models.Attachment, error) {
	fh, err := os.Open(input.FilePath)
	if err != nil {
		return nil, fmt.Errorf("file manager: open %s: %w", input.FilePath, err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("file manager: stat %s: %w", input.FilePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("file manager: %s is a directory", input.FilePath)
	}

	mime := strings.TrimSpace(input.Values.Mimetype)
	if mime == "" {
		detected, err := mimetype.DetectReader(fh)
		if err != nil {
			return nil, fmt.Errorf("file manager: detect mimetype: %w", err)
		}
		mime = detected.String()
		if _, err := fh.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("file manager: rewind %s: %w", input.FilePath, err)
		}
	}

	filename := filepath.Base(input.FilePath)
	extname := strings.TrimSpace(input.Values.Extname)
	if extname == "" {
		extname = strings.ToLower(filepath.Ext(filename))
	}
	title := strings.TrimSpace(input.Values.Title)
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	id := uuid.NewString()
	key := path.Join(s.now().UTC().Format("2006/01"), id+extname)
	stored, err := s.storage.Put(ctx, key, fh, info.Size(), mime)
	if err != nil {
		return nil, fmt.Errorf("file manager: store %s: %w", filename, err)
	}

	attachment := &models.Attachment{
		BaseModel:   models.BaseModel{ID: id},
		Title:       title,
		Filename:    filename,
		Extname:     extname,
		Size:        stored.Size,
		Mimetype:    mime,
		Path:        stored.Key,
		URL:         stored.URL,
		StorageType: s.storage.Type(),
	}
	if err := s.db.WithContext(ctx).Create(attachment).Error; err != nil {
		if delErr := s.storage.Delete(ctx, stored.Key); delErr != nil {
			s.log.Warn("orphaned stored object", zap.String("key", stored.Key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("file manager: insert attachment: %w", err)
	}

	s.log.Info("attachment created",
		zap.String("id", attachment.ID),
		zap.String("title", attachment.Title),
		zap.String("storage", attachment.StorageType),
	)
	return attachment, nil
}

// List returns attachments matching query, newest first.
func (s *Service) List(ctx context.Context, query ListQuery) (ListResult, error) {
	if s == nil {
		return ListResult{}, ErrServiceNotInitialised
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}

	title := strings.TrimSpace(query.Title)
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Attachment{})
		if title != "" {
			q = q.Where("title = ?", title)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return ListResult{}, fmt.Errorf("file manager: count attachments: %w", err)
	}

	var items []models.Attachment
	if err := scoped().Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error; err != nil {
		return ListResult{}, fmt.Errorf("file manager: list attachments: %w", err)
	}

	return ListResult{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Get loads one attachment by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Attachment, error) {
	if s == nil {
		return nil, ErrServiceNotInitialised
	}
	var attachment models.Attachment
	if err := s.db.WithContext(ctx).Take(&attachment, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		return nil, fmt.Errorf("file manager: get attachment %s: %w", id, err)
	}
	return &attachment, nil
}
