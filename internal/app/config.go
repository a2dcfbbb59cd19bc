package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/wintent/plugin-config/internal/database"
	"github.com/wintent/plugin-config/internal/filemanager"
	"github.com/wintent/plugin-config/pkg/validator"
)

// EnvPrefix prefixes environment overrides, e.g. WINTENT_SERVER_PORT.
const EnvPrefix = "WINTENT"

// Config represents the runtime configuration for the Wintent server.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Branding   BrandingConfig   `mapstructure:"branding"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel        string          `mapstructure:"log_level"`
	LogDevelopment  bool            `mapstructure:"log_development"`
	HSTS            bool            `mapstructure:"hsts"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds API requests per client and route.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	// Store is "memory" for process-local counters or "database" to share them.
	Store string `mapstructure:"store" validate:"omitempty,oneof=memory database"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver" validate:"oneof=sqlite postgres postgresql mysql"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// StorageConfig selects the attachment backend.
type StorageConfig struct {
	Driver string             `mapstructure:"driver" validate:"oneof=local s3"`
	Local  LocalStorageConfig `mapstructure:"local"`
	S3     S3StorageConfig    `mapstructure:"s3"`
}

// LocalStorageConfig configures filesystem storage.
type LocalStorageConfig struct {
	Root    string `mapstructure:"root"`
	BaseURL string `mapstructure:"base_url"`
}

// S3StorageConfig configures an S3 compatible bucket.
type S3StorageConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Region         string        `mapstructure:"region"`
	Bucket         string        `mapstructure:"bucket"`
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	ForcePathStyle bool          `mapstructure:"force_path_style"`
	PublicURL      string        `mapstructure:"public_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// BrandingConfig controls the Wintent brand assets and page injection.
type BrandingConfig struct {
	// AssetsDir holds wintent-logo.png and icon_square.ico; empty uses the packaged files.
	AssetsDir string `mapstructure:"assets_dir"`
	// CSSFile replaces the built-in override block.
	CSSFile      string `mapstructure:"css_file"`
	StyleID      string `mapstructure:"style_id"`
	MarkerAttr   string `mapstructure:"marker_attr"`
	FaviconTitle string `mapstructure:"favicon_title"`
	// ReconcileSchedule is a cron spec re-checking the brand; empty disables it.
	ReconcileSchedule string `mapstructure:"reconcile_schedule"`
	// StaticDir serves the page from disk instead of the embedded build.
	StaticDir string `mapstructure:"static_dir"`
	// APIBaseURL points the favicon lookup at a remote application API instead of the
	// in-process file manager.
	APIBaseURL string `mapstructure:"api_base_url" validate:"omitempty,url"`
	APIToken   string `mapstructure:"api_token"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Storage.Driver == filemanager.DriverS3 && strings.TrimSpace(c.Storage.S3.Bucket) == "" {
		return errors.New("config: storage.s3.bucket is required for the s3 driver")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_development", false)
	v.SetDefault("server.hsts", false)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit.requests", 300)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.rate_limit.store", "memory")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/wintent.sqlite")

	v.SetDefault("storage.driver", filemanager.DriverLocal)
	v.SetDefault("storage.local.root", "./storage/uploads")
	v.SetDefault("storage.local.base_url", filemanager.DefaultLocalBaseURL)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.force_path_style", true)
	v.SetDefault("storage.s3.timeout", "30s")

	v.SetDefault("branding.assets_dir", "")
	v.SetDefault("branding.css_file", "")
	v.SetDefault("branding.favicon_title", "wintent-favicon")
	v.SetDefault("branding.reconcile_schedule", "")
	v.SetDefault("branding.static_dir", "")
	v.SetDefault("branding.api_base_url", "")
	v.SetDefault("branding.api_token", "")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// DatabaseSettings converts the configuration into database.Config.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver: c.Driver,
		Path:   c.Path,
		DSN:    c.DSN,
	}
	var auth DBAuthConfig
	switch strings.ToLower(c.Driver) {
	case "postgres", "postgresql":
		auth = c.Postgres
	case "mysql":
		auth = c.MySQL
	default:
		return cfg
	}
	cfg.Host = auth.Host
	cfg.Port = auth.Port
	cfg.Name = auth.Database
	cfg.User = auth.Username
	cfg.Password = auth.Password
	cfg.Options = auth.Options
	return cfg
}

// S3Settings converts the s3 section into filemanager.S3Config.
func (c StorageConfig) S3Settings() filemanager.S3Config {
	return filemanager.S3Config{
		Endpoint:       c.S3.Endpoint,
		Region:         c.S3.Region,
		Bucket:         c.S3.Bucket,
		AccessKey:      c.S3.AccessKey,
		SecretKey:      c.S3.SecretKey,
		ForcePathStyle: c.S3.ForcePathStyle,
		PublicURL:      c.S3.PublicURL,
		Timeout:        c.S3.Timeout,
	}
}
