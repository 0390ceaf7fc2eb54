package pubcms

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/eringen/pubcms/blob"
	"github.com/eringen/pubcms/blob/s3"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "CMS_"

// Config holds all configuration for a pubcms server.
type Config struct {
	// Site identity, used in feeds.
	Name        string `env:"SITE_NAME" envDefault:"CMS API"`
	URL         string `env:"SITE_URL" envDefault:"http://localhost:8000"`
	Description string `env:"SITE_DESCRIPTION" envDefault:"Content Management System"`

	Addr         string `env:"ADDR" envDefault:":8000"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/cms.db"` // SQLite path
	DatabaseURL  string `env:"DATABASE_URL"`                           // postgres:// selects PostgreSQL

	BlobBackend   string   `env:"BLOB_BACKEND" envDefault:"fs"` // fs, memory or s3
	UploadsDir    string   `env:"UPLOADS_DIR" envDefault:"uploads"`
	UploadsPrefix string   `env:"UPLOADS_PREFIX" envDefault:"/uploads"`
	S3            S3Config `envPrefix:"S3_"`
	AllowOrigins  []string `env:"ALLOW_ORIGINS" envDefault:"*" envSeparator:","`

	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	MaxListLimit   int           `env:"MAX_LIST_LIMIT"` // 0 = no cap on ?limit
	ListCacheTTL   time.Duration `env:"LIST_CACHE_TTL" envDefault:"1m"`
	WriteRate      float64       `env:"WRITE_RATE" envDefault:"5"` // writes/s per IP, 0 disables
	WriteBurst     int           `env:"WRITE_BURST" envDefault:"20"`

	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"text"` // text or json
}

// S3Config configures the s3 blob backend.
type S3Config struct {
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `env:"USE_PATH_STYLE"`
	KeyPrefix       string `env:"KEY_PREFIX"`
	CreateBucket    bool   `env:"CREATE_BUCKET"`
}

func (c S3Config) backendConfig(urlPrefix string) s3.Config {
	return s3.Config{
		Bucket:                 c.Bucket,
		Region:                 c.Region,
		Endpoint:               c.Endpoint,
		AccessKeyID:            c.AccessKeyID,
		SecretAccessKey:        c.SecretAccessKey,
		UsePathStyle:           c.UsePathStyle,
		KeyPrefix:              c.KeyPrefix,
		URLPrefix:              urlPrefix,
		CreateBucketIfNotExist: c.CreateBucket,
	}
}

// LoadConfig reads the configuration from CMS_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults fills zero values for programmatically built configs.
// WriteRate, MaxListLimit and MetricsEnabled keep their zero meaning.
func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "CMS API"
	}
	if c.URL == "" {
		c.URL = "http://localhost:8000"
	}
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/cms.db"
	}
	if c.BlobBackend == "" {
		c.BlobBackend = "fs"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "uploads"
	}
	if c.UploadsPrefix == "" {
		c.UploadsPrefix = blob.DefaultPrefix
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if c.ListCacheTTL == 0 {
		c.ListCacheTTL = time.Minute
	}
	if c.WriteBurst == 0 {
		c.WriteBurst = 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.BlobBackend {
	case "fs", "memory":
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("CMS_S3_BUCKET is required when CMS_BLOB_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unsupported CMS_BLOB_BACKEND %q (use fs, memory or s3)", c.BlobBackend)
	}
	if c.MaxListLimit < 0 {
		return fmt.Errorf("CMS_MAX_LIST_LIMIT must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// UsePostgres reports whether DatabaseURL selects the PostgreSQL repository.
func (c Config) UsePostgres() bool {
	return hasAnyPrefix(c.DatabaseURL, "postgres://", "postgresql://")
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid CMS_LOG_LEVEL %q: %w", s, err)
	}
	return l, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithRepository replaces the default SQLite repository. The App closes it
// on Close.
func WithRepository(r Repository) Option {
	return func(a *App) {
		a.Repo = r
	}
}

// WithBlobStore replaces the blob store selected by Config.BlobBackend.
func WithBlobStore(b blob.Store) Option {
	return func(a *App) {
		a.Blobs = b
	}
}

// WithLogger sets the logger used by the App and its Service.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithClock overrides the time source used for item timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.clock = now
	}
}
