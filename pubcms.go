// Package pubcms is a small content-management backend built with Go and
// Echo. It stores titled entries (blogs, events, news) with optional images
// and serves them over a JSON HTTP API.
//
// The App wires a Repository (SQLite by default, PostgreSQL via the postgres
// package), a blob.Store for images, and the Service that keeps the two in
// step.
package pubcms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubcms/blob"
	fsblob "github.com/eringen/pubcms/blob/fs"
	"github.com/eringen/pubcms/blob/memory"
	"github.com/eringen/pubcms/blob/s3"
)

// App is the central pubcms application. It wires together the repository,
// blob store, service, cache, handlers and middleware.
type App struct {
	Config  Config
	Echo    *echo.Echo
	Repo    Repository
	Blobs   blob.Store
	Service *Service
	Cache   *ListCache
	Logger  *slog.Logger

	limiter *WriteLimiter
	metrics *metrics
	clock   func() time.Time
	ready   bool
}

// New creates a new App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config: cfg,
		Echo:   e,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	return a
}

// Setup opens the default repository and blob store where none were given,
// then installs middleware and routes. It is called by Start; tests call it
// directly and drive a.Echo with httptest.
func (a *App) Setup(ctx context.Context) error {
	if a.ready {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("pubcms: %w", err)
	}

	if a.Repo == nil {
		store, err := NewStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("pubcms: init store: %w", err)
		}
		a.Repo = store
	}
	if a.Blobs == nil {
		blobs, err := a.openBlobStore(ctx)
		if err != nil {
			return fmt.Errorf("pubcms: init blob store: %w", err)
		}
		a.Blobs = blobs
	}

	a.Service = NewService(a.Repo, a.Blobs, a.Logger)
	if a.clock != nil {
		a.Service.Clock = a.clock
	}
	a.Cache = NewListCache(a.Service, a.Config.ListCacheTTL)

	if a.Config.WriteRate > 0 {
		a.limiter = NewWriteLimiter(a.Config.WriteRate, a.Config.WriteBurst, 10*time.Minute)
	}
	if a.Config.MetricsEnabled {
		a.metrics = newMetrics()
	}

	if err := a.setupMiddleware(); err != nil {
		return fmt.Errorf("pubcms: %w", err)
	}
	a.setupRoutes()
	a.ready = true
	return nil
}

func (a *App) openBlobStore(ctx context.Context) (blob.Store, error) {
	switch a.Config.BlobBackend {
	case "memory":
		return memory.New(a.Config.UploadsPrefix), nil
	case "s3":
		return s3.New(ctx, a.Config.S3.backendConfig(a.Config.UploadsPrefix))
	default:
		return fsblob.New(fsblob.Config{BaseDir: a.Config.UploadsDir, URLPrefix: a.Config.UploadsPrefix})
	}
}

// Start sets the app up and serves HTTP until the server is shut down.
func (a *App) Start() error {
	if err := a.Setup(context.Background()); err != nil {
		return err
	}
	a.Logger.Info("server starting", "addr", a.Config.Addr, "blob_backend", a.Config.BlobBackend)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close releases the repository and background workers. Call it when the
// app is shutting down.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.Repo != nil {
		return a.Repo.Close()
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/", handleRoot)
	e.GET("/healthz", a.handleHealth)

	api := e.Group("/api")
	api.POST("/upload-image", a.handleUploadImage)
	api.POST("/content", a.handleCreate)
	api.GET("/content", a.handleList)
	api.GET("/content/:id", a.handleGet)
	api.PUT("/content/:id", a.handleUpdate)
	api.DELETE("/content/:id", a.handleDelete)
	for _, cat := range Categories {
		api.GET("/"+string(cat), a.handleCategoryList(cat))
	}

	e.GET("/feeds/:category", a.handleFeed)

	// Stored blobs are served by this app only when references are local
	// paths; an absolute prefix points at an external host such as a CDN.
	if strings.HasPrefix(a.Config.UploadsPrefix, "/") {
		e.GET(strings.TrimRight(a.Config.UploadsPrefix, "/")+"/:name", a.handleBlob)
	}

	if a.metrics != nil {
		e.GET("/metrics", a.metrics.handler())
	}
}
