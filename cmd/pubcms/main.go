package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eringen/pubcms"
	"github.com/eringen/pubcms/postgres"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := run(serve); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "migrate":
		if err := run(migrate); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("pubcms %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pubcms - A content management API built with Go and Echo

Usage:
  pubcms [command]

Commands:
  serve         Start the HTTP server (default)
  migrate       Apply database migrations and exit
  version       Print the pubcms version
  help          Show this help message

Configuration is read from CMS_* environment variables and an optional
.env file in the working directory.`)
}

// env is what every command needs: the loaded configuration, the logger
// and the repository it selects. Repo is nil for the default SQLite store.
type env struct {
	cfg    pubcms.Config
	logger *slog.Logger
	repo   pubcms.Repository
}

func (e env) options() []pubcms.Option {
	opts := []pubcms.Option{pubcms.WithLogger(e.logger)}
	if e.repo != nil {
		opts = append(opts, pubcms.WithRepository(e.repo))
	}
	return opts
}

type command func(ctx context.Context, e env) error

// run loads the configuration, opens the repository it selects and hands
// both to fn.
func run(fn command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := pubcms.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := pubcms.NewLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := env{cfg: cfg, logger: logger}
	if cfg.UsePostgres() {
		repo, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		e.repo = repo
	}
	return fn(ctx, e)
}

func serve(ctx context.Context, e env) error {
	app := pubcms.New(e.cfg, e.options()...)
	defer app.Close()
	if err := app.Setup(ctx); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

// migrate opens the configured repository, which applies pending
// migrations, and closes it again.
func migrate(_ context.Context, e env) error {
	repo := e.repo
	if repo == nil {
		store, err := pubcms.NewStore(e.cfg.DatabasePath)
		if err != nil {
			return err
		}
		repo = store
	}
	e.logger.Info("migrations applied", "postgres", e.cfg.UsePostgres())
	return repo.Close()
}
