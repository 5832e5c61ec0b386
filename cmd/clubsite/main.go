package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eringen/clubsite"
	"github.com/eringen/clubsite/logging"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "version":
		fmt.Printf("clubsite %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`clubsite - marketing site backend with social previews and bot notifications

Usage:
  clubsite <command> [arguments]

Commands:
  serve [-config file]     Start the HTTP server
  migrate [-config file]   Create or update the database schema
  version                  Print the clubsite version
  help                     Show this help message

Configuration is read from the environment (and a .env file if present).`)
}

// setup loads .env, the configuration, and the logger shared by all commands.
func setup(name string, args []string) (clubsite.SiteConfig, *zap.Logger, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config file (yaml, json, toml)")
	if err := fs.Parse(args); err != nil {
		return clubsite.SiteConfig{}, nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return clubsite.SiteConfig{}, nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := clubsite.LoadConfig(*configPath)
	if err != nil {
		return clubsite.SiteConfig{}, nil, err
	}
	log, err := logging.New(cfg.LogDevelopment)
	if err != nil {
		return clubsite.SiteConfig{}, nil, err
	}
	return cfg, log, nil
}

func runServe(args []string) error {
	cfg, log, err := setup("serve", args)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := clubsite.OpenBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var opts []clubsite.Option
	if cfg.RedisURL != "" {
		pc, err := clubsite.OpenPreviewCache(cfg.RedisURL)
		if err != nil {
			// Previews still render without the shared cache.
			log.Warn("preview cache disabled", zap.Error(err))
		} else {
			opts = append(opts, clubsite.WithPreviewCache(pc))
		}
	}

	app, err := clubsite.New(cfg, store, log, opts...)
	if err != nil {
		store.Close()
		return err
	}
	defer app.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

func runMigrate(args []string) error {
	cfg, log, err := setup("migrate", args)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	store, err := clubsite.OpenBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if pg, ok := store.(*clubsite.PostgresStore); ok {
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("postgres schema up to date")
		return nil
	}
	log.Info("sqlite schema up to date", zap.String("path", cfg.DatabasePath))
	return nil
}
