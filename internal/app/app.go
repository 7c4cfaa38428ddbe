// Package app wires configuration into the running components shared by the
// MCP server and the command line tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/acquire"
	"github.com/vinodismyname/sidpol/internal/dashboard"
	"github.com/vinodismyname/sidpol/internal/datasets"
	"github.com/vinodismyname/sidpol/internal/runtime"
	"github.com/vinodismyname/sidpol/internal/security"
	"github.com/vinodismyname/sidpol/internal/store"
	"github.com/vinodismyname/sidpol/internal/telemetry"
)

// App holds the long-lived components.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Security   *security.Manager
	Limits     runtime.Limits
	Controller *runtime.Controller
	Datasets   *datasets.Manager
	Store      *store.Store
	Fetcher    *acquire.Fetcher
	Observer   telemetry.Observer
	Service    *dashboard.Service

	meters *sdkmetric.MeterProvider
}

// NewLogger builds the process logger from the log section. Output goes to
// w, which must not be stdout when serving MCP over stdio.
func NewLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// New builds every component from cfg. Close releases them. withStore set to
// false skips the relational store even when one is configured.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, withStore bool) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(ctx)
		}
	}()

	dirs := append([]string{cfg.Data.Dir}, cfg.Data.AllowedDirs...)
	sec, err := security.NewManagerFromEnv(dirs...)
	if err != nil {
		return nil, err
	}
	if err := sec.ValidateConfig(); err != nil {
		return nil, err
	}
	a.Security = sec

	a.Limits = runtime.FromConfig(cfg.Limits)
	a.Controller = runtime.NewController(a.Limits)
	a.Datasets = datasets.NewManager(cfg.Data.CacheTTL, cfg.Data.CleanupEvery, a.Controller, sec, nil)
	a.Datasets.Start()

	if withStore && cfg.Store.Driver != "" && cfg.Store.DSN != "" {
		if cfg.Store.Driver == store.DriverSQLite && cfg.Store.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Store.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("app: store dir: %w", err)
			}
		}
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.Store = st
	}

	a.Fetcher = acquire.New(cfg.Acquire, cfg.Data.Dir, cfg.Data.Pattern, sec, logger)

	a.meters = sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(a.meters)
	metrics, err := telemetry.NewMetricsObserver(nil)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	a.Observer = telemetry.Multi(telemetry.NewLogObserver(logger), metrics)

	a.Service = dashboard.New(dashboard.Options{
		Datasets:  a.Datasets,
		Store:     a.Store,
		Fetcher:   a.Fetcher,
		Observer:  a.Observer,
		Logger:    logger,
		Dir:       cfg.Data.Dir,
		Pattern:   cfg.Data.Pattern,
		EnableSQL: cfg.Store.EnableSQL,
	})
	ok = true
	return a, nil
}

// Close stops background work and closes the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Datasets != nil {
		errs = append(errs, a.Datasets.Close(ctx))
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.meters != nil {
		errs = append(errs, a.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
