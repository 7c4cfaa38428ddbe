package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/app"
	"github.com/vinodismyname/sidpol/internal/httpapi"
	"github.com/vinodismyname/sidpol/internal/registry"
	"github.com/vinodismyname/sidpol/internal/runtime"
	"github.com/vinodismyname/sidpol/internal/telemetry"
	"github.com/vinodismyname/sidpol/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		configPath      string
		useStdio        bool
		httpAddr        string
		model           string
		shutdownTimeout time.Duration
	)

	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.BoolVar(&useStdio, "stdio", false, "Serve MCP over stdio")
	flag.StringVar(&httpAddr, "http", "", "Serve the dashboard HTTP API on this address (overrides server.http_addr)")
	flag.StringVar(&model, "model", registry.DefaultModel, "Client model used to size tool payloads")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if useStdio {
		cfg.Server.Stdio = true
	}
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if !cfg.Server.Stdio && cfg.Server.HTTPAddr == "" {
		fmt.Fprintln(os.Stderr, "no transport selected; use --stdio or --http")
		os.Exit(2)
	}

	logger := app.NewLogger(cfg.Log, os.Stderr).With().Str("service", "sidpol-server").Logger()
	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, true)
	if err != nil {
		logger.Error().Err(err).Msg("bootstrap failed")
		fmt.Fprintln(os.Stderr, "invalid configuration; check data.dir, SIDPOL_ALLOWED_DIRS and store settings")
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()
	logger.Info().Strs("allowed_dirs", a.Security.AllowedDirectories()).Msg("security allow-list configured")

	toolRegistry := registry.New()
	toolRegistry.WithModel(model)
	toolFilter := registry.NewToolFilter(registry.FeaturesOf(a.Service))
	// The portal page lookup and the download have their own deadlines; the
	// tool call must outlive both.
	mw := runtime.NewMiddleware(a.Controller, a.Observer).
		WithToolTimeout(registry.ToolRefreshData, cfg.Acquire.Timeout+config.DefaultPageFetchTimeout)

	srv := server.NewMCPServer(
		"SIDPOL Denuncias Policiales",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(telemetry.ServerHooks(logger)),
		server.WithToolHandlerMiddleware(mw.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return toolFilter.FilterTools(ctx, tools) }),
	)
	registry.RegisterTools(srv, toolRegistry, registry.Deps{
		Service:  a.Service,
		Limits:   a.Limits,
		Security: a.Security,
		Logger:   logger,
	})

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Int("max_concurrent_requests", a.Limits.MaxConcurrentRequests).
		Int("max_cached_datasets", a.Limits.MaxCachedDatasets).
		Int("payload_budget", toolRegistry.PayloadBudget(a.Limits.MaxPayloadBytes)).
		Bool("store", a.Store != nil).
		Bool("sql", a.Service.SQLEnabled()).
		Bool("stdio", cfg.Server.Stdio).
		Str("http_addr", cfg.Server.HTTPAddr).
		Msg("server bootstrap configured")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.HTTPAddr != "" {
		httpSrv := &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           httpapi.NewRouter(httpapi.NewHandler(a.Service, a.Limits.MaxQueryRows, logger)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", httpSrv.Addr).Msg("http listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Server.Stdio {
		g.Go(func() error {
			// ServeStdio returns when stdin closes or on SIGINT/SIGTERM.
			defer stop()
			return server.ServeStdio(srv)
		})
	}

	if err := g.Wait(); err != nil {
		// stderr keeps stdio clients from misreading transport errors.
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
