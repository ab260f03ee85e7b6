// SPDX-License-Identifier: MIT

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

	"github.com/ytgate/ytgate/internal/api"
	"github.com/ytgate/ytgate/internal/auth"
	"github.com/ytgate/ytgate/internal/config"
	"github.com/ytgate/ytgate/internal/cookies"
	"github.com/ytgate/ytgate/internal/extractor"
	"github.com/ytgate/ytgate/internal/health"
	"github.com/ytgate/ytgate/internal/jobs"
	yglog "github.com/ytgate/ytgate/internal/log"
	"github.com/ytgate/ytgate/internal/pipeline"
	"github.com/ytgate/ytgate/internal/provider"
	"github.com/ytgate/ytgate/internal/ratelimit"
	"github.com/ytgate/ytgate/internal/storage"
	"github.com/ytgate/ytgate/internal/template"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownGrace = 15 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ytgate %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe logging defaults until the config is loaded.
	yglog.Configure(yglog.Config{Level: "info", Service: "ytgate", Version: version})
	logger := yglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewLoader(*configPath).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	yglog.Configure(yglog.Config{Level: cfg.Logging.Level, Service: "ytgate", Version: version})

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Msg("starting ytgate")
	logger.Info().Msgf("→ Output dir: %s", cfg.Storage.OutputDir)
	logger.Info().Msgf("→ Workers: %d, queue: %d", cfg.Downloads.MaxConcurrent, cfg.Downloads.QueueSize)
	logger.Info().Msgf("→ Rate limits: metadata %d rpm, download %d rpm, burst %d",
		cfg.RateLimiting.MetadataRPM, cfg.RateLimiting.DownloadRPM, cfg.RateLimiting.BurstCapacity)

	// Core singletons.
	runner := extractor.NewInvoker("yt-dlp")
	dispatcher := provider.NewDispatcher()
	dispatcher.Register(provider.YouTube{}, cfg.Providers.YouTube.Enabled)

	cookieStore := cookies.NewStore(cookies.NewRunnerProber(runner))
	if cfg.Providers.YouTube.Enabled && cfg.Providers.YouTube.CookiePath != "" {
		if err := cookieStore.Load("youtube", cfg.Providers.YouTube.CookiePath); err != nil {
			if !cfg.Security.AllowDegradedStart {
				logger.Fatal().
					Err(err).
					Str("event", "startup.cookie_failed").
					Msg("credential load failed; enable security.allow_degraded_start to boot without it")
			}
			logger.Warn().
				Err(err).
				Str("event", "startup.cookie_degraded").
				Msg("credential load failed; youtube runs degraded")
			dispatcher.SetDegraded("youtube", true, "credential unavailable at startup")
		}
	}

	renderer, err := template.NewRenderer(cfg.Storage.OutputDir, cfg.Templates.DefaultOutput)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.template_invalid").
			Msg("configured default output template is invalid")
	}

	p := &pipeline.Pipeline{
		Dispatcher: dispatcher,
		Cookies:    cookieStore,
		Runner:     runner,
		Renderer:   renderer,
		Timeouts: pipeline.Timeouts{
			MetadataPerAttempt: cfg.Timeouts.MetadataDuration(),
			Download:           cfg.Timeouts.DownloadDuration(),
			Conversion:         time.Duration(cfg.Timeouts.AudioConversion) * time.Second,
		},
		MaxAttempts: cfg.Providers.YouTube.RetryAttempts,
		Backoff:     cfg.Providers.YouTube.RetryBackoff,
		MaxFileSize: cfg.Storage.MaxFileSize,
	}

	store := jobs.NewStore(cfg.Downloads.JobTTL())
	active := storage.NewActiveFileSet()
	scheduler := jobs.NewScheduler(store, p, active, cfg.Downloads.QueueSize, cfg.Downloads.MaxConcurrent)
	reaper := storage.NewReaper(cfg.Storage.OutputDir, float64(cfg.Storage.CleanupThreshold),
		cfg.Storage.CleanupAgeDuration(), time.Hour, active)

	// Health checks: extractor binary and output dir are always critical;
	// credentials and connectivity degrade.
	manager := health.NewManager(version)
	manager.Register(health.BinaryChecker{Component: "ytdlp", Bin: "yt-dlp", Args: []string{"--version"}}, true)
	manager.Register(health.BinaryChecker{Component: "ffmpeg", Bin: "ffmpeg", Args: []string{"-version"}}, true)
	manager.Register(health.NodeChecker{}, true)
	manager.Register(health.WritableDirChecker{Dir: cfg.Storage.OutputDir}, true)
	manager.Register(health.DiskChecker{Dir: cfg.Storage.OutputDir, ThresholdPercent: float64(cfg.Storage.CleanupThreshold)}, false)
	for _, prov := range cookieStore.Providers() {
		manager.Register(health.CookieChecker{Store: cookieStore, Provider: prov}, !cfg.Security.AllowDegradedStart)
	}
	manager.Register(&health.ConnectivityChecker{Probe: func(ctx context.Context) error {
		_, err := p.FetchInfo(ctx, "https://www.youtube.com/watch?v=jNQXAC9IVRw")
		return err
	}}, false)

	validator := &health.StartupValidator{
		Manager:      manager,
		DegradedMode: cfg.Security.AllowDegradedStart,
		OnDegrade: func(name string, _ health.CheckResult) {
			if name == "cookies_youtube" {
				dispatcher.SetDegraded("youtube", true, "credential failed startup validation")
			}
		},
	}
	if err := validator.Validate(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.validation_failed").
			Msg("startup validation failed")
	}

	// Background loops.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	scheduler.Start(bgCtx)
	go store.RunSweeper(bgCtx)
	go reaper.Run(bgCtx)
	go cookieStore.Watch(bgCtx)

	server := &api.Server{
		Pipeline:   p,
		Store:      store,
		Scheduler:  scheduler,
		Limiter:    ratelimit.New(ratelimit.Config(cfg.RateLimiting)),
		Gate:       auth.NewGate(cfg.Security.APIKeys),
		Cookies:    cookieStore,
		Dispatcher: dispatcher,
		Reaper:     reaper,
		Health:     manager,

		MetricsEnabled: cfg.Monitoring.MetricsEnabled,
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("event", "http.listening").
			Str("addr", httpServer.Addr).
			Msg("HTTP server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Str("event", "shutdown.signal").Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("event", "http.failed").Msg("HTTP server failed")
		}
	}

	// Shutdown order: stop accepting requests, then drain workers, then
	// stop the background loops.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Str("event", "shutdown.http_timeout").Msg("HTTP shutdown incomplete")
	}

	bgCancel()
	scheduler.Wait()
	logger.Info().Str("event", "shutdown.complete").Msg("ytgate stopped")
}
