package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/pagelens/api"
	"github.com/use-agent/pagelens/api/handler"
	"github.com/use-agent/pagelens/cache"
	"github.com/use-agent/pagelens/capture"
	"github.com/use-agent/pagelens/config"
	"github.com/use-agent/pagelens/pagespeed"
	"github.com/use-agent/pagelens/report"
	"github.com/use-agent/pagelens/storage"
	"github.com/use-agent/pagelens/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pagelens starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"storage", cfg.Storage.Backend,
		"metrics", cfg.PageSpeed.Mode,
		"maxSessions", cfg.Capture.MaxSessions,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── 3. Metrics provider (fails fast without an API key) ────────
	provider, err := pagespeed.New(cfg.PageSpeed, nil)
	if err != nil {
		slog.Error("failed to initialise metrics provider", "error", err)
		os.Exit(1)
	}

	// ── 4. Screenshot store ─────────────────────────────────────────
	store, staticDir, err := newStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to initialise screenshot store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	// ── 5. Capture + orchestration ──────────────────────────────────
	capturer := capture.NewCapturer(capture.NewRodLauncher(cfg.Browser, cfg.Capture), store, cfg.Capture)
	orchestrator := report.NewOrchestrator(capturer, provider, cfg.Report.ParallelMetrics)

	// ── 6. Setup router ─────────────────────────────────────────────
	analyzer := handler.NewAnalyzer(orchestrator, cache.New(cfg.Cache.TTL), webhook.NewSender(nil))
	if local, ok := store.(*storage.LocalStore); ok {
		analyzer.WithScreenshotChecker(local)
	}
	startTime := time.Now()
	router := api.NewRouter(ctx, cfg, api.Deps{
		Analyzer:  analyzer,
		Sessions:  capturer,
		StaticDir: staticDir,
	}, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// In-flight reports get the capture timeout to finish; their browser
	// sessions are torn down by the capturer on every path.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Capture.Timeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	stop()
	slog.Info("pagelens stopped")
}

// newStore builds the configured screenshot store. For the local backend it
// also starts the retention sweep and returns the directory to serve.
func newStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, string, error) {
	switch cfg.Backend {
	case "s3":
		st, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
			Prefix:        cfg.S3Prefix,
		})
		return st, "", err
	case "local", "":
		st, err := storage.NewLocalStore(cfg.Dir, cfg.PublicPrefix, storage.RetentionPolicy{
			MaxAge:   cfg.RetentionMaxAge,
			MaxFiles: cfg.RetentionMaxFiles,
			Interval: cfg.RetentionInterval,
		})
		if err != nil {
			return nil, "", err
		}
		go st.Run(ctx)
		return st, st.Dir(), nil
	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h).With("service", "pagelens"))
}
