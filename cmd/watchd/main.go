package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-watch/internal/catalog"
	"hls-watch/internal/controlapi"
	"hls-watch/internal/controls"
	"hls-watch/internal/countdown"
	"hls-watch/internal/engine"
	"hls-watch/internal/engine/hls"
	"hls-watch/internal/fetch"
	"hls-watch/internal/platform/config"
	"hls-watch/internal/platform/logger"
	"hls-watch/internal/platform/metrics"
	"hls-watch/internal/player"
	"hls-watch/internal/watch"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 10 * time.Second
	container       = "main"
)

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	met := metrics.New()
	clock := clockwork.NewRealClock()

	interceptor := fetch.New(cfg.APIKeyHeader, cfg.APIKey)
	api := catalog.NewCoalescing(catalog.NewHTTPClient(cfg.APIBaseURL, catalog.HTTPOptions{
		Interceptor: interceptor,
		Timeout:     cfg.HTTPTimeout,
		MaxRetries:  cfg.CatalogRetries,
		RateLimit:   rate.Limit(cfg.CatalogRateLimit),
		Logger:      log,
	}))

	p := player.New(player.Config{
		Factory: hls.NewFactory(hls.Config{
			Client: interceptor.Client(nil),
			Clock:  clock,
			Logger: log,
		}),
		Resolver:       api,
		Interceptor:    interceptor,
		StorageBaseURL: cfg.StorageBaseURL,
		Policy:         engine.AutoplayPolicy(cfg.AutoplayPolicy),
		Logger:         log,
		Metrics:        met,
	})
	if err := p.Initialize(container, player.InitOptions{Muted: cfg.Muted, Autoplay: cfg.Autoplay}); err != nil {
		log.Error("player initialization failed", "error", err)
		os.Exit(1)
	}

	shell := controls.New(p, clock, cfg.ControlsIdle)

	var snapshots watch.SnapshotStore = watch.NewMemorySnapshots()
	if cfg.SnapshotPath != "" {
		snapshots = watch.NewFileSnapshots(cfg.SnapshotPath)
	}

	// The widget fires into the page controller, which is built after it.
	var page *watch.Controller
	widget := countdown.New(countdown.Config{
		Clock: clock,
		OnFire: func(target string, trigger countdown.Trigger) {
			log.Info("autoplay advancing", "target", target, "trigger", string(trigger))
			if err := page.Navigate(context.Background(), target); err != nil {
				log.Warn("autoplay navigation failed", "target", target, "error", err)
			}
		},
		Logger:  log,
		Metrics: met,
	})

	page = watch.New(watch.Config{
		Player:            p,
		Catalog:           api,
		Countdown:         widget,
		CountdownDuration: cfg.AutoplayCountdown,
		Snapshots:         snapshots,
		RelatedPageSize:   cfg.RelatedPageSize,
		Logger:            log,
		Metrics:           met,
	})

	h := controlapi.NewHandler(page, p, shell, widget, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetPlaying(p.State().IsPlaying) }).ServeHTTP(w, r)
	})
	r.Group(func(r chi.Router) {
		r.Use(controlapi.RateLimit(cfg.ControlRateLimit, time.Minute))
		h.Register(r)
	})

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("watch agent starting",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"autoplay_policy", cfg.AutoplayPolicy,
		"snapshot_path", cfg.SnapshotPath,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	widget.Close()
	shell.Close()
	page.Close()
	p.Dispose()

	log.Info("watch agent stopped")
}
