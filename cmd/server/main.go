package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/constants"
	"qwen2api-go/internal/credential"
	"qwen2api-go/internal/events"
	"qwen2api-go/internal/logging"
	tracing "qwen2api-go/internal/monitoring/tracing"
	"qwen2api-go/internal/runtime"
	srv "qwen2api-go/internal/server"
	usagestats "qwen2api-go/internal/stats"
	"qwen2api-go/internal/upstream/qwen"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *debug {
		cfg.Logging.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}

	traceShutdown, err := tracing.Init(context.Background())
	if err != nil {
		log.WithError(err).Warn("failed to initialize tracing")
	}
	if traceShutdown != nil {
		defer func() {
			if err := traceShutdown(context.Background()); err != nil {
				log.WithError(err).Warn("failed to shutdown tracing")
			}
		}()
	}
	log.WithFields(log.Fields{
		"version": constants.Version,
		"commit":  constants.GitCommit,
		"built":   constants.BuildTime,
	}).Infof("Starting qwen2api-go (config: %s)", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub()
	manager := config.NewManager(*configPath, cfg)
	manager.SetEventPublisher(hub)
	if cfg.Logging.Debug {
		hub.Subscribe(events.TopicConfigReloaded, func(_ context.Context, evt events.Event) {
			log.WithField("topic", evt.Topic).Debugf("config event: %v", evt.Payload)
		})
	}

	storageBackend := openStorage(ctx, cfg)
	defer func() { _ = storageBackend.Close() }()

	usageInterval := time.Duration(cfg.Storage.UsageResetHours) * time.Hour
	usage := usagestats.NewUsageStats(storageBackend, usageInterval)
	detach := usage.Attach(hub)
	defer detach()

	pool := buildPool(ctx, cfg, credential.WithPublisher(hub))
	client := qwen.New(cfg.Upstream)

	tasks := runtime.NewTaskManager(ctx)
	if err := runtime.StartBackground(tasks, runtime.Services{Config: manager, Pool: pool, Usage: usage}); err != nil {
		log.WithError(err).Fatal("failed to start background tasks")
	}

	engine := srv.BuildEngine(srv.Dependencies{
		Config:   manager,
		Client:   client,
		Uploader: client,
		Pool:     pool,
		Usage:    usage,
		Storage:  storageBackend,
		Events:   hub,
		Tasks:    tasks,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
	}
	go func() {
		log.Infof("OpenAI-compatible API listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped unexpectedly")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("Shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancelShutdown()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown incomplete")
	}
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("background tasks did not stop in time")
	}
	log.Info("Server stopped")
}
