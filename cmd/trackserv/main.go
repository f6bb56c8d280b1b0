package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trackserv/internal/config"
	"trackserv/internal/metrics"
	"trackserv/internal/minifinder"
	"trackserv/internal/publish"
	"trackserv/internal/server"
	"trackserv/internal/session"
	"trackserv/internal/storage"
	"trackserv/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("config load failed", "path", configPath, "error", err)
		os.Exit(1)
	}
	lvl, _ := cfg.Log.SlogLevel()
	logLevel.Set(lvl)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	registry := session.NewRegistry(session.RegistryConfig{
		AutoRegister: *cfg.Registry.AutoRegister,
		Devices:      cfg.Registry.Devices,
	})

	decoder := minifinder.New(registry, logger)

	srv, err := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		MaxLineBytes: cfg.Server.MaxLineBytes,
		ReadTimeout:  cfg.Server.ReadTimeout,
	}, decoder, minifinder.ProtocolName, registry, m, logger)
	if err != nil {
		logger.Error("server init failed", "error", err)
		os.Exit(1)
	}

	var store *storage.Store
	if cfg.Storage.Enable {
		store = storage.New(cfg.Storage.Path)
		defer store.Close()
		srv.AddSink("storage", store)
		logger.Info("storage enabled", "path", cfg.Storage.Path)
	}

	if cfg.NATS.Enable {
		pub, err := publish.Connect(publish.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Name:          "trackserv",
		}, logger)
		if err != nil {
			logger.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		srv.AddSink("nats", pub)
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("server start failed", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	status := web.NewStatus("trackserv", registry, srv, store)
	httpSrv := &http.Server{
		Addr:    cfg.Web.Addr,
		Handler: web.Handler(status, m.Handler()),
	}
	go func() {
		logger.Info("web server listening", "addr", cfg.Web.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web server stopped", "error", err)
			cancel()
		}
	}()

	logger.Info("trackserv started", "ingest", cfg.Server.Addr)

	<-ctx.Done()
	logger.Info("trackserv stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
