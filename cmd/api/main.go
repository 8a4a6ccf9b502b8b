package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/rfm-dashboard/api/controllers"
	"github.com/angelmondragon/rfm-dashboard/api/routes"
	"github.com/angelmondragon/rfm-dashboard/internal/dashboard"
	"github.com/angelmondragon/rfm-dashboard/internal/dataset/sources"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/pkg/config"
	"github.com/angelmondragon/rfm-dashboard/pkg/instance"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
	"github.com/angelmondragon/rfm-dashboard/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := sources.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open dataset source", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeSource(); err != nil {
			logg.Error(context.Background(), "error closing dataset source", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := dashboard.NewService(dashboard.Options{
		Source: source,
		Aggregator: rfm.Aggregator{
			Workers:           cfg.Aggregation.Workers,
			ParallelThreshold: cfg.Aggregation.ParallelThreshold,
		},
		TopK:        cfg.Aggregation.TopK,
		LoadTimeout: cfg.Dataset.LoadTimeout,
		Metrics:     metrics.NewBuildMetrics(reg),
		Logger:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create dashboard service", err)
		os.Exit(1)
	}

	var pinger controllers.Pinger
	if p, ok := svc.(dashboard.Pinger); ok {
		pinger = p
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	ctx = logg.WithDatasetSource(ctx, source.Name())
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, svc, pinger, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}
}
