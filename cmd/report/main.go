package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/rfm-dashboard/internal/dashboard"
	"github.com/angelmondragon/rfm-dashboard/internal/dataset/sources"
	"github.com/angelmondragon/rfm-dashboard/internal/report"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/pkg/config"
	"github.com/angelmondragon/rfm-dashboard/pkg/instance"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

func main() {
	output := flag.String("output", "reports", "Output folder path")
	top := flag.Int("top", 0, "Best customers and categories per section (0 uses RFM_DASHBOARD_TOP_K)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "report"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "report",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "instance", instance.GetID())

	if err := run(ctx, cfg, logg, *output, *top); err != nil {
		logg.Error(ctx, "report failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, output string, top int) error {
	source, closeSource, err := sources.Open(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSource(); cerr != nil {
			logg.Error(context.Background(), "error closing dataset source", cerr)
		}
	}()

	topK := cfg.Aggregation.TopK
	if top > 0 {
		topK = top
	}
	svc, err := dashboard.NewService(dashboard.Options{
		Source: source,
		Aggregator: rfm.Aggregator{
			Workers:           cfg.Aggregation.Workers,
			ParallelThreshold: cfg.Aggregation.ParallelThreshold,
		},
		TopK:        topK,
		LoadTimeout: cfg.Dataset.LoadTimeout,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		return err
	}

	filename := report.TimestampedFilename(output, "rfm", time.Now())
	if err := report.ExportJSON(filename, snap); err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"file":      filename,
		"customers": snap.Customers,
	}), "report exported")
	return nil
}
