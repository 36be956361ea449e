package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"circlechain-wallet-go/internal/common"
	"circlechain-wallet-go/internal/config"
	"circlechain-wallet-go/internal/reconciler"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Run a single reconciliation pass and exit")
	concurrency := flag.Int("concurrency", 0, "Users reconciled in parallel (default 4)")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := common.InitializeStores(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize stores", zap.Error(err))
	}
	defer stores.Close()

	rec, err := reconciler.New(reconciler.Config{
		Store:       stores.Ledger,
		Interval:    cfg.Reconciler.Interval,
		Concurrency: *concurrency,
	})
	if err != nil {
		zap.L().Fatal("Failed to create reconciler", zap.Error(err))
	}

	if *once {
		report, err := rec.RunOnce(ctx)
		if err != nil {
			zap.L().Fatal("Reconciliation failed", zap.Error(err))
		}
		if !report.Balanced() {
			zap.L().Error("Ledger out of balance",
				zap.Int("mismatches", len(report.Mismatches)),
				zap.Int("failures", len(report.Failures)))
			loggerCleanup()
			os.Exit(1)
		}
		zap.L().Info("Ledger balanced", zap.Int("checked", report.Checked))
		return
	}

	rec.Start(ctx)
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping reconciler...")
	rec.Stop()
}
