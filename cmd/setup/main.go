package main

import (
	"context"
	"flag"
	"fmt"

	"circlechain-wallet-go/internal/common"
	"circlechain-wallet-go/internal/config"

	"go.uber.org/zap"
)

// runInit opens the configured backend; opening a store creates its schema
// (and the job queue migrations on postgres).
func runInit(ctx context.Context, services *common.Services) {
	zap.L().Info("Checking ledger store")
	if err := services.Wallet.HealthCheck(ctx); err != nil {
		zap.L().Fatal("Ledger store is not reachable", zap.Error(err))
	}
	zap.L().Info("Initialization complete")
}

func runSeed(ctx context.Context, services *common.Services) {
	zap.L().Info("Seeding demo users", zap.Int("count", len(common.DemoUsers)))
	created, err := common.SeedDemoUsers(ctx, services.Auth)
	if err != nil {
		zap.L().Fatal("Failed to seed demo users", zap.Error(err))
	}

	common.PrintHeader("DEMO USERS", common.DefaultWidth)
	for _, u := range common.DemoUsers {
		fmt.Printf("%-10s %-28s password: %s\n", u.Role, u.Email, u.Password)
	}
	common.PrintFooter(fmt.Sprintf("%d created, %d already present", created, len(common.DemoUsers)-created), common.DefaultWidth)
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	initFlag := flag.Bool("init", false, "Create the schema for the configured backend")
	seedFlag := flag.Bool("seed", false, "Create one demo user per role")
	flag.Parse()

	if !*initFlag && !*seedFlag {
		zap.L().Fatal("Nothing to do: pass -init and/or -seed")
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *initFlag {
		runInit(ctx, services)
	}
	if *seedFlag {
		runSeed(ctx, services)
	}
}
