/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"circlechain-wallet-go/internal/api"
	"circlechain-wallet-go/internal/common"
	"circlechain-wallet-go/internal/config"
	"circlechain-wallet-go/internal/reconciler"

	"go.uber.org/zap"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting CircleChain wallet server",
		zap.String("backend", cfg.Backend),
		zap.String("addr", cfg.Server.Addr))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if cfg.Database.CreateDummyUsers {
		created, err := common.SeedDemoUsers(ctx, services.Auth)
		if err != nil {
			zap.L().Fatal("Failed to seed demo users", zap.Error(err))
		}
		zap.L().Info("Demo users ready", zap.Int("created", created))
	}

	if services.Rewards != nil {
		if err := services.Rewards.Start(ctx); err != nil {
			zap.L().Fatal("Failed to start reward queue", zap.Error(err))
		}
	}

	var rec *reconciler.Reconciler
	if cfg.Reconciler.Enabled {
		rec, err = reconciler.New(reconciler.Config{
			Store:    services.Ledger,
			Interval: cfg.Reconciler.Interval,
		})
		if err != nil {
			zap.L().Fatal("Failed to create reconciler", zap.Error(err))
		}
		rec.Start(ctx)
	}

	handler := api.NewHandler(services.Wallet, services.Marketplace, services.Auth)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
		Idempotency:    services.Idempotency,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping server...")
	case err := <-serverErr:
		if err != nil {
			zap.L().Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	}
	if rec != nil {
		rec.Stop()
	}
	if services.Rewards != nil {
		if err := services.Rewards.Stop(shutdownCtx); err != nil {
			zap.L().Warn("Reward queue did not stop cleanly", zap.Error(err))
		}
	}
	cancel()

	zap.L().Info("Server stopped")
}
