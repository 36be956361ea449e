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
	"flag"
	"fmt"

	"circlechain-wallet-go/internal/common"
	"circlechain-wallet-go/internal/config"
	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type reportStats struct {
	totalUsers    int
	activeWallets int
	totalBalance  decimal.Decimal
}

func printTransaction(tx models.TransactionRecord, isLast bool) {
	fmt.Printf("%s %-19s %-18s %12s  %s\n",
		common.BoxPrefix(isLast),
		tx.CreatedAt.Format("2006-01-02 15:04:05"),
		tx.Type,
		tx.Amount.StringFixed(2),
		common.Truncate(tx.Details, 30))
}

func printUserHeader(user common.UserInfo, summary *models.WalletSummary) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s  Role: %s\n", user.Id, user.Role)
	fmt.Printf("│  Balance: %s  Earned: %s  Spent: %s\n",
		common.FormatTokens(summary.Balance),
		summary.TotalEarned.StringFixed(2),
		summary.TotalSpent.StringFixed(2))
	common.PrintBoxSeparator(78)
}

func processUser(ctx context.Context, w wallet.Service, user common.UserInfo, history int) (*models.WalletSummary, error) {
	summary, err := w.GetWalletSummary(ctx, user.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet summary: %w", err)
	}

	printUserHeader(user, summary)

	txs := summary.RecentTransactions
	if history > 0 {
		h, err := w.GetTransactionHistory(ctx, user.Id, history)
		if err != nil {
			return nil, fmt.Errorf("failed to get history: %w", err)
		}
		txs = h.Transactions
	}
	if len(txs) == 0 {
		fmt.Printf("%s no transactions\n", common.BoxPrefix(true))
	}
	for i, tx := range txs {
		printTransaction(tx, i == len(txs)-1)
	}
	return summary, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	historyFlag := flag.Int("history", 0, "Show the last N transactions instead of the summary's recent list")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	stores, err := common.InitializeStores(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize stores", zap.Error(err))
	}
	defer stores.Close()

	rates, err := common.LoadRatePolicy(cfg.Wallet.RatesFile)
	if err != nil {
		logger.Fatal("Failed to load reward rates", zap.Error(err))
	}
	w := wallet.NewService(stores.Ledger, rates, cfg.Wallet.HistoryLimit)

	users, err := common.LoadUsers(ctx, stores.Ledger, *emailFlag)
	if err != nil {
		logger.Fatal("Failed to load users", zap.Error(err))
	}

	common.PrintHeader("WALLET BALANCE REPORT", common.DefaultWidth)

	stats := reportStats{totalBalance: decimal.Zero}
	for _, user := range users {
		stats.totalUsers++
		summary, err := processUser(ctx, w, user, *historyFlag)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}
		if summary.Balance.IsPositive() {
			stats.activeWallets++
		}
		stats.totalBalance = stats.totalBalance.Add(summary.Balance)
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d users, %d with a positive balance, %s in circulation",
		stats.totalUsers, stats.activeWallets, common.FormatTokens(stats.totalBalance)), common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("active_wallets", stats.activeWallets))
}
