package wallet

import (
	"context"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the current token balance for a user
func (s *service) GetBalance(ctx context.Context, userId string) (*models.BalanceView, error) {
	balance, err := s.ledger.GetBalance(ctx, userId)
	if err != nil {
		if !store.IsClientError(err) {
			zap.L().Error("Failed to get user balance", zap.String("user_id", userId), zap.Error(err))
		}
		return nil, err
	}

	return &models.BalanceView{Balance: balance, UserId: userId}, nil
}

// AdjustBalance applies delta without a ledger entry. It fails with
// InsufficientFunds when the result would be negative.
func (s *service) AdjustBalance(ctx context.Context, userId string, delta decimal.Decimal) (*models.BalanceView, error) {
	result, err := s.ledger.ApplyBalanceChange(ctx, store.ApplyParams{UserId: userId, Delta: delta})
	if err != nil {
		logFailure("Balance adjustment failed", userId, delta, err)
		return nil, err
	}

	zap.L().Info("Balance adjusted",
		zap.String("user_id", userId),
		zap.String("delta", delta.String()),
		zap.String("new_balance", result.Balance.String()))
	return &models.BalanceView{Balance: result.Balance, UserId: userId}, nil
}

// GetTransactionHistory returns up to limit entries, newest first, with totals over them
func (s *service) GetTransactionHistory(ctx context.Context, userId string, limit int) (*models.TransactionHistory, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}

	entries, err := s.ledger.GetTransactionHistory(ctx, userId, limit)
	if err != nil {
		if !store.IsClientError(err) {
			zap.L().Error("Failed to get transaction history", zap.String("user_id", userId), zap.Error(err))
		}
		return nil, err
	}

	records := toRecords(entries)
	earned, spent := totals(records)
	return &models.TransactionHistory{
		Transactions: records,
		TotalEarned:  earned,
		TotalSpent:   spent,
	}, nil
}

// GetWalletSummary returns the balance, totals and the most recent entries
func (s *service) GetWalletSummary(ctx context.Context, userId string) (*models.WalletSummary, error) {
	view, err := s.GetBalance(ctx, userId)
	if err != nil {
		return nil, err
	}

	history, err := s.GetTransactionHistory(ctx, userId, DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	recent := history.Transactions
	if len(recent) > summaryRecentCount {
		recent = recent[:summaryRecentCount]
	}

	return &models.WalletSummary{
		Balance:            view.Balance,
		TotalEarned:        history.TotalEarned,
		TotalSpent:         history.TotalSpent,
		RecentTransactions: recent,
	}, nil
}

func toRecords(entries []models.Transaction) []models.TransactionRecord {
	records := make([]models.TransactionRecord, len(entries))
	for i, e := range entries {
		records[i] = models.TransactionRecord{
			Id:        e.Reference,
			Type:      e.Kind,
			UserId:    e.UserId,
			RelatedId: e.RelatedId,
			Amount:    decimal.Zero,
			Status:    e.Status,
			CreatedAt: e.CreatedAt,
		}
		if e.Amount != nil {
			records[i].Amount = *e.Amount
		}
		if e.Details != nil {
			records[i].Details = *e.Details
		}
	}
	return records
}

// totals sums positive reward amounts as earned and positive payment amounts as spent
func totals(records []models.TransactionRecord) (earned, spent decimal.Decimal) {
	earned, spent = decimal.Zero, decimal.Zero
	for _, r := range records {
		if !r.Amount.IsPositive() {
			continue
		}
		switch r.Type {
		case models.KindReward, models.KindRecyclingReward:
			earned = earned.Add(r.Amount)
		case models.KindPayment:
			spent = spent.Add(r.Amount)
		}
	}
	return earned, spent
}

func logFailure(msg, userId string, amount decimal.Decimal, err error) {
	fields := []zap.Field{
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.Error(err),
	}
	if store.IsClientError(err) {
		zap.L().Warn(msg, fields...)
		return
	}
	zap.L().Error(msg, fields...)
}
