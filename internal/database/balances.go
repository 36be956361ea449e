package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the current balance for a user
func (s *SubledgerService) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	var balanceStr string
	var version int64

	err := s.db.QueryRowContext(ctx, queryGetUserBalance, userId).Scan(&balanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, store.NotFound("user", userId)
	}
	if err != nil {
		return decimal.Zero, store.StoreFailure("read balance", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, store.StoreFailure("parse balance", fmt.Errorf("%q: %w", balanceStr, err))
	}
	return balance, nil
}

// ReconcileBalance verifies that the stored balance equals the opening balance
// plus the sum of every delta in the ledger
func (s *SubledgerService) ReconcileBalance(ctx context.Context, userId string) (*models.Reconciliation, error) {
	var storedStr, openingStr string
	err := s.db.QueryRowContext(ctx, queryGetOpeningBalance, userId).Scan(&storedStr, &openingStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("user", userId)
	}
	if err != nil {
		return nil, store.StoreFailure("read balance", err)
	}

	rec := &models.Reconciliation{UserId: userId}
	if rec.StoredBalance, err = decimal.NewFromString(storedStr); err != nil {
		return nil, store.StoreFailure("parse balance", err)
	}
	if rec.OpeningBalance, err = decimal.NewFromString(openingStr); err != nil {
		return nil, store.StoreFailure("parse opening balance", err)
	}

	rows, err := s.db.QueryContext(ctx, queryGetLedgerDeltas, userId)
	if err != nil {
		return nil, store.StoreFailure("query ledger deltas", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var deltaStr string
		if err := rows.Scan(&deltaStr); err != nil {
			return nil, store.StoreFailure("scan ledger delta", err)
		}
		d, err := decimal.NewFromString(deltaStr)
		if err != nil {
			return nil, store.StoreFailure("parse ledger delta", err)
		}
		sum = sum.Add(d)
		rec.EntryCount++
	}
	if err := rows.Err(); err != nil {
		return nil, store.StoreFailure("iterate ledger deltas", err)
	}

	rec.LedgerDelta = sum
	rec.ComputedBalance = rec.OpeningBalance.Add(sum)

	if !rec.Balanced() {
		zap.L().Error("Balance mismatch detected",
			zap.String("user_id", userId),
			zap.String("stored_balance", rec.StoredBalance.String()),
			zap.String("computed_balance", rec.ComputedBalance.String()),
			zap.Int64("entries", rec.EntryCount))
	} else {
		zap.L().Debug("Balance reconciled",
			zap.String("user_id", userId),
			zap.String("balance", rec.StoredBalance.String()))
	}
	return rec, nil
}

// Subledger convenience methods

func (s *Service) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	return s.subledger.GetBalance(ctx, userId)
}

func (s *Service) ApplyBalanceChange(ctx context.Context, params store.ApplyParams) (*store.ApplyResult, error) {
	return s.subledger.ApplyBalanceChange(ctx, params)
}

func (s *Service) AppendEntry(ctx context.Context, params store.EntryParams) (*models.Transaction, error) {
	return s.subledger.AppendEntry(ctx, params)
}

func (s *Service) GetTransactionHistory(ctx context.Context, userId string, limit int) ([]models.Transaction, error) {
	return s.subledger.GetTransactionHistory(ctx, userId, limit)
}

func (s *Service) ReconcileBalance(ctx context.Context, userId string) (*models.Reconciliation, error) {
	return s.subledger.ReconcileBalance(ctx, userId)
}
