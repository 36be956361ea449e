package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// ApplyBalanceChange atomically checks and updates a balance and records the entry
func (s *SubledgerService) ApplyBalanceChange(ctx context.Context, params store.ApplyParams) (*store.ApplyResult, error) {
	zap.L().Debug("Applying balance change",
		zap.String("user_id", params.UserId),
		zap.String("delta", params.Delta.String()))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.StoreFailure("begin transaction", err)
	}
	defer tx.Rollback()

	currentBalance, version, err := lockedBalance(ctx, tx, params.UserId)
	if err != nil {
		return nil, err
	}

	newBalance := currentBalance.Add(params.Delta)
	if newBalance.IsNegative() {
		return nil, &store.InsufficientFundsError{
			UserId:    params.UserId,
			Available: currentBalance,
			Required:  params.Delta.Neg(),
		}
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, queryUpdateUserBalance, newBalance.String(), now, params.UserId, version)
	if err != nil {
		return nil, store.StoreFailure("update balance", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, store.StoreFailure("update balance", err)
	}
	if rowsAffected == 0 {
		return nil, store.StoreFailure("update balance",
			fmt.Errorf("%w: user %s version %d", store.ErrConcurrentModification, params.UserId, version))
	}

	e := store.EntryParams{Kind: models.KindAdjustment}
	if params.Entry != nil {
		e = *params.Entry
	}
	e.UserId = params.UserId
	inserted, err := insertEntry(ctx, tx, e, params.Delta, newBalance, now)
	if err != nil {
		return nil, err
	}
	var entry *models.Transaction
	if params.Entry != nil {
		entry = inserted
	}

	if err := tx.Commit(); err != nil {
		return nil, store.StoreFailure("commit transaction", err)
	}

	fields := []zap.Field{
		zap.String("user_id", params.UserId),
		zap.String("delta", params.Delta.String()),
		zap.String("balance_before", currentBalance.String()),
		zap.String("balance_after", newBalance.String()),
	}
	fields = append(fields, zap.String("reference", inserted.Reference), zap.String("kind", string(inserted.Kind)))
	zap.L().Info("Balance change committed", fields...)

	return &store.ApplyResult{UserId: params.UserId, Balance: newBalance, Transaction: entry}, nil
}

// AppendEntry records an audit-only entry that leaves the balance untouched
func (s *SubledgerService) AppendEntry(ctx context.Context, params store.EntryParams) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.StoreFailure("begin transaction", err)
	}
	defer tx.Rollback()

	balance, _, err := lockedBalance(ctx, tx, params.UserId)
	if err != nil {
		return nil, err
	}

	entry, err := insertEntry(ctx, tx, params, decimal.Zero, balance, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, store.StoreFailure("commit transaction", err)
	}

	zap.L().Info("Ledger entry appended",
		zap.String("user_id", params.UserId),
		zap.String("kind", string(params.Kind)),
		zap.String("reference", entry.Reference))
	return entry, nil
}

// GetTransactionHistory returns up to limit entries, newest first
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, userId string, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, limit)
	if err != nil {
		return nil, store.StoreFailure("query transaction history", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, store.StoreFailure("scan transaction", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.StoreFailure("iterate transactions", err)
	}

	zap.L().Debug("Retrieved transaction history",
		zap.String("user_id", userId),
		zap.Int("count", len(transactions)))
	return transactions, nil
}

func lockedBalance(ctx context.Context, tx *sql.Tx, userId string) (decimal.Decimal, int64, error) {
	var balanceStr string
	var version int64
	err := tx.QueryRowContext(ctx, queryGetUserBalance, userId).Scan(&balanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, 0, store.NotFound("user", userId)
	}
	if err != nil {
		return decimal.Zero, 0, store.StoreFailure("read balance", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, 0, store.StoreFailure("parse balance", fmt.Errorf("%q: %w", balanceStr, err))
	}
	return balance, version, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e store.EntryParams, delta, balanceAfter decimal.Decimal, now time.Time) (*models.Transaction, error) {
	var amount, details any
	if e.Amount != nil {
		amount = e.Amount.String()
	}
	if e.Details != nil {
		details = *e.Details
	}
	var relatedId any
	if e.RelatedId != nil {
		relatedId = *e.RelatedId
	}

	reference := store.EntryReference(e)
	row := tx.QueryRowContext(ctx, queryInsertTransaction,
		reference, e.UserId, string(e.Kind), relatedId, amount,
		delta.String(), balanceAfter.String(), details, models.TransactionStatusConfirmed, now)
	entry, err := scanTransaction(row)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, store.DuplicateReference(reference)
		}
		return nil, store.StoreFailure("insert transaction", err)
	}
	return entry, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t            models.Transaction
		kind         string
		relatedId    sql.NullInt64
		amount       sql.NullString
		delta        string
		balanceAfter string
		details      sql.NullString
	)
	err := row.Scan(&t.Id, &t.Reference, &t.UserId, &kind, &relatedId, &amount,
		&delta, &balanceAfter, &details, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.Kind = models.TransactionKind(kind)
	if relatedId.Valid {
		id := relatedId.Int64
		t.RelatedId = &id
	}
	if amount.Valid {
		a, err := decimal.NewFromString(amount.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amount.String, err)
		}
		t.Amount = &a
	}
	if details.Valid {
		d := details.String
		t.Details = &d
	}
	if t.Delta, err = decimal.NewFromString(delta); err != nil {
		return nil, fmt.Errorf("failed to parse delta %q: %w", delta, err)
	}
	if t.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
		return nil, fmt.Errorf("failed to parse balance_after %q: %w", balanceAfter, err)
	}
	return &t, nil
}
