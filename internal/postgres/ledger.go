package postgres

import (
	"context"
	"errors"
	"fmt"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

func (s *Service) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	var balance string
	err := s.pool.QueryRow(ctx, queryGetUserBalance, userId).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, store.NotFound("user", userId)
	}
	if err != nil {
		return decimal.Zero, store.StoreFailure("read balance", err)
	}
	return parseNumeric(balance)
}

// ApplyBalanceChange moves the balance with a single conditional UPDATE and
// appends the entry in the same transaction.
func (s *Service) ApplyBalanceChange(ctx context.Context, params store.ApplyParams) (*store.ApplyResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, store.StoreFailure("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var balance string
	err = tx.QueryRow(ctx, queryApplyDelta, params.Delta.String(), params.UserId).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rejectedChange(ctx, tx, params)
	}
	if err != nil {
		return nil, store.StoreFailure("update balance", err)
	}
	newBalance, err := parseNumeric(balance)
	if err != nil {
		return nil, err
	}

	e := store.EntryParams{Kind: models.KindAdjustment}
	if params.Entry != nil {
		e = *params.Entry
	}
	e.UserId = params.UserId
	inserted, err := insertEntry(ctx, tx, e, params.Delta, newBalance)
	if err != nil {
		return nil, err
	}
	var entry *models.Transaction
	if params.Entry != nil {
		entry = inserted
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, store.StoreFailure("commit transaction", err)
	}

	zap.L().Info("Balance change committed",
		zap.String("user_id", params.UserId),
		zap.String("delta", params.Delta.String()),
		zap.String("balance_after", newBalance.String()),
		zap.String("reference", inserted.Reference),
		zap.String("kind", string(inserted.Kind)))
	return &store.ApplyResult{UserId: params.UserId, Balance: newBalance, Transaction: entry}, nil
}

// rejectedChange works out why the conditional update matched nothing
func rejectedChange(ctx context.Context, tx pgx.Tx, params store.ApplyParams) error {
	var balance string
	err := tx.QueryRow(ctx, queryLockUserBalance, params.UserId).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.NotFound("user", params.UserId)
	}
	if err != nil {
		return store.StoreFailure("read balance", err)
	}
	current, err := parseNumeric(balance)
	if err != nil {
		return err
	}
	return &store.InsufficientFundsError{
		UserId:    params.UserId,
		Available: current,
		Required:  params.Delta.Neg(),
	}
}

func (s *Service) AppendEntry(ctx context.Context, params store.EntryParams) (*models.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, store.StoreFailure("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var balance string
	err = tx.QueryRow(ctx, queryShareUserBalance, params.UserId).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("user", params.UserId)
	}
	if err != nil {
		return nil, store.StoreFailure("read balance", err)
	}
	current, err := parseNumeric(balance)
	if err != nil {
		return nil, err
	}

	entry, err := insertEntry(ctx, tx, params, decimal.Zero, current)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, store.StoreFailure("commit transaction", err)
	}
	return entry, nil
}

func (s *Service) GetTransactionHistory(ctx context.Context, userId string, limit int) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx, queryGetTransactionHistory, userId, limit)
	if err != nil {
		return nil, store.StoreFailure("query transaction history", err)
	}
	defer rows.Close()

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
	return transactions, nil
}

func (s *Service) ReconcileBalance(ctx context.Context, userId string) (*models.Reconciliation, error) {
	var stored, opening, delta string
	rec := &models.Reconciliation{UserId: userId}
	err := s.pool.QueryRow(ctx, queryReconcile, userId).Scan(&stored, &opening, &delta, &rec.EntryCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("user", userId)
	}
	if err != nil {
		return nil, store.StoreFailure("reconcile balance", err)
	}

	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{{stored, &rec.StoredBalance}, {opening, &rec.OpeningBalance}, {delta, &rec.LedgerDelta}} {
		if *f.dst, err = parseNumeric(f.raw); err != nil {
			return nil, err
		}
	}
	rec.ComputedBalance = rec.OpeningBalance.Add(rec.LedgerDelta)

	if !rec.Balanced() {
		zap.L().Error("Balance does not match ledger",
			zap.String("user_id", userId),
			zap.String("stored", rec.StoredBalance.String()),
			zap.String("computed", rec.ComputedBalance.String()))
	}
	return rec, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, e store.EntryParams, delta, balanceAfter decimal.Decimal) (*models.Transaction, error) {
	var amount *string
	if e.Amount != nil {
		a := e.Amount.String()
		amount = &a
	}

	reference := store.EntryReference(e)
	row := tx.QueryRow(ctx, queryInsertTransaction,
		reference, e.UserId, string(e.Kind), e.RelatedId, amount,
		delta.String(), balanceAfter.String(), e.Details, models.TransactionStatusConfirmed)
	entry, err := scanTransaction(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, store.DuplicateReference(reference)
		}
		return nil, store.StoreFailure("insert transaction", err)
	}
	return entry, nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		t            models.Transaction
		kind         string
		amount       *string
		delta        string
		balanceAfter string
	)
	err := row.Scan(&t.Id, &t.Reference, &t.UserId, &kind, &t.RelatedId, &amount,
		&delta, &balanceAfter, &t.Details, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Kind = models.TransactionKind(kind)
	if amount != nil {
		a, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, err
		}
		t.Amount = &a
	}
	if t.Delta, err = decimal.NewFromString(delta); err != nil {
		return nil, err
	}
	if t.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
		return nil, err
	}
	return &t, nil
}

func parseNumeric(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, store.StoreFailure("parse numeric", fmt.Errorf("%q: %w", raw, err))
	}
	return d, nil
}
