package formance

import (
	"context"
	"strconv"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. Entry metadata is attached on the posted transaction
// so every Formance transaction carries its wallet kind, amount and delta.
// ---------------------------------------------------------------------------

// numscriptDebit has no overdraft on the user source: the ledger itself
// refuses a send that would take the balance below zero.
const numscriptDebit = `vars {
  asset $asset
  number $amount
  account $user
}

send [$asset $amount] (
  source = $user
  destination = @platform:spent
)
`

const numscriptCredit = `vars {
  asset $asset
  number $amount
  account $user
}

send [$asset $amount] (
  source = @platform:rewards allowing unbounded overdraft
  destination = $user
)
`

const numscriptOpening = `vars {
  asset $asset
  number $amount
  account $user
}

send [$asset $amount] (
  source = @world
  destination = $user
)
`

// numscriptAudit records an entry against the user without moving funds.
const numscriptAudit = `vars {
  asset $asset
  account $user
}

send [$asset 0] (
  source = $user
  destination = @platform:audit
)
`

// Transaction metadata keys.
const (
	txMetaKind      = "kind"
	txMetaUserId    = "user_id"
	txMetaRelatedId = "related_id"
	txMetaAmount    = "amount"
	txMetaDetails   = "details"
	txMetaDelta     = "delta"

	kindOpening = "opening"
)

// ApplyBalanceChange posts the change as one Numscript transaction.
func (s *Service) ApplyBalanceChange(ctx context.Context, params store.ApplyParams) (*store.ApplyResult, error) {
	zap.L().Debug("Applying balance change in Formance",
		zap.String("user_id", params.UserId),
		zap.String("delta", params.Delta.String()))

	if _, err := s.getAccount(ctx, params.UserId); err != nil {
		return nil, err
	}

	amount, err := toMinorUnits(params.Delta.Abs())
	if err != nil {
		return nil, err
	}

	// A bare adjustment still becomes a Formance transaction; it is tagged
	// so history skips it while reconciliation still counts its delta.
	entry := store.EntryParams{Kind: models.KindAdjustment}
	if params.Entry != nil {
		entry = *params.Entry
	}
	entry.UserId = params.UserId

	vars := map[string]string{
		"asset": tokenAsset,
		"user":  userAddress(params.UserId),
	}
	script := numscriptAudit
	switch {
	case params.Delta.IsNegative():
		script = numscriptDebit
		vars["amount"] = amount
	case params.Delta.IsPositive():
		script = numscriptCredit
		vars["amount"] = amount
	}

	tx, err := s.postEntry(ctx, script, vars, entry, params.Delta)
	if err != nil {
		if isInsufficientFundError(err) {
			available, balErr := s.GetBalance(ctx, params.UserId)
			if balErr != nil {
				return nil, balErr
			}
			return nil, &store.InsufficientFundsError{
				UserId:    params.UserId,
				Available: available,
				Required:  params.Delta.Neg(),
			}
		}
		if hasErrorCode(err, shared.V2ErrorsEnumConflict) {
			return nil, store.DuplicateReference(entry.Reference)
		}
		return nil, store.StoreFailure("post transaction", err)
	}

	balance, err := s.GetBalance(ctx, params.UserId)
	if err != nil {
		return nil, err
	}
	tx.BalanceAfter = balance

	zap.L().Info("Balance change committed",
		zap.String("user_id", params.UserId),
		zap.String("delta", params.Delta.String()),
		zap.String("balance_after", balance.String()),
		zap.String("reference", tx.Reference),
		zap.String("kind", string(tx.Kind)))

	result := &store.ApplyResult{UserId: params.UserId, Balance: balance}
	if params.Entry != nil {
		result.Transaction = tx
	}
	return result, nil
}

// AppendEntry posts a zero-amount transaction carrying the entry.
func (s *Service) AppendEntry(ctx context.Context, params store.EntryParams) (*models.Transaction, error) {
	acct, err := s.getAccount(ctx, params.UserId)
	if err != nil {
		return nil, err
	}

	tx, err := s.postEntry(ctx, numscriptAudit, map[string]string{
		"asset": tokenAsset,
		"user":  userAddress(params.UserId),
	}, params, decimal.Zero)
	if err != nil {
		if hasErrorCode(err, shared.V2ErrorsEnumConflict) {
			return nil, store.DuplicateReference(params.Reference)
		}
		return nil, store.StoreFailure("post audit entry", err)
	}
	tx.BalanceAfter = fromMinorUnits(volumeBalance(acct.Volumes, tokenAsset))

	zap.L().Info("Ledger entry appended",
		zap.String("user_id", params.UserId),
		zap.String("kind", string(params.Kind)),
		zap.String("reference", tx.Reference))
	return tx, nil
}

// GetTransactionHistory returns up to limit entries, newest first. Formance
// keeps no per-entry balance, so BalanceAfter is rebuilt backwards from the
// current balance using each entry's delta.
func (s *Service) GetTransactionHistory(ctx context.Context, userId string, limit int) ([]models.Transaction, error) {
	balance, err := s.GetBalance(ctx, userId)
	if err != nil {
		return nil, err
	}

	var result []models.Transaction
	err = s.walkUserTransactions(ctx, userId, int64(limit), func(tx shared.V2Transaction) bool {
		if tx.Metadata[txMetaKind] == kindOpening {
			return true
		}
		t := txToTransaction(userId, tx)
		t.BalanceAfter = balance
		balance = balance.Sub(t.Delta)
		if t.Kind == models.KindAdjustment {
			return true
		}
		result = append(result, t)
		return len(result) < limit
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Retrieved transaction history",
		zap.String("user_id", userId),
		zap.Int("count", len(result)))
	return result, nil
}

// ReconcileBalance folds the delta metadata of every user transaction on
// top of the opening balance and compares it with the account volume.
func (s *Service) ReconcileBalance(ctx context.Context, userId string) (*models.Reconciliation, error) {
	acct, err := s.getAccount(ctx, userId)
	if err != nil {
		return nil, err
	}
	user := accountToUser(acct)

	rec := &models.Reconciliation{
		UserId:         userId,
		StoredBalance:  user.Balance,
		OpeningBalance: user.OpeningBalance,
	}
	err = s.walkUserTransactions(ctx, userId, 100, func(tx shared.V2Transaction) bool {
		if tx.Metadata[txMetaKind] == kindOpening {
			return true
		}
		rec.LedgerDelta = rec.LedgerDelta.Add(txToTransaction(userId, tx).Delta)
		rec.EntryCount++
		return true
	})
	if err != nil {
		return nil, err
	}
	rec.ComputedBalance = rec.OpeningBalance.Add(rec.LedgerDelta)

	if !rec.Balanced() {
		zap.L().Warn("Balance does not match ledger",
			zap.String("user_id", userId),
			zap.String("stored", rec.StoredBalance.String()),
			zap.String("computed", rec.ComputedBalance.String()))
	}
	return rec, nil
}

// ---------- helpers ----------

func (s *Service) postOpeningBalance(ctx context.Context, userId, amount string) error {
	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr("opening:" + userId),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptOpening,
				Vars: map[string]string{
					"asset":  tokenAsset,
					"amount": amount,
					"user":   userAddress(userId),
				},
			},
			Metadata: map[string]string{
				txMetaKind:   kindOpening,
				txMetaUserId: userId,
			},
		},
	})
	if err != nil {
		return store.StoreFailure("post opening balance", err)
	}
	return nil
}

func (s *Service) postEntry(ctx context.Context, script string, vars map[string]string, e store.EntryParams, delta decimal.Decimal) (*models.Transaction, error) {
	resp, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(store.EntryReference(e)),
			Script: &shared.V2PostTransactionScript{
				Plain: script,
				Vars:  vars,
			},
			Metadata: entryMetadata(e, delta),
		},
	})
	if err != nil {
		return nil, err
	}
	t := txToTransaction(e.UserId, resp.V2CreateTransactionResponse.Data)
	return &t, nil
}

// walkUserTransactions pages through the user's transactions, newest first,
// until visit returns false or the pages run out.
func (s *Service) walkUserTransactions(ctx context.Context, userId string, pageSize int64, visit func(shared.V2Transaction) bool) error {
	addr := userAddress(userId)
	var cursor *string
	for {
		resp, err := s.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
			Ledger:   s.ledger,
			PageSize: &pageSize,
			Cursor:   cursor,
			RequestBody: map[string]any{
				"$or": []any{
					map[string]any{"$match": map[string]any{"source": addr}},
					map[string]any{"$match": map[string]any{"destination": addr}},
				},
			},
		})
		if err != nil {
			return store.StoreFailure("list transactions", err)
		}

		page := resp.V2TransactionsCursorResponse.Cursor
		for _, tx := range page.Data {
			if !visit(tx) {
				return nil
			}
		}
		if !page.HasMore || page.Next == nil {
			return nil
		}
		cursor = page.Next
	}
}

func entryMetadata(e store.EntryParams, delta decimal.Decimal) map[string]string {
	meta := map[string]string{
		txMetaKind:   string(e.Kind),
		txMetaUserId: e.UserId,
		txMetaDelta:  delta.String(),
	}
	if e.RelatedId != nil {
		meta[txMetaRelatedId] = strconv.FormatInt(*e.RelatedId, 10)
	}
	if e.Amount != nil {
		meta[txMetaAmount] = e.Amount.String()
	}
	if e.Details != nil {
		meta[txMetaDetails] = *e.Details
	}
	return meta
}

func txToTransaction(userId string, tx shared.V2Transaction) models.Transaction {
	meta := tx.Metadata
	t := models.Transaction{
		UserId:    userId,
		Kind:      models.TransactionKind(meta[txMetaKind]),
		Status:    models.TransactionStatusConfirmed,
		CreatedAt: tx.Timestamp,
	}
	if tx.ID != nil {
		t.Id = tx.ID.Int64()
	}
	if tx.Reference != nil {
		t.Reference = *tx.Reference
	}
	if v, err := strconv.ParseInt(meta[txMetaRelatedId], 10, 64); err == nil {
		t.RelatedId = &v
	}
	if v, err := decimal.NewFromString(meta[txMetaAmount]); err == nil {
		t.Amount = &v
	}
	if v, ok := meta[txMetaDetails]; ok {
		t.Details = &v
	}
	if v, err := decimal.NewFromString(meta[txMetaDelta]); err == nil {
		t.Delta = v
	}
	return t
}
