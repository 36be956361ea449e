package wallet

import (
	"context"
	"fmt"
	"time"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProcessPayment debits amount and records a payment entry in one atomic unit
func (s *service) ProcessPayment(ctx context.Context, req PaymentRequest) (*models.Receipt, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidAmount)
	}

	current, err := s.ledger.GetBalance(ctx, req.UserId)
	if err != nil {
		logFailure("Payment failed", req.UserId, req.Amount, err)
		return nil, err
	}
	if current.LessThan(req.Amount) {
		err := &store.InsufficientFundsError{UserId: req.UserId, Available: current, Required: req.Amount}
		logFailure("Payment rejected", req.UserId, req.Amount, err)
		return nil, err
	}

	// The store re-checks under its own lock; the read above only fails fast.
	amount := req.Amount
	details := "Payment for " + req.ProductName
	result, err := s.ledger.ApplyBalanceChange(ctx, store.ApplyParams{
		UserId: req.UserId,
		Delta:  amount.Neg(),
		Entry: &store.EntryParams{
			Kind:      models.KindPayment,
			RelatedId: req.ProductId,
			Amount:    &amount,
			Details:   &details,
		},
	})
	if err != nil {
		logFailure("Payment failed", req.UserId, req.Amount, err)
		return nil, err
	}

	logCommitted("Payment processed", result)
	receipt := receiptFor(result, amount)
	receipt.ProductName = req.ProductName
	return receipt, nil
}

// ProcessReward credits amount with a reward entry. A negative amount is a
// clawback and is still subject to the non-negative balance check.
func (s *service) ProcessReward(ctx context.Context, req RewardRequest) (*models.Receipt, error) {
	amount := req.Amount
	reason := req.Reason
	result, err := s.ledger.ApplyBalanceChange(ctx, store.ApplyParams{
		UserId: req.UserId,
		Delta:  amount,
		Entry: &store.EntryParams{
			Reference: req.Reference,
			Kind:      models.KindReward,
			Amount:    &amount,
			Details:   &reason,
		},
	})
	if err != nil {
		logFailure("Reward failed", req.UserId, req.Amount, err)
		return nil, err
	}

	logCommitted("Reward processed", result)
	receipt := receiptFor(result, amount)
	receipt.Reason = reason
	return receipt, nil
}

// ProcessRecyclingReward pays rate(materialType) per recycled item
func (s *service) ProcessRecyclingReward(ctx context.Context, req RecyclingRewardRequest) (*models.Receipt, error) {
	rate := s.rates.RewardRate(req.MaterialType)
	amount := rate.Mul(req.Quantity)

	zap.L().Debug("Computed recycling reward",
		zap.String("user_id", req.UserId),
		zap.String("material_type", req.MaterialType),
		zap.String("quantity", req.Quantity.String()),
		zap.String("rate", rate.String()),
		zap.String("amount", amount.String()))

	return s.ProcessReward(ctx, RewardRequest{
		UserId:    req.UserId,
		Amount:    amount,
		Reason:    fmt.Sprintf("Recycling reward for %s %s items", req.Quantity.String(), req.MaterialType),
		Reference: req.Reference,
	})
}

// RecordActivity appends an audit entry; the balance is not touched
func (s *service) RecordActivity(ctx context.Context, req ActivityRequest) (*models.Transaction, error) {
	details := req.Details
	entry, err := s.ledger.AppendEntry(ctx, store.EntryParams{
		UserId:    req.UserId,
		Kind:      req.Kind,
		RelatedId: req.RelatedId,
		Amount:    req.Amount,
		Details:   &details,
	})
	if err != nil {
		if !store.IsClientError(err) {
			zap.L().Error("Failed to record activity",
				zap.String("user_id", req.UserId),
				zap.String("kind", string(req.Kind)),
				zap.Error(err))
		}
		return nil, err
	}
	return entry, nil
}

func receiptFor(result *store.ApplyResult, amount decimal.Decimal) *models.Receipt {
	receipt := &models.Receipt{
		Amount:     amount,
		NewBalance: result.Balance,
		Status:     models.TransactionStatusConfirmed,
		Timestamp:  time.Now().UTC(),
	}
	if result.Transaction != nil {
		receipt.TransactionId = result.Transaction.Reference
		receipt.Status = result.Transaction.Status
		receipt.Timestamp = result.Transaction.CreatedAt
	}
	return receipt
}

func logCommitted(msg string, result *store.ApplyResult) {
	fields := []zap.Field{
		zap.String("user_id", result.UserId),
		zap.String("new_balance", result.Balance.String()),
	}
	if t := result.Transaction; t != nil {
		fields = append(fields, zap.String("kind", string(t.Kind)), zap.String("reference", t.Reference))
		if t.Amount != nil {
			fields = append(fields, zap.String("amount", t.Amount.String()))
		}
	}
	zap.L().Info(msg, fields...)
}
