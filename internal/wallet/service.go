package wallet

import (
	"context"
	"fmt"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
)

const (
	DefaultHistoryLimit = 50
	summaryRecentCount  = 10
)

// PaymentRequest debits a user for a purchase
type PaymentRequest struct {
	UserId      string
	Amount      decimal.Decimal
	ProductName string
	ProductId   *int64
}

// RewardRequest credits a user. A non-empty Reference pays the reward at
// most once; a repeat fails with store.ErrConflict.
type RewardRequest struct {
	UserId    string
	Amount    decimal.Decimal
	Reason    string
	Reference string
}

// RecyclingRewardRequest pays the per-item rate for recycled material
type RecyclingRewardRequest struct {
	UserId       string
	MaterialType string
	Quantity     decimal.Decimal
	Reference    string
}

// ActivityRequest records a marketplace event without moving tokens
type ActivityRequest struct {
	UserId    string
	Kind      models.TransactionKind
	RelatedId *int64
	Amount    *decimal.Decimal
	Details   string
}

// Service is the wallet: the only component that changes balances
type Service interface {
	GetBalance(ctx context.Context, userId string) (*models.BalanceView, error)
	AdjustBalance(ctx context.Context, userId string, delta decimal.Decimal) (*models.BalanceView, error)
	ProcessPayment(ctx context.Context, req PaymentRequest) (*models.Receipt, error)
	ProcessReward(ctx context.Context, req RewardRequest) (*models.Receipt, error)
	ProcessRecyclingReward(ctx context.Context, req RecyclingRewardRequest) (*models.Receipt, error)
	GetTransactionHistory(ctx context.Context, userId string, limit int) (*models.TransactionHistory, error)
	GetWalletSummary(ctx context.Context, userId string) (*models.WalletSummary, error)
	RecordActivity(ctx context.Context, req ActivityRequest) (*models.Transaction, error)
	Rates() *RatePolicy
	HealthCheck(ctx context.Context) error
}

var _ Service = (*service)(nil)

type service struct {
	ledger       store.WalletStore
	rates        *RatePolicy
	historyLimit int
}

func NewService(ledger store.WalletStore, rates *RatePolicy, historyLimit int) Service {
	if rates == nil {
		rates = DefaultRatePolicy()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &service{
		ledger:       ledger,
		rates:        rates,
		historyLimit: historyLimit,
	}
}

func (s *service) Rates() *RatePolicy {
	return s.rates
}

func (s *service) HealthCheck(ctx context.Context) error {
	if err := s.ledger.Ping(ctx); err != nil {
		return fmt.Errorf("ledger health check failed: %w", err)
	}
	return nil
}
