package wallet

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"circlechain-wallet-go/internal/database"
	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T) (Service, *database.Service) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "wallet.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return NewService(db, DefaultRatePolicy(), 0), db
}

func seedUser(t *testing.T, db *database.Service, id string, balance int64) {
	t.Helper()
	_, err := db.CreateUser(context.Background(), store.CreateUserParams{
		Id:             id,
		Email:          id + "@example.com",
		Name:           id,
		PasswordHash:   "hash",
		Role:           models.RoleConsumer,
		OpeningBalance: decimal.NewFromInt(balance),
	})
	require.NoError(t, err)
}

func TestProcessPayment(t *testing.T) {
	w, db := newTestWallet(t)
	seedUser(t, db, "alice", 1000)
	ctx := context.Background()

	productId := int64(7)
	receipt, err := w.ProcessPayment(ctx, PaymentRequest{
		UserId:      "alice",
		Amount:      decimal.NewFromInt(150),
		ProductName: "Lamp",
		ProductId:   &productId,
	})
	require.NoError(t, err)

	assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(150)))
	assert.True(t, receipt.NewBalance.Equal(decimal.NewFromInt(850)))
	assert.Equal(t, "Lamp", receipt.ProductName)
	assert.Equal(t, models.TransactionStatusConfirmed, receipt.Status)
	assert.Regexp(t, `^tx_[0-9a-f]{32}$`, receipt.TransactionId)

	history, err := w.GetTransactionHistory(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)
	entry := history.Transactions[0]
	assert.Equal(t, receipt.TransactionId, entry.Id, "display id must be persisted")
	assert.Equal(t, models.KindPayment, entry.Type)
	assert.Equal(t, "Payment for Lamp", entry.Details)
	require.NotNil(t, entry.RelatedId)
	assert.Equal(t, productId, *entry.RelatedId)
	assert.True(t, history.TotalSpent.Equal(decimal.NewFromInt(150)))
}

func TestProcessPayment_Rejections(t *testing.T) {
	w, db := newTestWallet(t)
	seedUser(t, db, "alice", 100)
	ctx := context.Background()

	_, err := w.ProcessPayment(ctx, PaymentRequest{UserId: "alice", Amount: decimal.Zero, ProductName: "x"})
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = w.ProcessPayment(ctx, PaymentRequest{UserId: "alice", Amount: decimal.NewFromInt(-5), ProductName: "x"})
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = w.ProcessPayment(ctx, PaymentRequest{UserId: "ghost", Amount: decimal.NewFromInt(5), ProductName: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = w.ProcessPayment(ctx, PaymentRequest{UserId: "alice", Amount: decimal.NewFromInt(101), ProductName: "x"})
	var insufficient *store.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "insufficient balance. Current: 100, Required: 101", insufficient.Error())

	view, err := w.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(100)))

	history, err := w.GetTransactionHistory(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, history.Transactions)
}

func TestProcessPayment_ConcurrentOverspend(t *testing.T) {
	w, db := newTestWallet(t)
	seedUser(t, db, "alice", 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = w.ProcessPayment(ctx, PaymentRequest{
				UserId:      "alice",
				Amount:      decimal.NewFromInt(70),
				ProductName: "Chair",
			})
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrInsufficientFunds):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	view, err := w.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(30)))
}

func TestProcessReward(t *testing.T) {
	w, db := newTestWallet(t)
	seedUser(t, db, "bob", 10)
	ctx := context.Background()

	receipt, err := w.ProcessReward(ctx, RewardRequest{UserId: "bob", Amount: decimal.NewFromInt(25), Reason: "Bonus"})
	require.NoError(t, err)
	assert.True(t, receipt.NewBalance.Equal(decimal.NewFromInt(35)))
	assert.Equal(t, "Bonus", receipt.Reason)

	// Negative rewards are allowed but cannot overdraw
	_, err = w.ProcessReward(ctx, RewardRequest{UserId: "bob", Amount: decimal.NewFromInt(-50), Reason: "Clawback"})
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)

	receipt, err = w.ProcessReward(ctx, RewardRequest{UserId: "bob", Amount: decimal.NewFromInt(-5), Reason: "Clawback"})
	require.NoError(t, err)
	assert.True(t, receipt.NewBalance.Equal(decimal.NewFromInt(30)))

	history, err := w.GetTransactionHistory(ctx, "bob", 0)
	require.NoError(t, err)
	assert.True(t, history.TotalEarned.Equal(decimal.NewFromInt(25)), "negative rewards do not count as earned")
}

func TestProcessRecyclingReward(t *testing.T) {
	w, db := newTestWallet(t)
	seedUser(t, db, "carol", 0)
	ctx := context.Background()

	receipt, err := w.ProcessRecyclingReward(ctx, RecyclingRewardRequest{
		UserId:       "carol",
		MaterialType: "Metal",
		Quantity:     decimal.NewFromInt(4),
	})
	require.NoError(t, err)
	assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, "Recycling reward for 4 Metal items", receipt.Reason)

	receipt, err = w.ProcessRecyclingReward(ctx, RecyclingRewardRequest{
		UserId:       "carol",
		MaterialType: "unobtainium",
		Quantity:     decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(20)), "unknown materials use the default rate")

	history, err := w.GetTransactionHistory(ctx, "carol", 0)
	require.NoError(t, err)
	require.Len(t, history.Transactions, 2)
	assert.Equal(t, models.KindReward, history.Transactions[0].Type)
	assert.True(t, history.TotalEarned.Equal(decimal.NewFromInt(80)))
}

func TestAdjustBalance(t *testing.T) {
	w, db := newTestWallet(t)
	seedUser(t, db, "dave", 50)
	ctx := context.Background()

	view, err := w.AdjustBalance(ctx, "dave", decimal.NewFromInt(-50))
	require.NoError(t, err)
	assert.True(t, view.Balance.IsZero())

	_, err = w.AdjustBalance(ctx, "dave", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)

	_, err = w.AdjustBalance(ctx, "nobody", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdjustBalance_KeepsLedgerReconciled(t *testing.T) {
	w, db := newTestWallet(t)
	seedUser(t, db, "dave", 50)
	ctx := context.Background()

	_, err := w.AdjustBalance(ctx, "dave", decimal.NewFromInt(-20))
	require.NoError(t, err)

	rec, err := db.ReconcileBalance(ctx, "dave")
	require.NoError(t, err)
	assert.True(t, rec.Balanced(), "stored %s computed %s", rec.StoredBalance, rec.ComputedBalance)
	assert.True(t, rec.StoredBalance.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, int64(1), rec.EntryCount)

	history, err := w.GetTransactionHistory(ctx, "dave", 0)
	require.NoError(t, err)
	assert.Empty(t, history.Transactions)
}

func TestGetWalletSummary(t *testing.T) {
	w, db := newTestWallet(t)
	seedUser(t, db, "erin", 1000)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := w.ProcessReward(ctx, RewardRequest{UserId: "erin", Amount: decimal.NewFromInt(10), Reason: "r"})
		require.NoError(t, err)
	}
	_, err := w.ProcessPayment(ctx, PaymentRequest{UserId: "erin", Amount: decimal.NewFromInt(40), ProductName: "Desk"})
	require.NoError(t, err)
	_, err = w.RecordActivity(ctx, ActivityRequest{UserId: "erin", Kind: models.KindProductPurchase, Details: "Purchased 1x Desk"})
	require.NoError(t, err)

	summary, err := w.GetWalletSummary(ctx, "erin")
	require.NoError(t, err)
	assert.True(t, summary.Balance.Equal(decimal.NewFromInt(1080)))
	assert.True(t, summary.TotalEarned.Equal(decimal.NewFromInt(120)))
	assert.True(t, summary.TotalSpent.Equal(decimal.NewFromInt(40)))
	require.Len(t, summary.RecentTransactions, 10)
	assert.Equal(t, models.KindProductPurchase, summary.RecentTransactions[0].Type)
	assert.True(t, summary.RecentTransactions[0].Amount.IsZero())
}

func TestRecordActivity_UnknownUser(t *testing.T) {
	w, _ := newTestWallet(t)

	_, err := w.RecordActivity(context.Background(), ActivityRequest{UserId: "nobody", Kind: models.KindRecycleRequest})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessRecyclingReward_ReferencePaysOnce(t *testing.T) {
	w, db := newTestWallet(t)
	seedUser(t, db, "carol", 0)
	ctx := context.Background()

	req := RecyclingRewardRequest{
		UserId:       "carol",
		MaterialType: "Plastic",
		Quantity:     decimal.NewFromInt(2),
		Reference:    "recycling_reward:7",
	}
	receipt, err := w.ProcessRecyclingReward(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "recycling_reward:7", receipt.TransactionId)

	_, err = w.ProcessRecyclingReward(ctx, req)
	require.ErrorIs(t, err, store.ErrConflict)

	view, err := w.GetBalance(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(receipt.NewBalance), "the repeat must not credit again")

	rec, err := db.ReconcileBalance(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
}
