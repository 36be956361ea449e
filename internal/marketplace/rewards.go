package marketplace

import (
	"context"
	"errors"
	"fmt"

	"circlechain-wallet-go/internal/store"
	"circlechain-wallet-go/internal/wallet"

	"go.uber.org/zap"
)

// RecyclingRewardReference is the ledger reference of the reward for a
// recycle request. Every payment path uses it, so a request pays once.
func RecyclingRewardReference(recycleRequestId int64) string {
	return fmt.Sprintf("recycling_reward:%d", recycleRequestId)
}

// WalletRequest is the wallet call that pays the reward
func (r RecyclingReward) WalletRequest() wallet.RecyclingRewardRequest {
	return wallet.RecyclingRewardRequest{
		UserId:       r.UserId,
		MaterialType: r.MaterialType,
		Quantity:     r.Quantity,
		Reference:    RecyclingRewardReference(r.RecycleRequestId),
	}
}

// InlineRewards pays recycling rewards synchronously through the wallet
type InlineRewards struct {
	wallet wallet.Service
}

func NewInlineRewards(w wallet.Service) *InlineRewards {
	return &InlineRewards{wallet: w}
}

func (r *InlineRewards) DispatchRecyclingReward(ctx context.Context, reward RecyclingReward) error {
	receipt, err := r.wallet.ProcessRecyclingReward(ctx, reward.WalletRequest())
	if errors.Is(err, store.ErrConflict) {
		zap.L().Info("Recycling reward already paid",
			zap.String("user_id", reward.UserId),
			zap.Int64("recycle_request_id", reward.RecycleRequestId))
		return nil
	}
	if err != nil {
		return err
	}
	zap.L().Info("Recycling reward paid",
		zap.String("user_id", reward.UserId),
		zap.Int64("recycle_request_id", reward.RecycleRequestId),
		zap.String("reference", receipt.TransactionId))
	return nil
}
