package marketplace

import (
	"context"
	"fmt"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"
	"circlechain-wallet-go/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Actor is the authenticated caller of a marketplace operation
type Actor struct {
	UserId string
	Role   models.Role
}

// RecyclingReward is a reward owed to a consumer whose recycled items became raw material
type RecyclingReward struct {
	UserId           string          `json:"user_id"`
	MaterialType     string          `json:"material_type"`
	Quantity         decimal.Decimal `json:"quantity"`
	RecycleRequestId int64           `json:"recycle_request_id"`
	MaterialId       int64           `json:"material_id"`
}

// RewardDispatcher delivers recycling rewards, either inline or through a job queue
type RewardDispatcher interface {
	DispatchRecyclingReward(ctx context.Context, reward RecyclingReward) error
}

type Service struct {
	market  store.MarketStore
	wallet  wallet.Service
	rewards RewardDispatcher
}

func NewService(market store.MarketStore, w wallet.Service, rewards RewardDispatcher) *Service {
	if rewards == nil {
		rewards = NewInlineRewards(w)
	}
	return &Service{
		market:  market,
		wallet:  w,
		rewards: rewards,
	}
}

func requireRole(actor Actor, role models.Role) error {
	if actor.Role != role {
		return fmt.Errorf("%w: %s role required", store.ErrForbidden, role)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{store.ErrInvalidAmount}, args...)...)
}

// record appends an audit entry; a failure is logged but does not undo the operation
func (s *Service) record(ctx context.Context, req wallet.ActivityRequest) {
	if _, err := s.wallet.RecordActivity(ctx, req); err != nil {
		zap.L().Error("Failed to record marketplace activity",
			zap.String("user_id", req.UserId),
			zap.String("kind", string(req.Kind)),
			zap.Error(err))
	}
}

// ImpactSummary is the admin environmental report
func (s *Service) ImpactSummary(ctx context.Context, actor Actor) (*models.ImpactSummary, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.market.ImpactSummary(ctx)
}
