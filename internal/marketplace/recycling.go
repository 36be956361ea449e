package marketplace

import (
	"context"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/wallet"

	"github.com/shopspring/decimal"
)

type RecycleInput struct {
	ItemDescription string
	Weight          decimal.Decimal
	Category        models.ProductCategory
}

func (s *Service) SubmitRecycleRequest(ctx context.Context, actor Actor, in RecycleInput) (*models.RecycleRequest, error) {
	if err := requireRole(actor, models.RoleConsumer); err != nil {
		return nil, err
	}
	if in.Weight.IsNegative() {
		return nil, invalid("weight cannot be negative")
	}

	req, err := s.market.CreateRecycleRequest(ctx, models.RecycleRequest{
		ItemDescription: in.ItemDescription,
		Weight:          in.Weight,
		Category:        in.Category,
		ConsumerId:      actor.UserId,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, wallet.ActivityRequest{
		UserId:    actor.UserId,
		Kind:      models.KindRecycleRequest,
		RelatedId: &req.Id,
		Details:   "Submitted recycle request: " + req.ItemDescription,
	})
	return req, nil
}

func (s *Service) ListRecycleRequests(ctx context.Context, actor Actor) ([]models.RecycleRequest, error) {
	if err := requireRole(actor, models.RoleConsumer); err != nil {
		return nil, err
	}
	return s.market.ListRecycleRequestsByConsumer(ctx, actor.UserId)
}

// ListSubmittedRequests shows the queue recyclers pick work from
func (s *Service) ListSubmittedRequests(ctx context.Context) ([]models.RecycleRequest, error) {
	return s.market.ListRecycleRequestsByStatus(ctx, models.RecycleSubmitted)
}

func (s *Service) AcceptRequest(ctx context.Context, actor Actor, id int64) (*models.RecycleRequest, error) {
	if err := requireRole(actor, models.RoleRecycler); err != nil {
		return nil, err
	}

	req, err := s.market.AcceptRecycleRequest(ctx, id, actor.UserId)
	if err != nil {
		return nil, err
	}

	s.record(ctx, wallet.ActivityRequest{
		UserId:    actor.UserId,
		Kind:      models.KindRecycleAccept,
		RelatedId: &req.Id,
		Details:   "Accepted recycle request: " + req.ItemDescription,
	})
	return req, nil
}

func (s *Service) CompleteRequest(ctx context.Context, actor Actor, id int64) (*models.RecycleRequest, error) {
	if err := requireRole(actor, models.RoleRecycler); err != nil {
		return nil, err
	}

	req, err := s.market.CompleteRecycleRequest(ctx, id, actor.UserId)
	if err != nil {
		return nil, err
	}

	s.record(ctx, wallet.ActivityRequest{
		UserId:    actor.UserId,
		Kind:      models.KindRecycleComplete,
		RelatedId: &req.Id,
		Details:   "Completed recycling: " + req.ItemDescription,
	})
	return req, nil
}

func (s *Service) ListMyRequests(ctx context.Context, actor Actor) ([]models.RecycleRequest, error) {
	if err := requireRole(actor, models.RoleRecycler); err != nil {
		return nil, err
	}
	return s.market.ListRecycleRequestsByRecycler(ctx, actor.UserId)
}
