package marketplace

import (
	"context"
	"strconv"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"
	"circlechain-wallet-go/internal/wallet"

	"github.com/shopspring/decimal"
)

type ProductInput struct {
	Name        string
	Description string
	Category    models.ProductCategory
	Price       decimal.Decimal
	Weight      decimal.Decimal
}

func (s *Service) CreateProduct(ctx context.Context, actor Actor, in ProductInput) (*models.Product, error) {
	if err := requireRole(actor, models.RoleProducer); err != nil {
		return nil, err
	}
	if !in.Price.IsPositive() {
		return nil, invalid("price must be positive")
	}

	product, err := s.market.CreateProduct(ctx, models.Product{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Weight:      in.Weight,
		Status:      models.ProductAvailable,
		ImpactScore: s.wallet.Rates().ImpactScore(string(in.Category), in.Weight),
		ProducerId:  actor.UserId,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, wallet.ActivityRequest{
		UserId:    actor.UserId,
		Kind:      models.KindProductCreated,
		RelatedId: &product.Id,
		Details:   "Created product: " + product.Name,
	})
	return product, nil
}

func (s *Service) ListProducerProducts(ctx context.Context, actor Actor) ([]models.Product, error) {
	if err := requireRole(actor, models.RoleProducer); err != nil {
		return nil, err
	}
	return s.market.ListProductsByProducer(ctx, actor.UserId)
}

// UpdateProduct edits an owned product and recomputes its impact score when weight or category change
func (s *Service) UpdateProduct(ctx context.Context, actor Actor, id int64, upd store.ProductUpdate) (*models.Product, error) {
	if err := requireRole(actor, models.RoleProducer); err != nil {
		return nil, err
	}
	if upd.Price != nil && !upd.Price.IsPositive() {
		return nil, invalid("price must be positive")
	}

	upd.ImpactScore = nil
	if upd.Weight != nil || upd.Category != nil {
		current, err := s.market.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.ProducerId != actor.UserId {
			return nil, store.NotFound("product", strconv.FormatInt(id, 10))
		}
		category, weight := current.Category, current.Weight
		if upd.Category != nil {
			category = *upd.Category
		}
		if upd.Weight != nil {
			weight = *upd.Weight
		}
		score := s.wallet.Rates().ImpactScore(string(category), weight)
		upd.ImpactScore = &score
	}

	return s.market.UpdateProduct(ctx, id, actor.UserId, upd)
}

func (s *Service) DeleteProduct(ctx context.Context, actor Actor, id int64) error {
	if err := requireRole(actor, models.RoleProducer); err != nil {
		return err
	}
	return s.market.DeleteProduct(ctx, id, actor.UserId)
}

// BrowseProducts lists everything still for sale
func (s *Service) BrowseProducts(ctx context.Context) ([]models.Product, error) {
	return s.market.ListAvailableProducts(ctx)
}
