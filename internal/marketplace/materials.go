package marketplace

import (
	"context"
	"fmt"
	"strconv"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"
	"circlechain-wallet-go/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type MaterialInput struct {
	Name             string
	MaterialType     models.MaterialType
	Quantity         decimal.Decimal
	PricePerKg       decimal.Decimal
	RecycleRequestId *int64
}

// CreateRawMaterial lists recycled output for sale. Only the recycler assigned
// to a recycle request may list material from it. The first material made
// from a completed request earns its consumer a recycling reward; later
// materials from the same request pay nothing.
func (s *Service) CreateRawMaterial(ctx context.Context, actor Actor, in MaterialInput) (*models.RawMaterial, error) {
	if err := requireRole(actor, models.RoleRecycler); err != nil {
		return nil, err
	}
	if !in.Quantity.IsPositive() {
		return nil, invalid("quantity must be positive")
	}
	if !in.PricePerKg.IsPositive() {
		return nil, invalid("price per kg must be positive")
	}

	var source *models.RecycleRequest
	if in.RecycleRequestId != nil {
		req, err := s.market.GetRecycleRequest(ctx, *in.RecycleRequestId)
		if err != nil {
			return nil, err
		}
		if req.RecyclerId == nil || *req.RecyclerId != actor.UserId {
			return nil, fmt.Errorf("%w: recycle request %d is not assigned to you", store.ErrForbidden, req.Id)
		}
		source = req
	}

	material, err := s.market.CreateRawMaterial(ctx, models.RawMaterial{
		Name:             in.Name,
		MaterialType:     in.MaterialType,
		Quantity:         in.Quantity,
		PricePerKg:       in.PricePerKg,
		RecyclerId:       actor.UserId,
		RecycleRequestId: in.RecycleRequestId,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, wallet.ActivityRequest{
		UserId:    actor.UserId,
		Kind:      models.KindMaterialCreated,
		RelatedId: &material.Id,
		Details:   "Created raw material: " + material.Name,
	})

	if source != nil && source.Status == models.RecycleCompleted {
		reward := RecyclingReward{
			UserId:           source.ConsumerId,
			MaterialType:     string(material.MaterialType),
			Quantity:         material.Quantity,
			RecycleRequestId: source.Id,
			MaterialId:       material.Id,
		}
		if err := s.rewards.DispatchRecyclingReward(ctx, reward); err != nil {
			zap.L().Error("Failed to dispatch recycling reward",
				zap.String("user_id", reward.UserId),
				zap.Int64("recycle_request_id", reward.RecycleRequestId),
				zap.Int64("material_id", reward.MaterialId),
				zap.Error(err))
		}
	}

	return material, nil
}

func (s *Service) ListMyMaterials(ctx context.Context, actor Actor) ([]models.RawMaterial, error) {
	if err := requireRole(actor, models.RoleRecycler); err != nil {
		return nil, err
	}
	return s.market.ListMaterialsByRecycler(ctx, actor.UserId)
}

func (s *Service) ListAvailableMaterials(ctx context.Context, actor Actor) ([]models.RawMaterial, error) {
	if err := requireRole(actor, models.RoleProducer); err != nil {
		return nil, err
	}
	return s.market.ListAvailableMaterials(ctx)
}

// PurchaseMaterial pays for quantity kg of a material and takes it out of stock.
// If the stock is gone by the time the payment commits, the payment is refunded.
func (s *Service) PurchaseMaterial(ctx context.Context, actor Actor, materialId int64, quantity decimal.Decimal) (*models.MaterialPurchase, error) {
	if err := requireRole(actor, models.RoleProducer); err != nil {
		return nil, err
	}
	if !quantity.IsPositive() {
		return nil, invalid("quantity must be positive")
	}

	material, err := s.market.GetRawMaterial(ctx, materialId)
	if err != nil {
		return nil, err
	}
	if material.Status != models.MaterialAvailable {
		return nil, store.NotFound("raw material", strconv.FormatInt(materialId, 10))
	}
	if quantity.GreaterThan(material.Quantity) {
		return nil, store.Conflict("insufficient material quantity")
	}

	total := quantity.Mul(material.PricePerKg)
	receipt, err := s.wallet.ProcessPayment(ctx, wallet.PaymentRequest{
		UserId:      actor.UserId,
		Amount:      total,
		ProductName: material.Name,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.market.ReserveMaterialStock(ctx, materialId, quantity); err != nil {
		s.refund(ctx, actor.UserId, total, material.Name)
		return nil, err
	}

	purchase, err := s.market.CreateMaterialPurchase(ctx, models.MaterialPurchase{
		Quantity:         quantity,
		TotalPrice:       total,
		ProducerId:       actor.UserId,
		MaterialId:       materialId,
		PaymentReference: receipt.TransactionId,
	})
	if err != nil {
		if restoreErr := s.market.RestoreMaterialStock(ctx, materialId, quantity); restoreErr != nil {
			zap.L().Error("Failed to restore material stock",
				zap.Int64("material_id", materialId),
				zap.String("quantity", quantity.String()),
				zap.Error(restoreErr))
		}
		s.refund(ctx, actor.UserId, total, material.Name)
		return nil, err
	}

	s.record(ctx, wallet.ActivityRequest{
		UserId:    actor.UserId,
		Kind:      models.KindMaterialPurchase,
		RelatedId: &material.Id,
		Amount:    &total,
		Details:   fmt.Sprintf("Purchased %skg of %s", quantity.String(), material.Name),
	})
	return purchase, nil
}

func (s *Service) refund(ctx context.Context, userId string, amount decimal.Decimal, name string) {
	if _, err := s.wallet.ProcessReward(ctx, wallet.RewardRequest{
		UserId: userId,
		Amount: amount,
		Reason: "Refund for " + name,
	}); err != nil {
		zap.L().Error("Failed to refund material payment",
			zap.String("user_id", userId),
			zap.String("amount", amount.String()),
			zap.Error(err))
	}
}
