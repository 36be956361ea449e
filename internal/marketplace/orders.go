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

// CreateOrder inserts a pending order, pays for it and confirms it. A failed
// payment cancels the order and returns the payment error.
func (s *Service) CreateOrder(ctx context.Context, actor Actor, productId int64, quantity int) (*models.Order, error) {
	if err := requireRole(actor, models.RoleConsumer); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, invalid("quantity must be positive")
	}

	product, err := s.market.GetProduct(ctx, productId)
	if err != nil {
		return nil, err
	}
	if product.Status != models.ProductAvailable {
		return nil, store.NotFound("product", strconv.FormatInt(productId, 10))
	}

	total := product.Price.Mul(decimal.NewFromInt(int64(quantity)))
	order, err := s.market.CreateOrder(ctx, models.Order{
		Quantity:   quantity,
		TotalPrice: total,
		Status:     models.OrderPending,
		ConsumerId: actor.UserId,
		ProductId:  productId,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := s.wallet.ProcessPayment(ctx, wallet.PaymentRequest{
		UserId:      actor.UserId,
		Amount:      total,
		ProductName: product.Name,
		ProductId:   &product.Id,
	})
	if err != nil {
		if _, cancelErr := s.market.SetOrderStatus(ctx, order.Id, models.OrderCancelled, ""); cancelErr != nil {
			zap.L().Error("Failed to cancel unpaid order",
				zap.Int64("order_id", order.Id),
				zap.Error(cancelErr))
		}
		return nil, err
	}

	confirmed, err := s.market.SetOrderStatus(ctx, order.Id, models.OrderConfirmed, receipt.TransactionId)
	if err != nil {
		// The payment is committed; the reference ties the order back to it.
		zap.L().Error("Order paid but not confirmed",
			zap.Int64("order_id", order.Id),
			zap.String("reference", receipt.TransactionId),
			zap.Error(err))
		return nil, err
	}

	s.record(ctx, wallet.ActivityRequest{
		UserId:    actor.UserId,
		Kind:      models.KindProductPurchase,
		RelatedId: &product.Id,
		Amount:    &total,
		Details:   fmt.Sprintf("Purchased %dx %s", quantity, product.Name),
	})

	zap.L().Info("Order confirmed",
		zap.Int64("order_id", confirmed.Id),
		zap.String("consumer_id", actor.UserId),
		zap.String("total", total.String()))
	return confirmed, nil
}

func (s *Service) ListOrders(ctx context.Context, actor Actor) ([]models.Order, error) {
	if err := requireRole(actor, models.RoleConsumer); err != nil {
		return nil, err
	}
	return s.market.ListOrdersByConsumer(ctx, actor.UserId)
}
