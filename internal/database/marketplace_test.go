package database

import (
	"context"
	"errors"
	"testing"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
)

func createTestProduct(t *testing.T, service *Service, producerId string, category models.ProductCategory, impact string) *models.Product {
	t.Helper()
	product, err := service.CreateProduct(context.Background(), models.Product{
		Name:        "Refurbished lamp",
		Description: "Desk lamp",
		Category:    category,
		Price:       decimal.NewFromInt(100),
		Weight:      decimal.NewFromInt(2),
		Status:      models.ProductAvailable,
		ImpactScore: decimal.RequireFromString(impact),
		ProducerId:  producerId,
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	return product
}

func TestProduct_UpdateOwnedByProducer(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, service, "producer1", models.CategoryElectronics, "30")

	price := decimal.NewFromInt(80)
	updated, err := service.UpdateProduct(ctx, product.Id, "producer1", store.ProductUpdate{Price: &price})
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	if !updated.Price.Equal(price) {
		t.Errorf("Expected price 80, got %s", updated.Price)
	}
	if updated.Name != product.Name {
		t.Errorf("Expected name to be kept, got %s", updated.Name)
	}

	if _, err := service.UpdateProduct(ctx, product.Id, "producer2", store.ProductUpdate{Price: &price}); !store.IsNotFound(err) {
		t.Errorf("Expected not found for foreign producer, got %v", err)
	}
}

func TestProduct_Delete(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, service, "producer1", models.CategoryOther, "5")

	if err := service.DeleteProduct(ctx, product.Id, "producer2"); !store.IsNotFound(err) {
		t.Errorf("Expected not found for foreign producer, got %v", err)
	}
	if err := service.DeleteProduct(ctx, product.Id, "producer1"); err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}
	if _, err := service.GetProduct(ctx, product.Id); !store.IsNotFound(err) {
		t.Errorf("Expected deleted product to be gone, got %v", err)
	}
}

func TestOrder_StatusTransition(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, service, "producer1", models.CategoryTextiles, "16")

	order, err := service.CreateOrder(ctx, models.Order{
		Quantity:   2,
		TotalPrice: decimal.NewFromInt(200),
		Status:     models.OrderPending,
		ConsumerId: "consumer1",
		ProductId:  product.Id,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.Status != models.OrderPending {
		t.Errorf("Expected pending order, got %s", order.Status)
	}

	confirmed, err := service.SetOrderStatus(ctx, order.Id, models.OrderConfirmed, "tx_abc")
	if err != nil {
		t.Fatalf("SetOrderStatus failed: %v", err)
	}
	if confirmed.Status != models.OrderConfirmed || confirmed.PaymentReference != "tx_abc" {
		t.Errorf("Unexpected order after confirm: %+v", confirmed)
	}

	orders, err := service.ListOrdersByConsumer(ctx, "consumer1")
	if err != nil {
		t.Fatalf("ListOrdersByConsumer failed: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("Expected 1 order, got %d", len(orders))
	}

	if _, err := service.SetOrderStatus(ctx, 999, models.OrderCancelled, ""); !store.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestRecycleRequest_Lifecycle(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	req, err := service.CreateRecycleRequest(ctx, models.RecycleRequest{
		ItemDescription: "Old bottles",
		Weight:          decimal.NewFromInt(3),
		Category:        models.CategoryPackaging,
		ConsumerId:      "consumer1",
	})
	if err != nil {
		t.Fatalf("CreateRecycleRequest failed: %v", err)
	}
	if req.Status != models.RecycleSubmitted {
		t.Errorf("Expected submitted, got %s", req.Status)
	}

	// No recycler is assigned before acceptance
	if _, err := service.CompleteRecycleRequest(ctx, req.Id, "recycler1"); !store.IsNotFound(err) {
		t.Errorf("Expected not found before acceptance, got %v", err)
	}

	accepted, err := service.AcceptRecycleRequest(ctx, req.Id, "recycler1")
	if err != nil {
		t.Fatalf("AcceptRecycleRequest failed: %v", err)
	}
	if accepted.Status != models.RecycleAccepted || accepted.RecyclerId == nil || *accepted.RecyclerId != "recycler1" {
		t.Errorf("Unexpected request after accept: %+v", accepted)
	}

	if _, err := service.AcceptRecycleRequest(ctx, req.Id, "recycler2"); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected conflict on second accept, got %v", err)
	}
	if _, err := service.CompleteRecycleRequest(ctx, req.Id, "recycler2"); !store.IsNotFound(err) {
		t.Errorf("Expected not found for other recycler, got %v", err)
	}

	completed, err := service.CompleteRecycleRequest(ctx, req.Id, "recycler1")
	if err != nil {
		t.Fatalf("CompleteRecycleRequest failed: %v", err)
	}
	if completed.Status != models.RecycleCompleted || completed.ProcessedAt == nil {
		t.Errorf("Unexpected request after complete: %+v", completed)
	}

	if _, err := service.CompleteRecycleRequest(ctx, req.Id, "recycler1"); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected conflict on second complete, got %v", err)
	}

	byRecycler, err := service.ListRecycleRequestsByRecycler(ctx, "recycler1")
	if err != nil {
		t.Fatalf("ListRecycleRequestsByRecycler failed: %v", err)
	}
	if len(byRecycler) != 1 {
		t.Errorf("Expected 1 request, got %d", len(byRecycler))
	}
}

func TestMaterialStock_ReserveAndRestore(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	material, err := service.CreateRawMaterial(ctx, models.RawMaterial{
		Name:         "PET flakes",
		MaterialType: models.MaterialPlastic,
		Quantity:     decimal.NewFromInt(10),
		PricePerKg:   decimal.NewFromInt(4),
		RecyclerId:   "recycler1",
	})
	if err != nil {
		t.Fatalf("CreateRawMaterial failed: %v", err)
	}
	if material.Status != models.MaterialAvailable {
		t.Errorf("Expected available, got %s", material.Status)
	}

	if _, err := service.ReserveMaterialStock(ctx, material.Id, decimal.NewFromInt(11)); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected conflict when over-reserving, got %v", err)
	}

	reserved, err := service.ReserveMaterialStock(ctx, material.Id, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("ReserveMaterialStock failed: %v", err)
	}
	if !reserved.Quantity.IsZero() || reserved.Status != models.MaterialSold {
		t.Errorf("Expected sold out material, got %s %s", reserved.Quantity, reserved.Status)
	}

	available, err := service.ListAvailableMaterials(ctx)
	if err != nil {
		t.Fatalf("ListAvailableMaterials failed: %v", err)
	}
	if len(available) != 0 {
		t.Errorf("Expected no available materials, got %d", len(available))
	}

	if err := service.RestoreMaterialStock(ctx, material.Id, decimal.NewFromInt(4)); err != nil {
		t.Fatalf("RestoreMaterialStock failed: %v", err)
	}
	restored, err := service.GetRawMaterial(ctx, material.Id)
	if err != nil {
		t.Fatalf("GetRawMaterial failed: %v", err)
	}
	if !restored.Quantity.Equal(decimal.NewFromInt(4)) || restored.Status != models.MaterialAvailable {
		t.Errorf("Expected 4 available after restore, got %s %s", restored.Quantity, restored.Status)
	}
}

func TestImpactSummary(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	createTestProduct(t, service, "producer1", models.CategoryElectronics, "30")
	createTestProduct(t, service, "producer1", models.CategoryElectronics, "15")
	createTestProduct(t, service, "producer2", models.CategoryPackaging, "2.5")

	summary, err := service.ImpactSummary(context.Background())
	if err != nil {
		t.Fatalf("ImpactSummary failed: %v", err)
	}
	if summary.Overall.TotalProducts != 3 {
		t.Errorf("Expected 3 products, got %d", summary.Overall.TotalProducts)
	}
	if !summary.Overall.TotalCO2Impact.Equal(decimal.RequireFromString("47.5")) {
		t.Errorf("Expected total impact 47.5, got %s", summary.Overall.TotalCO2Impact)
	}
	if len(summary.ByCategory) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(summary.ByCategory))
	}
	electronics := summary.ByCategory[0]
	if electronics.Category != models.CategoryElectronics || electronics.ProductCount != 2 ||
		!electronics.TotalImpact.Equal(decimal.NewFromInt(45)) {
		t.Errorf("Unexpected electronics row: %+v", electronics)
	}
}
