package marketplace

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"circlechain-wallet-go/internal/database"
	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"
	"circlechain-wallet-go/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	rewards []RecyclingReward
}

func (d *recordingDispatcher) DispatchRecyclingReward(_ context.Context, reward RecyclingReward) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rewards = append(d.rewards, reward)
	return nil
}

type fixture struct {
	db     *database.Service
	wallet wallet.Service
	market *Service

	producer Actor
	consumer Actor
	recycler Actor
	admin    Actor
}

func newFixture(t *testing.T, dispatcher RewardDispatcher) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "market.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	w := wallet.NewService(db, wallet.DefaultRatePolicy(), 0)
	f := &fixture{
		db:       db,
		wallet:   w,
		market:   NewService(db, w, dispatcher),
		producer: Actor{UserId: "producer", Role: models.RoleProducer},
		consumer: Actor{UserId: "consumer", Role: models.RoleConsumer},
		recycler: Actor{UserId: "recycler", Role: models.RoleRecycler},
		admin:    Actor{UserId: "admin", Role: models.RoleAdmin},
	}
	for _, a := range []Actor{f.producer, f.consumer, f.recycler, f.admin} {
		_, err := db.CreateUser(ctx, store.CreateUserParams{
			Id:             a.UserId,
			Email:          a.UserId + "@example.com",
			Name:           a.UserId,
			PasswordHash:   "hash",
			Role:           a.Role,
			OpeningBalance: decimal.NewFromInt(1000),
		})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) balance(t *testing.T, userId string) decimal.Decimal {
	t.Helper()
	view, err := f.wallet.GetBalance(context.Background(), userId)
	require.NoError(t, err)
	return view.Balance
}

func TestCreateProduct(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	product, err := f.market.CreateProduct(ctx, f.producer, ProductInput{
		Name:     "Laptop",
		Category: models.CategoryElectronics,
		Price:    decimal.NewFromInt(300),
		Weight:   decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.True(t, product.ImpactScore.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, models.ProductAvailable, product.Status)

	_, err = f.market.CreateProduct(ctx, f.consumer, ProductInput{Name: "x", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, store.ErrForbidden)

	_, err = f.market.CreateProduct(ctx, f.producer, ProductInput{Name: "x", Price: decimal.Zero})
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	history, err := f.wallet.GetTransactionHistory(ctx, f.producer.UserId, 0)
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, models.KindProductCreated, history.Transactions[0].Type)
	assert.Equal(t, "Created product: Laptop", history.Transactions[0].Details)
	assert.True(t, f.balance(t, f.producer.UserId).Equal(decimal.NewFromInt(1000)))
}

func TestUpdateProduct_RecomputesImpact(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	product, err := f.market.CreateProduct(ctx, f.producer, ProductInput{
		Name:     "Shirt",
		Category: models.CategoryTextiles,
		Price:    decimal.NewFromInt(20),
		Weight:   decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	weight := decimal.NewFromInt(3)
	updated, err := f.market.UpdateProduct(ctx, f.producer, product.Id, store.ProductUpdate{Weight: &weight})
	require.NoError(t, err)
	assert.True(t, updated.ImpactScore.Equal(decimal.NewFromInt(24)))

	other := Actor{UserId: "someone-else", Role: models.RoleProducer}
	_, err = f.market.UpdateProduct(ctx, other, product.Id, store.ProductUpdate{Weight: &weight})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateOrder_Confirmed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	product, err := f.market.CreateProduct(ctx, f.producer, ProductInput{
		Name: "Chair", Category: models.CategoryFurniture, Price: decimal.NewFromInt(150), Weight: decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	order, err := f.market.CreateOrder(ctx, f.consumer, product.Id, 2)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, order.Status)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(300)))
	assert.NotEmpty(t, order.PaymentReference)
	assert.True(t, f.balance(t, f.consumer.UserId).Equal(decimal.NewFromInt(700)))

	history, err := f.wallet.GetTransactionHistory(ctx, f.consumer.UserId, 0)
	require.NoError(t, err)
	require.Len(t, history.Transactions, 2)
	assert.Equal(t, models.KindProductPurchase, history.Transactions[0].Type)
	assert.Equal(t, "Purchased 2x Chair", history.Transactions[0].Details)
	assert.Equal(t, order.PaymentReference, history.Transactions[1].Id)
	assert.True(t, history.TotalSpent.Equal(decimal.NewFromInt(300)))
}

func TestCreateOrder_InsufficientFundsCancels(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	product, err := f.market.CreateProduct(ctx, f.producer, ProductInput{
		Name: "Sofa", Category: models.CategoryFurniture, Price: decimal.NewFromInt(600), Weight: decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	_, err = f.market.CreateOrder(ctx, f.consumer, product.Id, 2)
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)

	orders, err := f.market.ListOrders(ctx, f.consumer)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderCancelled, orders[0].Status)
	assert.True(t, f.balance(t, f.consumer.UserId).Equal(decimal.NewFromInt(1000)))
}

func TestCreateOrder_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.market.CreateOrder(ctx, f.producer, 1, 1)
	assert.ErrorIs(t, err, store.ErrForbidden)

	_, err = f.market.CreateOrder(ctx, f.consumer, 1, 0)
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = f.market.CreateOrder(ctx, f.consumer, 999, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecyclingFlow_RewardsConsumer(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	f := newFixture(t, dispatcher)
	ctx := context.Background()

	req, err := f.market.SubmitRecycleRequest(ctx, f.consumer, RecycleInput{
		ItemDescription: "Bag of cans",
		Weight:          decimal.NewFromInt(2),
		Category:        models.CategoryPackaging,
	})
	require.NoError(t, err)

	submitted, err := f.market.ListSubmittedRequests(ctx)
	require.NoError(t, err)
	require.Len(t, submitted, 1)

	_, err = f.market.AcceptRequest(ctx, f.recycler, req.Id)
	require.NoError(t, err)
	_, err = f.market.AcceptRequest(ctx, f.recycler, req.Id)
	assert.ErrorIs(t, err, store.ErrConflict)

	completed, err := f.market.CompleteRequest(ctx, f.recycler, req.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RecycleCompleted, completed.Status)

	material, err := f.market.CreateRawMaterial(ctx, f.recycler, MaterialInput{
		Name:             "Aluminium",
		MaterialType:     models.MaterialMetal,
		Quantity:         decimal.NewFromInt(3),
		PricePerKg:       decimal.NewFromInt(2),
		RecycleRequestId: &req.Id,
	})
	require.NoError(t, err)

	require.Len(t, dispatcher.rewards, 1)
	reward := dispatcher.rewards[0]
	assert.Equal(t, f.consumer.UserId, reward.UserId)
	assert.Equal(t, "metal", reward.MaterialType)
	assert.True(t, reward.Quantity.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, material.Id, reward.MaterialId)
}

func TestCreateRawMaterial_InlineReward(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	req, err := f.market.SubmitRecycleRequest(ctx, f.consumer, RecycleInput{ItemDescription: "Bottles", Category: models.CategoryPackaging})
	require.NoError(t, err)
	_, err = f.market.AcceptRequest(ctx, f.recycler, req.Id)
	require.NoError(t, err)

	// Not completed yet: no reward
	_, err = f.market.CreateRawMaterial(ctx, f.recycler, MaterialInput{
		Name: "PET", MaterialType: models.MaterialPlastic, Quantity: decimal.NewFromInt(5), PricePerKg: decimal.NewFromInt(1), RecycleRequestId: &req.Id,
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, f.consumer.UserId).Equal(decimal.NewFromInt(1000)))

	_, err = f.market.CompleteRequest(ctx, f.recycler, req.Id)
	require.NoError(t, err)
	_, err = f.market.CreateRawMaterial(ctx, f.recycler, MaterialInput{
		Name: "PET", MaterialType: models.MaterialPlastic, Quantity: decimal.NewFromInt(5), PricePerKg: decimal.NewFromInt(1), RecycleRequestId: &req.Id,
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, f.consumer.UserId).Equal(decimal.NewFromInt(1050)))

	// A second batch from the same request is listed but pays no second reward
	_, err = f.market.CreateRawMaterial(ctx, f.recycler, MaterialInput{
		Name: "PET flakes", MaterialType: models.MaterialPlastic, Quantity: decimal.NewFromInt(5), PricePerKg: decimal.NewFromInt(1), RecycleRequestId: &req.Id,
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, f.consumer.UserId).Equal(decimal.NewFromInt(1050)))

	rec, err := f.db.ReconcileBalance(ctx, f.consumer.UserId)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)

	missing := int64(999)
	_, err = f.market.CreateRawMaterial(ctx, f.recycler, MaterialInput{
		Name: "PET", MaterialType: models.MaterialPlastic, Quantity: decimal.NewFromInt(1), PricePerKg: decimal.NewFromInt(1), RecycleRequestId: &missing,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateRawMaterial_OnlyAssignedRecycler(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	f := newFixture(t, dispatcher)
	ctx := context.Background()

	other := Actor{UserId: "other-recycler", Role: models.RoleRecycler}
	_, err := f.db.CreateUser(ctx, store.CreateUserParams{
		Id:           other.UserId,
		Email:        "other-recycler@example.com",
		Name:         "Other",
		PasswordHash: "hash",
		Role:         other.Role,
	})
	require.NoError(t, err)

	req, err := f.market.SubmitRecycleRequest(ctx, f.consumer, RecycleInput{ItemDescription: "Jars", Category: models.CategoryPackaging})
	require.NoError(t, err)

	in := MaterialInput{
		Name: "Cullet", MaterialType: models.MaterialGlass, Quantity: decimal.NewFromInt(10), PricePerKg: decimal.NewFromInt(1), RecycleRequestId: &req.Id,
	}

	// Unassigned request
	_, err = f.market.CreateRawMaterial(ctx, f.recycler, in)
	assert.ErrorIs(t, err, store.ErrForbidden)

	_, err = f.market.AcceptRequest(ctx, f.recycler, req.Id)
	require.NoError(t, err)
	_, err = f.market.CompleteRequest(ctx, f.recycler, req.Id)
	require.NoError(t, err)

	_, err = f.market.CreateRawMaterial(ctx, other, in)
	assert.ErrorIs(t, err, store.ErrForbidden)
	assert.Empty(t, dispatcher.rewards)

	mine, err := f.market.ListMyMaterials(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.True(t, f.balance(t, f.consumer.UserId).Equal(decimal.NewFromInt(1000)))
}

func TestPurchaseMaterial(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	material, err := f.market.CreateRawMaterial(ctx, f.recycler, MaterialInput{
		Name: "Copper", MaterialType: models.MaterialMetal, Quantity: decimal.NewFromInt(10), PricePerKg: decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	_, err = f.market.PurchaseMaterial(ctx, f.producer, material.Id, decimal.NewFromInt(11))
	assert.ErrorIs(t, err, store.ErrConflict)

	purchase, err := f.market.PurchaseMaterial(ctx, f.producer, material.Id, decimal.NewFromInt(4))
	require.NoError(t, err)
	assert.True(t, purchase.TotalPrice.Equal(decimal.NewFromInt(120)))
	assert.NotEmpty(t, purchase.PaymentReference)
	assert.True(t, f.balance(t, f.producer.UserId).Equal(decimal.NewFromInt(880)))

	remaining, err := f.db.GetRawMaterial(ctx, material.Id)
	require.NoError(t, err)
	assert.True(t, remaining.Quantity.Equal(decimal.NewFromInt(6)))

	// 6kg at 30 costs 180, which the producer can afford; the stock then sells out
	_, err = f.market.PurchaseMaterial(ctx, f.producer, material.Id, decimal.NewFromInt(6))
	require.NoError(t, err)
	_, err = f.market.PurchaseMaterial(ctx, f.producer, material.Id, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPurchaseMaterial_InsufficientFunds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	material, err := f.market.CreateRawMaterial(ctx, f.recycler, MaterialInput{
		Name: "Gold", MaterialType: models.MaterialMetal, Quantity: decimal.NewFromInt(10), PricePerKg: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	_, err = f.market.PurchaseMaterial(ctx, f.producer, material.Id, decimal.NewFromInt(3))
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)

	untouched, err := f.db.GetRawMaterial(ctx, material.Id)
	require.NoError(t, err)
	assert.True(t, untouched.Quantity.Equal(decimal.NewFromInt(10)))
}

func TestImpactSummary_AdminOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.market.CreateProduct(ctx, f.producer, ProductInput{
		Name: "Box", Category: models.CategoryPackaging, Price: decimal.NewFromInt(1), Weight: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	_, err = f.market.ImpactSummary(ctx, f.consumer)
	assert.ErrorIs(t, err, store.ErrForbidden)

	summary, err := f.market.ImpactSummary(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Overall.TotalProducts)
	assert.True(t, summary.Overall.TotalCO2Impact.Equal(decimal.NewFromInt(5)))
}
