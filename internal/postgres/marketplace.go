package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Products ---

func (s *Service) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	product, err := scanProduct(s.pool.QueryRow(ctx, queryInsertProduct,
		p.Name, p.Description, string(p.Category), p.Price.String(), p.Weight.String(),
		p.Status, p.ImpactScore.String(), p.ProducerId))
	if err != nil {
		return nil, store.StoreFailure("insert product", err)
	}
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return one(s.pool.QueryRow(ctx, queryGetProduct, id), scanProduct, "product", id)
}

func (s *Service) ListProductsByProducer(ctx context.Context, producerId string) ([]models.Product, error) {
	return list(ctx, s, "products", scanProduct, queryListProductsByProducer, producerId)
}

func (s *Service) ListAvailableProducts(ctx context.Context) ([]models.Product, error) {
	return list(ctx, s, "products", scanProduct, queryListAvailableProducts)
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, producerId string, upd store.ProductUpdate) (*models.Product, error) {
	var category *string
	if upd.Category != nil {
		c := string(*upd.Category)
		category = &c
	}
	return one(s.pool.QueryRow(ctx, queryUpdateProduct, id, producerId,
		upd.Name, upd.Description, category, decimalParam(upd.Price), decimalParam(upd.Weight),
		upd.Status, decimalParam(upd.ImpactScore)), scanProduct, "product", id)
}

func (s *Service) DeleteProduct(ctx context.Context, id int64, producerId string) error {
	tag, err := s.pool.Exec(ctx, queryDeleteProduct, id, producerId)
	if err != nil {
		return store.StoreFailure("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return store.NotFound("product", strconv.FormatInt(id, 10))
	}
	return nil
}

// --- Orders ---

func (s *Service) CreateOrder(ctx context.Context, o models.Order) (*models.Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, queryInsertOrder,
		o.Quantity, o.TotalPrice.String(), o.Status, o.ConsumerId, o.ProductId, o.PaymentReference))
	if err != nil {
		return nil, store.StoreFailure("insert order", err)
	}
	return order, nil
}

func (s *Service) SetOrderStatus(ctx context.Context, id int64, status, paymentReference string) (*models.Order, error) {
	return one(s.pool.QueryRow(ctx, queryUpdateOrderStatus, status, paymentReference, id), scanOrder, "order", id)
}

func (s *Service) ListOrdersByConsumer(ctx context.Context, consumerId string) ([]models.Order, error) {
	return list(ctx, s, "orders", scanOrder, queryListOrdersByConsumer, consumerId)
}

// --- Recycle requests ---

func (s *Service) CreateRecycleRequest(ctx context.Context, r models.RecycleRequest) (*models.RecycleRequest, error) {
	req, err := scanRecycleRequest(s.pool.QueryRow(ctx, queryInsertRecycleRequest,
		r.ItemDescription, r.Weight.String(), string(r.Category), r.ConsumerId))
	if err != nil {
		return nil, store.StoreFailure("insert recycle request", err)
	}
	return req, nil
}

func (s *Service) GetRecycleRequest(ctx context.Context, id int64) (*models.RecycleRequest, error) {
	return one(s.pool.QueryRow(ctx, queryGetRecycleRequest, id), scanRecycleRequest, "recycle request", id)
}

func (s *Service) ListRecycleRequestsByStatus(ctx context.Context, status string) ([]models.RecycleRequest, error) {
	return list(ctx, s, "recycle requests", scanRecycleRequest, queryListRecycleByStatus, status)
}

func (s *Service) ListRecycleRequestsByConsumer(ctx context.Context, consumerId string) ([]models.RecycleRequest, error) {
	return list(ctx, s, "recycle requests", scanRecycleRequest, queryListRecycleByConsumer, consumerId)
}

func (s *Service) ListRecycleRequestsByRecycler(ctx context.Context, recyclerId string) ([]models.RecycleRequest, error) {
	return list(ctx, s, "recycle requests", scanRecycleRequest, queryListRecycleByRecycler, recyclerId)
}

func (s *Service) AcceptRecycleRequest(ctx context.Context, id int64, recyclerId string) (*models.RecycleRequest, error) {
	req, err := scanRecycleRequest(s.pool.QueryRow(ctx, queryAcceptRecycleRequest, recyclerId, id))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetRecycleRequest(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.Conflict("request already processed")
	}
	if err != nil {
		return nil, store.StoreFailure("accept recycle request", err)
	}
	return req, nil
}

func (s *Service) CompleteRecycleRequest(ctx context.Context, id int64, recyclerId string) (*models.RecycleRequest, error) {
	req, err := scanRecycleRequest(s.pool.QueryRow(ctx, queryCompleteRecycleRequest, id, recyclerId))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := s.GetRecycleRequest(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.RecyclerId == nil || *existing.RecyclerId != recyclerId {
			return nil, store.NotFound("recycle request", strconv.FormatInt(id, 10))
		}
		return nil, store.Conflict(fmt.Sprintf("request is %s", existing.Status))
	}
	if err != nil {
		return nil, store.StoreFailure("complete recycle request", err)
	}
	return req, nil
}

// --- Raw materials ---

func (s *Service) CreateRawMaterial(ctx context.Context, m models.RawMaterial) (*models.RawMaterial, error) {
	material, err := scanMaterial(s.pool.QueryRow(ctx, queryInsertMaterial,
		m.Name, string(m.MaterialType), m.Quantity.String(), m.PricePerKg.String(), m.RecyclerId, m.RecycleRequestId))
	if err != nil {
		return nil, store.StoreFailure("insert raw material", err)
	}
	return material, nil
}

func (s *Service) GetRawMaterial(ctx context.Context, id int64) (*models.RawMaterial, error) {
	return one(s.pool.QueryRow(ctx, queryGetMaterial, id), scanMaterial, "raw material", id)
}

func (s *Service) ListAvailableMaterials(ctx context.Context) ([]models.RawMaterial, error) {
	return list(ctx, s, "raw materials", scanMaterial, queryListAvailableMaterials)
}

func (s *Service) ListMaterialsByRecycler(ctx context.Context, recyclerId string) ([]models.RawMaterial, error) {
	return list(ctx, s, "raw materials", scanMaterial, queryListMaterialsByRecycler, recyclerId)
}

// ReserveMaterialStock decrements in one conditional UPDATE, the same way debits do.
func (s *Service) ReserveMaterialStock(ctx context.Context, id int64, quantity decimal.Decimal) (*models.RawMaterial, error) {
	material, err := scanMaterial(s.pool.QueryRow(ctx, queryReserveMaterial, quantity.String(), id))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := s.GetRawMaterial(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Status != models.MaterialAvailable {
			return nil, store.NotFound("raw material", strconv.FormatInt(id, 10))
		}
		return nil, store.Conflict("insufficient material quantity")
	}
	if err != nil {
		return nil, store.StoreFailure("reserve material stock", err)
	}
	return material, nil
}

func (s *Service) RestoreMaterialStock(ctx context.Context, id int64, quantity decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx, queryRestoreMaterial, quantity.String(), id)
	if err != nil {
		return store.StoreFailure("restore material stock", err)
	}
	if tag.RowsAffected() == 0 {
		return store.NotFound("raw material", strconv.FormatInt(id, 10))
	}
	return nil
}

func (s *Service) CreateMaterialPurchase(ctx context.Context, p models.MaterialPurchase) (*models.MaterialPurchase, error) {
	var (
		purchase        models.MaterialPurchase
		quantity, total string
	)
	err := s.pool.QueryRow(ctx, queryInsertMaterialPurchase,
		p.Quantity.String(), p.TotalPrice.String(), p.ProducerId, p.MaterialId, p.PaymentReference).
		Scan(&purchase.Id, &quantity, &total, &purchase.ProducerId, &purchase.MaterialId,
			&purchase.PaymentReference, &purchase.CreatedAt)
	if err != nil {
		return nil, store.StoreFailure("insert material purchase", err)
	}
	if purchase.Quantity, err = parseNumeric(quantity); err != nil {
		return nil, err
	}
	if purchase.TotalPrice, err = parseNumeric(total); err != nil {
		return nil, err
	}
	return &purchase, nil
}

// --- Reporting ---

func (s *Service) ImpactSummary(ctx context.Context) (*models.ImpactSummary, error) {
	summary := &models.ImpactSummary{ByCategory: []models.CategoryImpact{}}

	var total string
	err := s.pool.QueryRow(ctx, queryOverallImpact).Scan(&summary.Overall.TotalProducts,
		&summary.Overall.TotalOrders, &summary.Overall.TotalRecycleRequests, &total)
	if err != nil {
		return nil, store.StoreFailure("query impact overview", err)
	}
	if summary.Overall.TotalCO2Impact, err = parseNumeric(total); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, queryImpactByCategory)
	if err != nil {
		return nil, store.StoreFailure("query impact by category", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row           models.CategoryImpact
			category, sum string
		)
		if err := rows.Scan(&category, &sum, &row.ProductCount); err != nil {
			return nil, store.StoreFailure("scan impact row", err)
		}
		row.Category = models.ProductCategory(category)
		if row.TotalImpact, err = parseNumeric(sum); err != nil {
			return nil, err
		}
		summary.ByCategory = append(summary.ByCategory, row)
	}
	if err := rows.Err(); err != nil {
		return nil, store.StoreFailure("iterate impact rows", err)
	}
	return summary, nil
}

// --- scanning ---

func one[T any](row pgx.Row, scan func(pgx.Row) (*T, error), what string, id int64) (*T, error) {
	item, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound(what, strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, store.StoreFailure("query "+what, err)
	}
	return item, nil
}

func list[T any](ctx context.Context, s *Service, what string, scan func(pgx.Row) (*T, error), query string, args ...any) ([]T, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.StoreFailure("query "+what, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, store.StoreFailure("scan "+what, err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.StoreFailure("iterate "+what, err)
	}
	return items, nil
}

func decimalParam(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseNumerics(pairs map[*decimal.Decimal]string) error {
	for dst, raw := range pairs {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("failed to parse numeric %q: %w", raw, err)
		}
		*dst = d
	}
	return nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		p                     models.Product
		category              string
		price, weight, impact string
	)
	err := row.Scan(&p.Id, &p.Name, &p.Description, &category, &price, &weight,
		&p.Status, &impact, &p.ProducerId, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Category = models.ProductCategory(category)
	err = parseNumerics(map[*decimal.Decimal]string{&p.Price: price, &p.Weight: weight, &p.ImpactScore: impact})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o     models.Order
		total string
	)
	err := row.Scan(&o.Id, &o.Quantity, &total, &o.Status, &o.ConsumerId, &o.ProductId, &o.PaymentReference, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := parseNumerics(map[*decimal.Decimal]string{&o.TotalPrice: total}); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanRecycleRequest(row pgx.Row) (*models.RecycleRequest, error) {
	var (
		r        models.RecycleRequest
		weight   string
		category string
	)
	err := row.Scan(&r.Id, &r.ItemDescription, &weight, &category, &r.Status, &r.ConsumerId,
		&r.RecyclerId, &r.CreatedAt, &r.ProcessedAt)
	if err != nil {
		return nil, err
	}
	r.Category = models.ProductCategory(category)
	if err := parseNumerics(map[*decimal.Decimal]string{&r.Weight: weight}); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanMaterial(row pgx.Row) (*models.RawMaterial, error) {
	var (
		m               models.RawMaterial
		materialType    string
		quantity, price string
	)
	err := row.Scan(&m.Id, &m.Name, &materialType, &quantity, &price, &m.Status,
		&m.RecyclerId, &m.RecycleRequestId, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.MaterialType = models.MaterialType(materialType)
	if err := parseNumerics(map[*decimal.Decimal]string{&m.Quantity: quantity, &m.PricePerKg: price}); err != nil {
		return nil, err
	}
	return &m, nil
}
