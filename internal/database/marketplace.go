package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Products ---

func (s *Service) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	now := time.Now().UTC()
	product, err := scanProduct(s.db.QueryRowContext(ctx, queryInsertProduct,
		p.Name, p.Description, string(p.Category), p.Price.String(), p.Weight.String(),
		p.Status, p.ImpactScore.String(), p.ProducerId, now, now))
	if err != nil {
		return nil, store.StoreFailure("insert product", err)
	}
	zap.L().Info("Product created",
		zap.Int64("product_id", product.Id),
		zap.String("producer_id", product.ProducerId))
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, queryGetProduct, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("product", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, store.StoreFailure("query product", err)
	}
	return product, nil
}

func (s *Service) ListProductsByProducer(ctx context.Context, producerId string) ([]models.Product, error) {
	return queryList(ctx, s.db, "products", scanProduct, queryListProductsByProducer, producerId)
}

func (s *Service) ListAvailableProducts(ctx context.Context) ([]models.Product, error) {
	return queryList(ctx, s.db, "products", scanProduct, queryListAvailableProducts)
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, producerId string, upd store.ProductUpdate) (*models.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.StoreFailure("begin transaction", err)
	}
	defer tx.Rollback()

	current, err := scanProduct(tx.QueryRowContext(ctx, queryGetProduct, id))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && current.ProducerId != producerId) {
		return nil, store.NotFound("product", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, store.StoreFailure("query product", err)
	}

	applyProductUpdate(current, upd)

	updated, err := scanProduct(tx.QueryRowContext(ctx, queryUpdateProduct,
		current.Name, current.Description, string(current.Category), current.Price.String(),
		current.Weight.String(), current.Status, current.ImpactScore.String(), time.Now().UTC(),
		id, producerId))
	if err != nil {
		return nil, store.StoreFailure("update product", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.StoreFailure("commit transaction", err)
	}
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64, producerId string) error {
	result, err := s.db.ExecContext(ctx, queryDeleteProduct, id, producerId)
	if err != nil {
		return store.StoreFailure("delete product", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return store.StoreFailure("delete product", err)
	}
	if n == 0 {
		return store.NotFound("product", strconv.FormatInt(id, 10))
	}
	return nil
}

func applyProductUpdate(p *models.Product, upd store.ProductUpdate) {
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Weight != nil {
		p.Weight = *upd.Weight
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.ImpactScore != nil {
		p.ImpactScore = *upd.ImpactScore
	}
}

// --- Orders ---

func (s *Service) CreateOrder(ctx context.Context, o models.Order) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, queryInsertOrder,
		o.Quantity, o.TotalPrice.String(), o.Status, o.ConsumerId, o.ProductId, o.PaymentReference, time.Now().UTC()))
	if err != nil {
		return nil, store.StoreFailure("insert order", err)
	}
	return order, nil
}

func (s *Service) SetOrderStatus(ctx context.Context, id int64, status, paymentReference string) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, queryUpdateOrderStatus, status, paymentReference, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("order", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, store.StoreFailure("update order", err)
	}
	return order, nil
}

func (s *Service) ListOrdersByConsumer(ctx context.Context, consumerId string) ([]models.Order, error) {
	return queryList(ctx, s.db, "orders", scanOrder, queryListOrdersByConsumer, consumerId)
}

// --- Recycle requests ---

func (s *Service) CreateRecycleRequest(ctx context.Context, r models.RecycleRequest) (*models.RecycleRequest, error) {
	req, err := scanRecycleRequest(s.db.QueryRowContext(ctx, queryInsertRecycleRequest,
		r.ItemDescription, r.Weight.String(), string(r.Category), models.RecycleSubmitted, r.ConsumerId, time.Now().UTC()))
	if err != nil {
		return nil, store.StoreFailure("insert recycle request", err)
	}
	return req, nil
}

func (s *Service) GetRecycleRequest(ctx context.Context, id int64) (*models.RecycleRequest, error) {
	req, err := scanRecycleRequest(s.db.QueryRowContext(ctx, queryGetRecycleRequest, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("recycle request", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, store.StoreFailure("query recycle request", err)
	}
	return req, nil
}

func (s *Service) ListRecycleRequestsByStatus(ctx context.Context, status string) ([]models.RecycleRequest, error) {
	return queryList(ctx, s.db, "recycle requests", scanRecycleRequest, queryListRecycleByStatus, status)
}

func (s *Service) ListRecycleRequestsByConsumer(ctx context.Context, consumerId string) ([]models.RecycleRequest, error) {
	return queryList(ctx, s.db, "recycle requests", scanRecycleRequest, queryListRecycleByConsumer, consumerId)
}

func (s *Service) ListRecycleRequestsByRecycler(ctx context.Context, recyclerId string) ([]models.RecycleRequest, error) {
	return queryList(ctx, s.db, "recycle requests", scanRecycleRequest, queryListRecycleByRecycler, recyclerId)
}

func (s *Service) AcceptRecycleRequest(ctx context.Context, id int64, recyclerId string) (*models.RecycleRequest, error) {
	req, err := scanRecycleRequest(s.db.QueryRowContext(ctx, queryAcceptRecycleRequest, recyclerId, id))
	if errors.Is(err, sql.ErrNoRows) {
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
	req, err := scanRecycleRequest(s.db.QueryRowContext(ctx, queryCompleteRecycleRequest, time.Now().UTC(), id, recyclerId))
	if errors.Is(err, sql.ErrNoRows) {
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
	var requestId any
	if m.RecycleRequestId != nil {
		requestId = *m.RecycleRequestId
	}
	material, err := scanMaterial(s.db.QueryRowContext(ctx, queryInsertMaterial,
		m.Name, string(m.MaterialType), m.Quantity.String(), m.PricePerKg.String(),
		models.MaterialAvailable, m.RecyclerId, requestId, time.Now().UTC()))
	if err != nil {
		return nil, store.StoreFailure("insert raw material", err)
	}
	return material, nil
}

func (s *Service) GetRawMaterial(ctx context.Context, id int64) (*models.RawMaterial, error) {
	material, err := scanMaterial(s.db.QueryRowContext(ctx, queryGetMaterial, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("raw material", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, store.StoreFailure("query raw material", err)
	}
	return material, nil
}

func (s *Service) ListAvailableMaterials(ctx context.Context) ([]models.RawMaterial, error) {
	return queryList(ctx, s.db, "raw materials", scanMaterial, queryListAvailableMaterials)
}

func (s *Service) ListMaterialsByRecycler(ctx context.Context, recyclerId string) ([]models.RawMaterial, error) {
	return queryList(ctx, s.db, "raw materials", scanMaterial, queryListMaterialsByRecycler, recyclerId)
}

func (s *Service) ReserveMaterialStock(ctx context.Context, id int64, quantity decimal.Decimal) (*models.RawMaterial, error) {
	return s.adjustMaterialStock(ctx, id, quantity.Neg())
}

func (s *Service) RestoreMaterialStock(ctx context.Context, id int64, quantity decimal.Decimal) error {
	_, err := s.adjustMaterialStock(ctx, id, quantity)
	return err
}

func (s *Service) adjustMaterialStock(ctx context.Context, id int64, delta decimal.Decimal) (*models.RawMaterial, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.StoreFailure("begin transaction", err)
	}
	defer tx.Rollback()

	material, err := scanMaterial(tx.QueryRowContext(ctx, queryGetMaterial, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("raw material", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, store.StoreFailure("query raw material", err)
	}

	remaining, status, err := nextStock(material, delta)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, queryUpdateMaterialStock, remaining.String(), status, id); err != nil {
		return nil, store.StoreFailure("update material stock", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, store.StoreFailure("commit transaction", err)
	}

	material.Quantity = remaining
	material.Status = status
	return material, nil
}

// nextStock applies a stock delta; a reservation needs an available material with enough stock.
func nextStock(m *models.RawMaterial, delta decimal.Decimal) (decimal.Decimal, string, error) {
	if delta.IsNegative() {
		if m.Status != models.MaterialAvailable {
			return decimal.Zero, "", store.NotFound("raw material", strconv.FormatInt(m.Id, 10))
		}
		if delta.Neg().GreaterThan(m.Quantity) {
			return decimal.Zero, "", store.Conflict("insufficient material quantity")
		}
	}

	remaining := m.Quantity.Add(delta)
	status := m.Status
	switch {
	case !remaining.IsPositive():
		status = models.MaterialSold
	case status == models.MaterialSold:
		status = models.MaterialAvailable
	}
	return remaining, status, nil
}

func (s *Service) CreateMaterialPurchase(ctx context.Context, p models.MaterialPurchase) (*models.MaterialPurchase, error) {
	var (
		purchase        models.MaterialPurchase
		quantity, total string
	)
	err := s.db.QueryRowContext(ctx, queryInsertMaterialPurchase,
		p.Quantity.String(), p.TotalPrice.String(), p.ProducerId, p.MaterialId, p.PaymentReference, time.Now().UTC()).
		Scan(&purchase.Id, &quantity, &total, &purchase.ProducerId, &purchase.MaterialId,
			&purchase.PaymentReference, &purchase.CreatedAt)
	if err != nil {
		return nil, store.StoreFailure("insert material purchase", err)
	}
	if purchase.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, store.StoreFailure("parse purchase quantity", err)
	}
	if purchase.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, store.StoreFailure("parse purchase total", err)
	}
	return &purchase, nil
}

// --- Reporting ---

func (s *Service) ImpactSummary(ctx context.Context) (*models.ImpactSummary, error) {
	summary := &models.ImpactSummary{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{queryCountProducts, &summary.Overall.TotalProducts},
		{queryCountOrders, &summary.Overall.TotalOrders},
		{queryCountRecycleRequests, &summary.Overall.TotalRecycleRequests},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, store.StoreFailure("count marketplace rows", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, queryProductImpacts)
	if err != nil {
		return nil, store.StoreFailure("query product impacts", err)
	}
	defer rows.Close()

	var impacts []categoryScore
	for rows.Next() {
		var category, score string
		if err := rows.Scan(&category, &score); err != nil {
			return nil, store.StoreFailure("scan product impact", err)
		}
		d, err := decimal.NewFromString(score)
		if err != nil {
			return nil, store.StoreFailure("parse product impact", err)
		}
		impacts = append(impacts, categoryScore{models.ProductCategory(category), d})
	}
	if err := rows.Err(); err != nil {
		return nil, store.StoreFailure("iterate product impacts", err)
	}

	summary.Overall.TotalCO2Impact, summary.ByCategory = foldImpacts(impacts)
	return summary, nil
}

type categoryScore struct {
	category models.ProductCategory
	score    decimal.Decimal
}

// foldImpacts groups scores by category; input must be ordered by category.
func foldImpacts(scores []categoryScore) (decimal.Decimal, []models.CategoryImpact) {
	total := decimal.Zero
	byCategory := []models.CategoryImpact{}
	for _, cs := range scores {
		total = total.Add(cs.score)
		n := len(byCategory)
		if n == 0 || byCategory[n-1].Category != cs.category {
			byCategory = append(byCategory, models.CategoryImpact{Category: cs.category, TotalImpact: decimal.Zero})
			n++
		}
		byCategory[n-1].TotalImpact = byCategory[n-1].TotalImpact.Add(cs.score)
		byCategory[n-1].ProductCount++
	}
	return total, byCategory
}

// --- scanning ---

func queryList[T any](ctx context.Context, db *sql.DB, what string, scan func(rowScanner) (*T, error), query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.StoreFailure("query "+what, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

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

type decimalColumn struct {
	raw string
	dst *decimal.Decimal
}

func parseDecimals(cols ...decimalColumn) error {
	for _, c := range cols {
		d, err := decimal.NewFromString(c.raw)
		if err != nil {
			return fmt.Errorf("failed to parse decimal %q: %w", c.raw, err)
		}
		*c.dst = d
	}
	return nil
}

func scanProduct(row rowScanner) (*models.Product, error) {
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
	if err := parseDecimals(decimalColumn{price, &p.Price}, decimalColumn{weight, &p.Weight}, decimalColumn{impact, &p.ImpactScore}); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o     models.Order
		total string
	)
	err := row.Scan(&o.Id, &o.Quantity, &total, &o.Status, &o.ConsumerId, &o.ProductId, &o.PaymentReference, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := parseDecimals(decimalColumn{total, &o.TotalPrice}); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanRecycleRequest(row rowScanner) (*models.RecycleRequest, error) {
	var (
		r           models.RecycleRequest
		weight      string
		category    string
		recyclerId  sql.NullString
		processedAt sql.NullTime
	)
	err := row.Scan(&r.Id, &r.ItemDescription, &weight, &category, &r.Status, &r.ConsumerId,
		&recyclerId, &r.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	r.Category = models.ProductCategory(category)
	if recyclerId.Valid {
		id := recyclerId.String
		r.RecyclerId = &id
	}
	if processedAt.Valid {
		t := processedAt.Time
		r.ProcessedAt = &t
	}
	if err := parseDecimals(decimalColumn{weight, &r.Weight}); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanMaterial(row rowScanner) (*models.RawMaterial, error) {
	var (
		m               models.RawMaterial
		materialType    string
		quantity, price string
		requestId       sql.NullInt64
	)
	err := row.Scan(&m.Id, &m.Name, &materialType, &quantity, &price, &m.Status,
		&m.RecyclerId, &requestId, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.MaterialType = models.MaterialType(materialType)
	if requestId.Valid {
		id := requestId.Int64
		m.RecycleRequestId = &id
	}
	if err := parseDecimals(decimalColumn{quantity, &m.Quantity}, decimalColumn{price, &m.PricePerKg}); err != nil {
		return nil, err
	}
	return &m, nil
}
