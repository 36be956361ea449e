package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductCategory groups products for impact scoring
type ProductCategory string

const (
	CategoryElectronics ProductCategory = "electronics"
	CategoryTextiles    ProductCategory = "textiles"
	CategoryPackaging   ProductCategory = "packaging"
	CategoryFurniture   ProductCategory = "furniture"
	CategoryOther       ProductCategory = "other"
)

const (
	ProductAvailable  = "available"
	ProductSold       = "sold"
	ProductOutOfStock = "out_of_stock"
)

const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

const (
	RecycleSubmitted = "submitted"
	RecycleAccepted  = "accepted"
	RecycleInProcess = "in_process"
	RecycleCompleted = "completed"
	RecycleRejected  = "rejected"
)

const (
	MaterialAvailable = "available"
	MaterialReserved  = "reserved"
	MaterialSold      = "sold"
)

// MaterialType is the kind of raw material a recycler produces
type MaterialType string

const (
	MaterialPlastic   MaterialType = "plastic"
	MaterialMetal     MaterialType = "metal"
	MaterialFabric    MaterialType = "fabric"
	MaterialGlass     MaterialType = "glass"
	MaterialPaper     MaterialType = "paper"
	MaterialComposite MaterialType = "composite"
)

type Product struct {
	Id          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Category    ProductCategory `db:"category" json:"category"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Weight      decimal.Decimal `db:"weight" json:"weight"`
	Status      string          `db:"status" json:"status"`
	ImpactScore decimal.Decimal `db:"impact_score" json:"impact_placeholder"`
	ProducerId  string          `db:"producer_id" json:"producer_id"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

type Order struct {
	Id               int64           `db:"id" json:"id"`
	Quantity         int             `db:"quantity" json:"quantity"`
	TotalPrice       decimal.Decimal `db:"total_price" json:"total_price"`
	Status           string          `db:"status" json:"status"`
	ConsumerId       string          `db:"consumer_id" json:"consumer_id"`
	ProductId        int64           `db:"product_id" json:"product_id"`
	PaymentReference string          `db:"payment_reference" json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

type RecycleRequest struct {
	Id              int64           `db:"id" json:"id"`
	ItemDescription string          `db:"item_description" json:"item_description"`
	Weight          decimal.Decimal `db:"weight" json:"weight"`
	Category        ProductCategory `db:"category" json:"category"`
	Status          string          `db:"status" json:"status"`
	ConsumerId      string          `db:"consumer_id" json:"consumer_id"`
	RecyclerId      *string         `db:"recycler_id" json:"recycler_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt     *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

type RawMaterial struct {
	Id               int64           `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	MaterialType     MaterialType    `db:"material_type" json:"material_type"`
	Quantity         decimal.Decimal `db:"quantity" json:"quantity"`
	PricePerKg       decimal.Decimal `db:"price_per_kg" json:"price_per_kg"`
	Status           string          `db:"status" json:"status"`
	RecyclerId       string          `db:"recycler_id" json:"recycler_id"`
	RecycleRequestId *int64          `db:"recycle_request_id" json:"recycle_request_id,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

type MaterialPurchase struct {
	Id               int64           `db:"id" json:"id"`
	Quantity         decimal.Decimal `db:"quantity" json:"quantity"`
	TotalPrice       decimal.Decimal `db:"total_price" json:"total_price"`
	ProducerId       string          `db:"producer_id" json:"producer_id"`
	MaterialId       int64           `db:"material_id" json:"material_id"`
	PaymentReference string          `db:"payment_reference" json:"payment_reference"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// CategoryImpact is one row of the admin impact report
type CategoryImpact struct {
	Category     ProductCategory `json:"category"`
	TotalImpact  decimal.Decimal `json:"total_impact"`
	ProductCount int64           `json:"product_count"`
}

// ImpactOverview holds marketplace-wide counters
type ImpactOverview struct {
	TotalProducts        int64           `json:"total_products"`
	TotalOrders          int64           `json:"total_orders"`
	TotalRecycleRequests int64           `json:"total_recycle_requests"`
	TotalCO2Impact       decimal.Decimal `json:"total_co2_impact"`
}

// ImpactSummary is the admin environmental impact report
type ImpactSummary struct {
	Overall    ImpactOverview   `json:"overall"`
	ByCategory []CategoryImpact `json:"by_category"`
}
