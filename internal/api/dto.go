package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"circlechain-wallet-go/internal/auth"
	"circlechain-wallet-go/internal/models"
	"circlechain-wallet-go/internal/store"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type PaymentBody struct {
	ProductName string          `json:"product_name" validate:"required,max=200"`
	Amount      decimal.Decimal `json:"amount"`
	ProductId   *int64          `json:"product_id"`
}

type RewardBody struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required,max=500"`
}

type RecyclingRewardBody struct {
	MaterialType string          `json:"material_type" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type ProductBody struct {
	Name        string                 `json:"name" validate:"required,max=200"`
	Description string                 `json:"description" validate:"max=2000"`
	Category    models.ProductCategory `json:"category" validate:"required,oneof=electronics textiles packaging furniture other"`
	Price       decimal.Decimal        `json:"price"`
	Weight      decimal.Decimal        `json:"weight"`
}

type ProductUpdateBody struct {
	Name        *string                 `json:"name" validate:"omitempty,max=200"`
	Description *string                 `json:"description" validate:"omitempty,max=2000"`
	Category    *models.ProductCategory `json:"category" validate:"omitempty,oneof=electronics textiles packaging furniture other"`
	Price       *decimal.Decimal        `json:"price"`
	Weight      *decimal.Decimal        `json:"weight"`
	Status      *string                 `json:"status" validate:"omitempty,oneof=available sold out_of_stock"`
}

func (b ProductUpdateBody) toUpdate() store.ProductUpdate {
	return store.ProductUpdate{
		Name:        b.Name,
		Description: b.Description,
		Category:    b.Category,
		Price:       b.Price,
		Weight:      b.Weight,
		Status:      b.Status,
	}
}

type OrderBody struct {
	ProductId int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity"`
}

type RecycleBody struct {
	ItemDescription string                 `json:"item_description" validate:"required,max=500"`
	Weight          decimal.Decimal        `json:"weight"`
	Category        models.ProductCategory `json:"category" validate:"required,oneof=electronics textiles packaging furniture other"`
}

type MaterialBody struct {
	Name             string              `json:"name" validate:"required,max=200"`
	MaterialType     models.MaterialType `json:"material_type" validate:"required,oneof=plastic metal fabric glass paper composite"`
	Quantity         decimal.Decimal     `json:"quantity"`
	PricePerKg       decimal.Decimal     `json:"price_per_kg"`
	RecycleRequestId *int64              `json:"recycle_request_id"`
}

type MaterialPurchaseBody struct {
	MaterialId int64           `json:"material_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// decodeBody reads a JSON body into dst and runs struct validation.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", store.ErrInvalidAmount, err)
	}
	return auth.Validate(dst)
}
