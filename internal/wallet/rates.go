package wallet

import (
	"strings"

	"circlechain-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

// RatePolicy prices recycled material in tokens per item and products in kg CO2e per kg.
// Lookups are case-insensitive; unknown keys fall back to the defaults.
type RatePolicy struct {
	DefaultRate         decimal.Decimal
	Rates               map[string]decimal.Decimal
	DefaultImpactFactor decimal.Decimal
	ImpactFactors       map[string]decimal.Decimal
}

func DefaultRatePolicy() *RatePolicy {
	return &RatePolicy{
		DefaultRate: decimal.NewFromInt(10),
		Rates: map[string]decimal.Decimal{
			string(models.MaterialPlastic):   decimal.NewFromInt(10),
			string(models.MaterialMetal):     decimal.NewFromInt(15),
			string(models.MaterialGlass):     decimal.NewFromInt(8),
			string(models.MaterialPaper):     decimal.NewFromInt(5),
			string(models.MaterialFabric):    decimal.NewFromInt(12),
			string(models.MaterialComposite): decimal.NewFromInt(20),
		},
		DefaultImpactFactor: decimal.NewFromInt(5),
		ImpactFactors: map[string]decimal.Decimal{
			string(models.CategoryElectronics): decimal.NewFromInt(15),
			string(models.CategoryTextiles):    decimal.NewFromInt(8),
			string(models.CategoryPackaging):   decimal.RequireFromString("2.5"),
			string(models.CategoryFurniture):   decimal.NewFromInt(12),
			string(models.CategoryOther):       decimal.NewFromInt(5),
		},
	}
}

func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// RewardRate returns the tokens paid per recycled item of the material type
func (p *RatePolicy) RewardRate(materialType string) decimal.Decimal {
	if rate, ok := p.Rates[NormalizeKey(materialType)]; ok {
		return rate
	}
	return p.DefaultRate
}

// ImpactFactor returns kg CO2e per kg for a product category
func (p *RatePolicy) ImpactFactor(category string) decimal.Decimal {
	if factor, ok := p.ImpactFactors[NormalizeKey(category)]; ok {
		return factor
	}
	return p.DefaultImpactFactor
}

// ImpactScore is factor(category) x weight; a non-positive weight counts as 1
func (p *RatePolicy) ImpactScore(category string, weight decimal.Decimal) decimal.Decimal {
	if !weight.IsPositive() {
		weight = decimal.NewFromInt(1)
	}
	return p.ImpactFactor(category).Mul(weight)
}
