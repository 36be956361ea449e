package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"circlechain-wallet-go/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// RateTable is one section of the rates file: a default plus per-key overrides.
// Values are strings so amounts stay exact.
type RateTable struct {
	Default string            `yaml:"default"`
	Values  map[string]string `yaml:"values"`
}

type RatesConfig struct {
	RewardRates   RateTable `yaml:"reward_rates"`
	ImpactFactors RateTable `yaml:"impact_factors"`
}

// LoadRatePolicy reads reward rates and impact factors from a YAML file on top
// of the built-in defaults. A missing file yields the defaults.
func LoadRatePolicy(ratesFile string) (*wallet.RatePolicy, error) {
	policy := wallet.DefaultRatePolicy()
	if ratesFile == "" {
		return policy, nil
	}

	ratesPath := ratesFile
	if !filepath.IsAbs(ratesFile) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		ratesPath = filepath.Join(wd, ratesFile)
	}

	data, err := os.ReadFile(ratesPath)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("No rates file found, using default reward rates", zap.String("file", ratesFile))
		return policy, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", ratesFile, err)
	}

	var config RatesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", ratesFile, err)
	}

	if err := applyTable(config.RewardRates, &policy.DefaultRate, policy.Rates, "reward_rates"); err != nil {
		return nil, fmt.Errorf("%s: %w", ratesFile, err)
	}
	if err := applyTable(config.ImpactFactors, &policy.DefaultImpactFactor, policy.ImpactFactors, "impact_factors"); err != nil {
		return nil, fmt.Errorf("%s: %w", ratesFile, err)
	}

	zap.L().Info("Loaded rate policy",
		zap.String("file", ratesFile),
		zap.Int("reward_rates", len(policy.Rates)),
		zap.Int("impact_factors", len(policy.ImpactFactors)))
	return policy, nil
}

func applyTable(table RateTable, def *decimal.Decimal, values map[string]decimal.Decimal, section string) error {
	if table.Default != "" {
		d, err := parseRate(table.Default)
		if err != nil {
			return fmt.Errorf("%s.default: %w", section, err)
		}
		*def = d
	}
	for key, raw := range table.Values {
		if wallet.NormalizeKey(key) == "" {
			return fmt.Errorf("%s.values: empty key", section)
		}
		d, err := parseRate(raw)
		if err != nil {
			return fmt.Errorf("%s.values.%s: %w", section, key, err)
		}
		values[wallet.NormalizeKey(key)] = d
	}
	return nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative, got %s", d)
	}
	return d, nil
}
