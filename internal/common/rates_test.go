package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRates(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRatePolicy_Overrides(t *testing.T) {
	path := writeRates(t, `
reward_rates:
  default: 4
  values:
    Plastic: 12.5
    rubber: 3
impact_factors:
  values:
    electronics: 20
`)
	policy, err := LoadRatePolicy(path)
	require.NoError(t, err)

	assert.True(t, policy.RewardRate("plastic").Equal(decimal.RequireFromString("12.5")))
	assert.True(t, policy.RewardRate("RUBBER").Equal(decimal.NewFromInt(3)))
	assert.True(t, policy.RewardRate("unobtainium").Equal(decimal.NewFromInt(4)))
	assert.True(t, policy.RewardRate("metal").Equal(decimal.NewFromInt(15)), "untouched defaults survive")
	assert.True(t, policy.ImpactFactor("electronics").Equal(decimal.NewFromInt(20)))
	assert.True(t, policy.DefaultImpactFactor.Equal(decimal.NewFromInt(5)))
}

func TestLoadRatePolicy_MissingFileUsesDefaults(t *testing.T) {
	policy, err := LoadRatePolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.True(t, policy.RewardRate("plastic").Equal(decimal.NewFromInt(10)))

	policy, err = LoadRatePolicy("")
	require.NoError(t, err)
	assert.NotNil(t, policy)
}

func TestLoadRatePolicy_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":   "reward_rates: [",
		"bad number": "reward_rates:\n  default: lots\n",
		"negative":   "impact_factors:\n  values:\n    textiles: -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRatePolicy(writeRates(t, content))
			assert.Error(t, err)
		})
	}
}
